package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// normalizePoints translates pts to their centroid and scales them so the mean distance to the
// origin is sqrt(2), as described in Multiple View Geometry, Alg 4.2. It returns the
// transformed points, the 3x3 transform T and its inverse.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, *mat.Dense) {
	nPoints := len(pts)
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.
	if d > 0 {
		scale = math.Sqrt2 / d
	}

	T := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	TInv := mat.NewDense(3, 3, []float64{
		1 / scale, 0, mu.X,
		0, 1 / scale, mu.Y,
		0, 0, 1,
	})
	pointsTransformed := make([]r2.Point, nPoints)
	for i, pt := range pts {
		pointsTransformed[i] = pt.Sub(mu).Mul(scale)
	}
	return pointsTransformed, T, TInv
}

// normalizeVectors is the 3D counterpart of normalizePoints, with a mean distance of sqrt(3).
// It returns the transformed vectors and the 4x4 transform U.
func normalizeVectors(pts []r3.Vector) ([]r3.Vector, *mat.Dense) {
	nPoints := len(pts)
	mu := r3.Vector{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.
	if d > 0 {
		scale = math.Sqrt(3) / d
	}

	U := mat.NewDense(4, 4, []float64{
		scale, 0, 0, -scale * mu.X,
		0, scale, 0, -scale * mu.Y,
		0, 0, scale, -scale * mu.Z,
		0, 0, 0, 1,
	})
	pointsTransformed := make([]r3.Vector, nPoints)
	for i, pt := range pts {
		pointsTransformed[i] = pt.Sub(mu).Mul(scale)
	}
	return pointsTransformed, U
}
