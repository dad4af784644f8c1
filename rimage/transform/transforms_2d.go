package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// The builders below construct elementary transforms of the plane in homogeneous coordinates so
// they can be composed with estimated homographies. Rotations follow the convention
// [[cos, sin], [-sin, cos]], i.e. a positive theta turns points clockwise in a y-up frame.

func homographyOf(vals ...float64) *Homography {
	return &Homography{mat.NewDense(3, 3, vals)}
}

// NewTranslation returns the transform that translates by (tx, ty).
func NewTranslation(tx, ty float64) *Homography {
	return homographyOf(
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	)
}

// NewRotation returns the rotation by theta radians about the origin.
func NewRotation(theta float64) *Homography {
	sin, cos := math.Sincos(theta)
	return homographyOf(
		cos, sin, 0,
		-sin, cos, 0,
		0, 0, 1,
	)
}

// NewEuclidean returns a rotation by theta followed by a translation by (tx, ty).
func NewEuclidean(tx, ty, theta float64) *Homography {
	sin, cos := math.Sincos(theta)
	return homographyOf(
		cos, sin, tx,
		-sin, cos, ty,
		0, 0, 1,
	)
}

// NewScaling returns the isotropic scaling by s about the origin.
func NewScaling(s float64) *Homography {
	return homographyOf(
		s, 0, 0,
		0, s, 0,
		0, 0, 1,
	)
}

// NewSimilarity returns a rotation by theta, an isotropic scaling by s, then a translation by
// (tx, ty).
func NewSimilarity(theta, s, tx, ty float64) *Homography {
	sin, cos := math.Sincos(theta)
	return homographyOf(
		s*cos, s*sin, tx,
		-s*sin, s*cos, ty,
		0, 0, 1,
	)
}

// NewAffine returns R(theta2)·S(sx, sy)·R(theta1) followed by a translation by (tx, ty).
func NewAffine(theta1, theta2, sx, sy, tx, ty float64) *Homography {
	rotation := func(theta float64) *mat.Dense {
		sin, cos := math.Sincos(theta)
		return mat.NewDense(2, 2, []float64{cos, sin, -sin, cos})
	}
	var rsr mat.Dense
	rsr.Product(rotation(theta2), mat.NewDiagDense(2, []float64{sx, sy}), rotation(theta1))
	return homographyOf(
		rsr.At(0, 0), rsr.At(0, 1), tx,
		rsr.At(1, 0), rsr.At(1, 1), ty,
		0, 0, 1,
	)
}
