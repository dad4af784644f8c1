package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CameraView is the observation of one world point by a camera with a known 3x4 matrix.
type CameraView struct {
	Matrix *mat.Dense
	Point  r2.Point
}

// triangulationLayout encodes x·P3 - P1 = 0 and y·P3 - P2 = 0 for each view, where P_i are the
// rows of the camera matrix.
var triangulationLayout = dltLayout[CameraView]{
	name:      "triangulation",
	cols:      4,
	minPoints: 2,
	rows: func(v CameraView, r0, r1 []float64) {
		for j := 0; j < 4; j++ {
			p3 := v.Matrix.At(2, j)
			r0[j] = v.Point.X*p3 - v.Matrix.At(0, j)
			r1[j] = v.Point.Y*p3 - v.Matrix.At(1, j)
		}
	},
}

// TriangulatePoint returns the world point that best explains its projections in two or more
// views, in the algebraic least-squares sense.
func (e *Estimator) TriangulatePoint(views []CameraView) (r3.Vector, error) {
	for i, v := range views {
		if v.Matrix == nil {
			return r3.Vector{}, errors.Errorf("view %d has no camera matrix", i)
		}
		if r, c := v.Matrix.Dims(); r != 3 || c != 4 {
			return r3.Vector{}, errors.Errorf("view %d camera matrix must be 3x4, got %dx%d", i, r, c)
		}
	}
	sol, err := solveDLT(views, triangulationLayout, e.cfg.RankTolerance)
	if err != nil {
		return r3.Vector{}, err
	}
	e.logSolution(triangulationLayout.name, sol)
	x := sol.vector
	// x has unit norm, so the tolerance is relative to the solution
	if math.Abs(x[3]) <= e.cfg.NormalizationTolerance {
		return r3.Vector{}, NewUndefinedNormalizationError("triangulated point is at infinity")
	}
	return HomogeneousToCartesian(x[0], x[1], x[2], x[3])
}

// TriangulatePoint triangulates views with the default configuration.
func TriangulatePoint(views []CameraView) (r3.Vector, error) {
	return defaultEstimator.TriangulatePoint(views)
}

// TriangulateRectified recovers a point from its projections in a rectified stereo pair with
// focal length f and baseline b. Image coordinates are relative to the principal point.
func TriangulateRectified(f, baseline float64, left, right r2.Point) (r3.Vector, error) {
	if f == 0 {
		return r3.Vector{}, errors.New("focal length must be nonzero")
	}
	disparity := left.X - right.X
	if disparity == 0 {
		return r3.Vector{}, NewUndefinedNormalizationError(
			fmt.Sprintf("zero disparity at %v, point is at infinity", left))
	}
	z := f * baseline / disparity
	return r3.Vector{X: left.X * z / f, Y: left.Y * z / f, Z: z}, nil
}
