package transform

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// dltLayout describes how one correspondence type is turned into rows of the homogeneous
// system A·h = 0. Every correspondence contributes exactly two rows of length cols.
type dltLayout[C any] struct {
	name      string
	cols      int
	minPoints int
	rows      func(c C, r0, r1 []float64)
}

// nullSpace is the least-squares solution of A·h = 0 subject to |h| = 1, along with the
// diagnostics of the decomposition that produced it. The vector is defined up to a nonzero
// scalar multiple; callers fix the scale (and sign) that their transform needs.
type nullSpace struct {
	vector []float64
	values []float64
	rank   int
}

// buildLinearSystem fills the (2N, cols) coefficient matrix, two rows per correspondence, in
// input order. It does no validation of the correspondence count; an empty input yields nil.
func buildLinearSystem[C any](pts []C, layout dltLayout[C]) *mat.Dense {
	if len(pts) == 0 {
		return nil
	}
	a := mat.NewDense(2*len(pts), layout.cols, nil)
	for i, pt := range pts {
		layout.rows(pt, a.RawRowView(2*i), a.RawRowView(2*i+1))
	}
	return a
}

// solveNullSpace returns the right singular vector of a for its smallest singular value.
// A full SVD is used so that V is complete even when a has fewer rows than columns. The rank
// of a is counted relative to its largest singular value; a rank below cols-1 means the
// solution is not unique and is reported as ErrDegenerateInput.
func solveNullSpace(a *mat.Dense, rankTolerance float64) (*nullSpace, error) {
	if a == nil || a.IsEmpty() {
		return nil, NewDegenerateInputError("empty coefficient matrix")
	}
	_, cols := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize coefficient matrix")
	}
	values := svd.Values(nil)
	rank := svd.Rank(rankTolerance)
	if rank < cols-1 {
		return nil, NewDegenerateInputError(
			fmt.Sprintf("coefficient matrix has rank %d, a unique solution needs rank %d", rank, cols-1))
	}

	var v mat.Dense
	svd.VTo(&v)
	return &nullSpace{
		vector: mat.Col(nil, cols-1, &v),
		values: values,
		rank:   rank,
	}, nil
}

// solveDLT checks the correspondence count for the layout, then builds and solves the system.
func solveDLT[C any](pts []C, layout dltLayout[C], rankTolerance float64) (*nullSpace, error) {
	if len(pts) < layout.minPoints {
		return nil, NewDegenerateInputError(fmt.Sprintf(
			"%s needs at least %d correspondences, got %d", layout.name, layout.minPoints, len(pts)))
	}
	return solveNullSpace(buildLinearSystem(pts, layout), rankTolerance)
}
