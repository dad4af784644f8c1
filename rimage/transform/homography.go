package transform

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dlt/utils"
)

// PointCorrespondence is a pair of matching points on two planes.
type PointCorrespondence struct {
	Source r2.Point
	Target r2.Point
}

// Homography is a 3x3 projective transform of the plane. Indices are [row][column].
type Homography struct {
	matrix *mat.Dense
}

// NewHomography creates a Homography from 9 values in row-major order.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	data := make([]float64, 9)
	copy(data, vals)
	return &Homography{mat.NewDense(3, 3, data)}, nil
}

// At returns the value of the homography at the given index.
func (h *Homography) At(row, col int) float64 {
	return h.matrix.At(row, col)
}

// Matrix returns a copy of the homography as a 3x3 dense matrix.
func (h *Homography) Matrix() *mat.Dense {
	return mat.DenseCopyOf(h.matrix)
}

// Apply transforms a 2D point with the homography. A point mapped to infinity has
// non-finite coordinates.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Compose returns the homography h·other, which applies other first.
func (h *Homography) Compose(other *Homography) *Homography {
	var out mat.Dense
	out.Mul(h.matrix, other.matrix)
	return &Homography{&out}
}

// Inverse returns the inverse homography, normalized when its bottom-right entry is nonzero.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.matrix); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	out := &Homography{&inv}
	if normalized, err := out.Normalize(0); err == nil {
		return normalized, nil
	}
	return out, nil
}

// Normalize returns a copy of h scaled so that its bottom-right entry is 1. It fails when
// that entry is at or below tolerance times the Frobenius norm of h.
func (h *Homography) Normalize(tolerance float64) (*Homography, error) {
	h22 := h.At(2, 2)
	if math.Abs(h22) <= tolerance*mat.Norm(h.matrix, 2) {
		return nil, NewUndefinedNormalizationError(
			fmt.Sprintf("homography bottom-right entry %g maps the reference point to infinity", h22))
	}
	var out mat.Dense
	out.Scale(1/h22, h.matrix)
	if !utils.IsFinite(out.RawMatrix().Data...) {
		return nil, NewUndefinedNormalizationError("normalized homography is not finite")
	}
	return &Homography{&out}, nil
}

// MarshalJSON encodes the homography as an array of three rows.
func (h *Homography) MarshalJSON() ([]byte, error) {
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = mat.Row(nil, i, h.matrix)
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes an array of three rows of three values.
func (h *Homography) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != 3 {
		return errors.Errorf("homography must have 3 rows, got %d", len(rows))
	}
	vals := make([]float64, 0, 9)
	for i, row := range rows {
		if len(row) != 3 {
			return errors.Errorf("homography row %d must have 3 values, got %d", i, len(row))
		}
		vals = append(vals, row...)
	}
	h.matrix = mat.NewDense(3, 3, vals)
	return nil
}

// homographyLayout encodes x_a = H·x_b for each correspondence (a = source, b = target):
//
//	[x_b, y_b, 1, 0, 0, 0, -x_b*x_a, -y_b*x_a, -x_a]
//	[0, 0, 0, x_b, y_b, 1, -x_b*y_a, -y_b*y_a, -y_a]
var homographyLayout = dltLayout[PointCorrespondence]{
	name:      "homography",
	cols:      9,
	minPoints: 4,
	rows: func(c PointCorrespondence, r0, r1 []float64) {
		xa, ya := c.Source.X, c.Source.Y
		xb, yb := c.Target.X, c.Target.Y
		copy(r0, []float64{xb, yb, 1, 0, 0, 0, -xb * xa, -yb * xa, -xa})
		copy(r1, []float64{0, 0, 0, xb, yb, 1, -xb * ya, -yb * ya, -ya})
	},
}

// EstimateHomography returns the homography H minimizing the algebraic error of
// source ~ H·target over pts, normalized so that H[2][2] = 1. At least 4 correspondences in
// general position are needed.
func (e *Estimator) EstimateHomography(pts []PointCorrespondence) (*Homography, error) {
	work := pts
	var sourceTInv, targetT *mat.Dense
	if e.cfg.NormalizePoints && len(pts) > 0 {
		sources := make([]r2.Point, len(pts))
		targets := make([]r2.Point, len(pts))
		for i, pt := range pts {
			sources[i], targets[i] = pt.Source, pt.Target
		}
		var normSources, normTargets []r2.Point
		normSources, _, sourceTInv = normalizePoints(sources)
		normTargets, targetT, _ = normalizePoints(targets)
		work = make([]PointCorrespondence, len(pts))
		for i := range pts {
			work[i] = PointCorrespondence{Source: normSources[i], Target: normTargets[i]}
		}
	}

	sol, err := solveDLT(work, homographyLayout, e.cfg.RankTolerance)
	if err != nil {
		return nil, err
	}
	e.logSolution(homographyLayout.name, sol)

	h := &Homography{mat.NewDense(3, 3, sol.vector)}
	if sourceTInv != nil {
		// source_n ~ Hn·target_n  =>  source ~ Ts^-1·Hn·Tt·target
		var denorm mat.Dense
		denorm.Product(sourceTInv, h.matrix, targetT)
		h = &Homography{&denorm}
	}
	return h.Normalize(e.cfg.NormalizationTolerance)
}
