package transform

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// ReprojectionReport summarizes the Euclidean distances between observed points and the points
// predicted by an estimated transform.
type ReprojectionReport struct {
	Residuals []float64 `json:"residuals"`
	Mean      float64   `json:"mean"`
	Median    float64   `json:"median"`
	Max       float64   `json:"max"`
	RMS       float64   `json:"rms"`
}

func newReprojectionReport(residuals []float64) (*ReprojectionReport, error) {
	mean, err := stats.Mean(residuals)
	median, err2 := stats.Median(residuals)
	maxResidual, err3 := stats.Max(residuals)
	squares := make([]float64, len(residuals))
	for i, r := range residuals {
		squares[i] = r * r
	}
	meanSquare, err4 := stats.Mean(squares)
	if err := multierr.Combine(err, err2, err3, err4); err != nil {
		return nil, errors.Wrap(err, "cannot summarize residuals")
	}
	return &ReprojectionReport{
		Residuals: residuals,
		Mean:      mean,
		Median:    median,
		Max:       maxResidual,
		RMS:       math.Sqrt(meanSquare),
	}, nil
}

// HomographyReprojection measures how far h maps each target from its source.
func HomographyReprojection(h *Homography, pts []PointCorrespondence) (*ReprojectionReport, error) {
	residuals := make([]float64, len(pts))
	for i, pt := range pts {
		residuals[i] = h.Apply(pt.Target).Sub(pt.Source).Norm()
		if math.IsNaN(residuals[i]) {
			residuals[i] = math.Inf(1)
		}
	}
	return newReprojectionReport(residuals)
}

// CameraReprojection measures how far the camera matrix c projects each world point from its
// observed image point. Points projected to infinity have an infinite residual.
func CameraReprojection(c mat.Matrix, pts []CameraCorrespondence) (*ReprojectionReport, error) {
	residuals := make([]float64, len(pts))
	for i, pt := range pts {
		projected, err := ProjectPoint(c, pt.World)
		if err != nil {
			residuals[i] = math.Inf(1)
			continue
		}
		residuals[i] = projected.Sub(pt.Image).Norm()
	}
	return newReprojectionReport(residuals)
}
