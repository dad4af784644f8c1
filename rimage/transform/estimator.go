package transform

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/dlt/logging"
)

// SkewModel selects how the skew entry K[0][1] of the intrinsic matrix is derived from the
// decomposed skew angle.
type SkewModel string

const (
	// SkewCotangent uses alpha*cos(theta)/sin(theta), which makes rho^-1 * K * [R|t] reproduce the
	// estimated camera matrix.
	SkewCotangent = SkewModel("cotangent")
	// SkewArctangent uses -alpha*arctan(theta). This reproduces the numbers of the legacy
	// calibration tool and does not round-trip; it is kept for comparison only.
	SkewArctangent = SkewModel("arctangent")
)

const (
	defaultRankTolerance          = 1e-10
	defaultNormalizationTolerance = 1e-12
	defaultSkewTolerance          = 1e-9
)

// EstimatorConfig holds the tunables of the DLT estimators. Zero values mean "use the default".
type EstimatorConfig struct {
	// NormalizePoints conditions the correspondences (centroid at the origin, mean distance
	// sqrt(2) in 2D and sqrt(3) in 3D) before building the linear system.
	NormalizePoints bool `json:"normalize_points,omitempty"`
	// RankTolerance is the singular value threshold, relative to the largest singular value,
	// below which a direction counts as part of the null space.
	RankTolerance float64 `json:"rank_tolerance,omitempty"`
	// NormalizationTolerance is the magnitude, relative to the solution norm, at or below which
	// the homography entry H[2][2] is treated as zero.
	NormalizationTolerance float64 `json:"normalization_tolerance,omitempty"`
	// SkewTolerance is the value of sin(theta) at or below which the skew angle is degenerate.
	SkewTolerance float64   `json:"skew_tolerance,omitempty"`
	SkewModel     SkewModel `json:"skew_model,omitempty"`
}

// CheckValid checks if the fields of EstimatorConfig have valid inputs. All problems are
// reported together.
func (cfg *EstimatorConfig) CheckValid() error {
	if cfg == nil {
		return nil
	}
	var errs error
	if cfg.RankTolerance < 0 || cfg.RankTolerance >= 1 {
		errs = multierr.Append(errs, errors.Errorf("rank_tolerance must be in [0, 1), got %v", cfg.RankTolerance))
	}
	if cfg.NormalizationTolerance < 0 {
		errs = multierr.Append(errs, errors.Errorf("normalization_tolerance must be non-negative, got %v",
			cfg.NormalizationTolerance))
	}
	if cfg.SkewTolerance < 0 || cfg.SkewTolerance >= 1 {
		errs = multierr.Append(errs, errors.Errorf("skew_tolerance must be in [0, 1), got %v", cfg.SkewTolerance))
	}
	switch cfg.SkewModel {
	case "", SkewCotangent, SkewArctangent:
	default:
		errs = multierr.Append(errs, errors.Errorf("unknown skew_model %q", cfg.SkewModel))
	}
	return errs
}

// withDefaults returns a copy of cfg with every zero field replaced by its default.
func (cfg *EstimatorConfig) withDefaults() EstimatorConfig {
	var out EstimatorConfig
	if cfg != nil {
		out = *cfg
	}
	if out.RankTolerance == 0 {
		out.RankTolerance = defaultRankTolerance
	}
	if out.NormalizationTolerance == 0 {
		out.NormalizationTolerance = defaultNormalizationTolerance
	}
	if out.SkewTolerance == 0 {
		out.SkewTolerance = defaultSkewTolerance
	}
	if out.SkewModel == "" {
		out.SkewModel = SkewCotangent
	}
	return out
}

// An Estimator runs the DLT estimators with a fixed configuration. It holds no mutable state
// and is safe for concurrent use.
type Estimator struct {
	cfg    EstimatorConfig
	logger logging.Logger
}

// NewEstimator validates cfg and returns an Estimator. A nil cfg uses the defaults.
func NewEstimator(cfg *EstimatorConfig, logger logging.Logger) (*Estimator, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid estimator config")
	}
	if logger == nil {
		logger = logging.NewBlankLogger("dlt")
	}
	resolved := cfg.withDefaults()
	if resolved.SkewModel == SkewArctangent {
		logger.Warnw("using legacy arctangent skew term; decomposed K will not reproduce the camera matrix",
			"skew_model", resolved.SkewModel)
	}
	return &Estimator{cfg: resolved, logger: logger}, nil
}

// Config returns the resolved configuration of the estimator.
func (e *Estimator) Config() EstimatorConfig {
	return e.cfg
}

func (e *Estimator) logSolution(name string, sol *nullSpace) {
	e.logger.Debugw(fmt.Sprintf("solved %s system", name),
		"rank", sol.rank,
		"singular_values", sol.values,
		"normalized", e.cfg.NormalizePoints,
	)
}

var defaultEstimator = &Estimator{
	cfg:    (*EstimatorConfig)(nil).withDefaults(),
	logger: logging.NewBlankLogger("dlt"),
}

// EstimateHomography estimates the homography of pts with the default configuration.
func EstimateHomography(pts []PointCorrespondence) (*Homography, error) {
	return defaultEstimator.EstimateHomography(pts)
}

// CalibrateCamera estimates and decomposes the camera matrix of pts with the default
// configuration.
func CalibrateCamera(pts []CameraCorrespondence) (*CameraParameters, error) {
	return defaultEstimator.CalibrateCamera(pts)
}
