package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"

	"go.viam.com/dlt/logging"
)

func TestEstimatorConfigDefaults(t *testing.T) {
	est, err := NewEstimator(nil, nil)
	test.That(t, err, test.ShouldBeNil)
	cfg := est.Config()
	test.That(t, cfg.NormalizePoints, test.ShouldBeFalse)
	test.That(t, cfg.RankTolerance, test.ShouldEqual, defaultRankTolerance)
	test.That(t, cfg.NormalizationTolerance, test.ShouldEqual, defaultNormalizationTolerance)
	test.That(t, cfg.SkewTolerance, test.ShouldEqual, defaultSkewTolerance)
	test.That(t, cfg.SkewModel, test.ShouldEqual, SkewCotangent)

	est, err = NewEstimator(&EstimatorConfig{RankTolerance: 1e-6, SkewModel: SkewCotangent}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Config().RankTolerance, test.ShouldEqual, 1e-6)
	test.That(t, est.Config().SkewTolerance, test.ShouldEqual, defaultSkewTolerance)
}

func TestEstimatorConfigCheckValid(t *testing.T) {
	var nilCfg *EstimatorConfig
	test.That(t, nilCfg.CheckValid(), test.ShouldBeNil)

	cfg := &EstimatorConfig{
		RankTolerance:          1,
		NormalizationTolerance: -1,
		SkewTolerance:          -0.1,
		SkewModel:              "sine",
	}
	err := cfg.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rank_tolerance")
	test.That(t, err.Error(), test.ShouldContainSubstring, "normalization_tolerance")
	test.That(t, err.Error(), test.ShouldContainSubstring, "skew_tolerance")
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown skew_model "sine"`)

	_, err = NewEstimator(cfg, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid estimator config")
}

func TestEstimatorLogsSolverDiagnostics(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	est, err := NewEstimator(nil, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = est.EstimateHomography(correspondencesFrom(NewRotation(0.2), homographyTargets))
	test.That(t, err, test.ShouldBeNil)

	solved := logs.FilterMessage("solved homography system").All()
	test.That(t, solved, test.ShouldHaveLength, 1)
	test.That(t, solved[0].Level, test.ShouldEqual, zapcore.DebugLevel)
	fields := solved[0].ContextMap()
	test.That(t, fields["rank"], test.ShouldEqual, int64(8))
	test.That(t, fields["normalized"], test.ShouldEqual, false)
	test.That(t, fields["singular_values"], test.ShouldHaveLength, 9)

	_, err = est.CalibrateCamera(testCamera(0).correspondences(t, worldPoints))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("solved camera system").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("decomposed camera matrix").Len(), test.ShouldEqual, 1)

	// level filtering applies to the diagnostics
	logger.SetLevel(logging.INFO)
	_, err = est.EstimateHomography(correspondencesFrom(NewRotation(0.2), homographyTargets))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("solved homography system").Len(), test.ShouldEqual, 1)
}

func TestEstimatorSafeForConcurrentUse(t *testing.T) {
	est, err := NewEstimator(&EstimatorConfig{NormalizePoints: true}, logging.NewBlankLogger("concurrent"))
	test.That(t, err, test.ShouldBeNil)

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(theta float64) {
			truth := NewRotation(theta)
			h, err := est.EstimateHomography(correspondencesFrom(truth, homographyTargets))
			if err != nil {
				results <- err
				return
			}
			if math.Abs(h.At(0, 1)-truth.At(0, 1)) > 1e-8 {
				results <- errors.Errorf("rotation %v estimated as %v", theta, h.At(0, 1))
				return
			}
			results <- nil
		}(float64(i) * 0.1)
	}
	for i := 0; i < workers; i++ {
		test.That(t, <-results, test.ShouldBeNil)
	}
}

func TestReprojectionReport(t *testing.T) {
	report, err := newReprojectionReport([]float64{3, 0, 4})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Mean, test.ShouldAlmostEqual, 7./3)
	test.That(t, report.Median, test.ShouldEqual, 3.)
	test.That(t, report.Max, test.ShouldEqual, 4.)
	test.That(t, report.RMS, test.ShouldAlmostEqual, math.Sqrt(25./3))

	// sqrt((1 + 4 + 4 + 16 + 25) / 5) = sqrt(10)
	report, err = newReprojectionReport([]float64{1, 2, 2, 4, 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.RMS, test.ShouldAlmostEqual, 3.16227766, 1e-8)
	test.That(t, report.Median, test.ShouldEqual, 2.)

	_, err = newReprojectionReport(nil)
	test.That(t, err, test.ShouldNotBeNil)

	// a point mapped to infinity has an infinite residual
	h := NewTranslation(0, 0)
	h.matrix.Set(2, 0, 1)
	report, err = HomographyReprojection(h, []PointCorrespondence{
		{Source: r2.Point{X: 0, Y: 0}, Target: r2.Point{X: -1, Y: 0}},
		{Source: r2.Point{X: 0.5, Y: 0}, Target: r2.Point{X: 1, Y: 0}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsInf(report.Residuals[0], 1), test.ShouldBeTrue)
	test.That(t, report.Residuals[1], test.ShouldAlmostEqual, 0)
}
