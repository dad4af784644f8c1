package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// CorrespondenceConfig is the on-disk form of the inputs to the estimators. Source and target
// points feed the homography estimator; image and world points feed camera calibration. Either
// pair may be omitted, but not both.
type CorrespondenceConfig struct {
	SourcePoints [][]float64 `json:"source_points,omitempty" jsonschema:"description=points on the source plane as [x y] pairs"`
	TargetPoints [][]float64 `json:"target_points,omitempty" jsonschema:"description=matching points on the target plane as [x y] pairs"`
	// ImagePoints may carry a third, ignored, coordinate so that homogeneous pixel lists can be
	// pasted in directly.
	ImagePoints [][]float64      `json:"image_points,omitempty" jsonschema:"description=pixel coordinates as [x y] or [x y w]"`
	WorldPoints [][]float64      `json:"world_points,omitempty" jsonschema:"description=matching world points as [x y z]"`
	Estimator   *EstimatorConfig `json:"estimator,omitempty"`
}

// CorrespondenceConfigSchema returns the JSON schema of CorrespondenceConfig.
func CorrespondenceConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&CorrespondenceConfig{})
}

// NewCorrespondenceConfigFromJSONFile reads and validates a CorrespondenceConfig.
func NewCorrespondenceConfigFromJSONFile(jsonPath string) (*CorrespondenceConfig, error) {
	cfg := &CorrespondenceConfig{}
	if err := readJSONFile(jsonPath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", jsonPath)
	}
	return cfg, nil
}

// readJSONFile decodes the JSON file at jsonPath into v.
func readJSONFile(jsonPath string, v interface{}) error {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return errors.Wrap(err, "error opening JSON file")
	}
	defer goutils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return errors.Wrap(err, "error reading JSON data")
	}
	return errors.Wrap(json.Unmarshal(byteValue, v), "error parsing JSON string")
}

// HasHomography reports whether the config holds plane-to-plane correspondences.
func (cfg *CorrespondenceConfig) HasHomography() bool {
	return len(cfg.SourcePoints) > 0 || len(cfg.TargetPoints) > 0
}

// HasCamera reports whether the config holds image-to-world correspondences.
func (cfg *CorrespondenceConfig) HasCamera() bool {
	return len(cfg.ImagePoints) > 0 || len(cfg.WorldPoints) > 0
}

// CheckValid reports every malformed point and count mismatch in the config.
func (cfg *CorrespondenceConfig) CheckValid() error {
	if cfg == nil {
		return errors.New("config is empty")
	}
	if !cfg.HasHomography() && !cfg.HasCamera() {
		return NewDegenerateInputError("config has neither source/target nor image/world points")
	}
	var errs error
	errs = multierr.Append(errs, checkPairedLengths("source_points", "target_points", cfg.SourcePoints, cfg.TargetPoints))
	errs = multierr.Append(errs, checkPairedLengths("image_points", "world_points", cfg.ImagePoints, cfg.WorldPoints))
	errs = multierr.Append(errs, checkArity("source_points", cfg.SourcePoints, 2, 2))
	errs = multierr.Append(errs, checkArity("target_points", cfg.TargetPoints, 2, 2))
	errs = multierr.Append(errs, checkArity("image_points", cfg.ImagePoints, 2, 3))
	errs = multierr.Append(errs, checkArity("world_points", cfg.WorldPoints, 3, 3))
	errs = multierr.Append(errs, cfg.Estimator.CheckValid())
	return errs
}

func checkPairedLengths(nameA, nameB string, a, b [][]float64) error {
	if len(a) == len(b) {
		return nil
	}
	return NewDegenerateInputError(fmt.Sprintf("%s has %d points but %s has %d", nameA, len(a), nameB, len(b)))
}

func checkArity(name string, pts [][]float64, minLen, maxLen int) error {
	var errs error
	for i, pt := range pts {
		if len(pt) < minLen || len(pt) > maxLen {
			if minLen == maxLen {
				errs = multierr.Append(errs, errors.Errorf("%s[%d] must have %d values, got %d", name, i, minLen, len(pt)))
			} else {
				errs = multierr.Append(errs, errors.Errorf("%s[%d] must have %d to %d values, got %d",
					name, i, minLen, maxLen, len(pt)))
			}
		}
	}
	return errs
}

// PointCorrespondences returns the source/target pairs of a valid config.
func (cfg *CorrespondenceConfig) PointCorrespondences() []PointCorrespondence {
	return lo.Map(cfg.SourcePoints, func(src []float64, i int) PointCorrespondence {
		tgt := cfg.TargetPoints[i]
		return PointCorrespondence{
			Source: r2.Point{X: src[0], Y: src[1]},
			Target: r2.Point{X: tgt[0], Y: tgt[1]},
		}
	})
}

// CameraCorrespondences returns the image/world pairs of a valid config.
func (cfg *CorrespondenceConfig) CameraCorrespondences() []CameraCorrespondence {
	return lo.Map(cfg.ImagePoints, func(img []float64, i int) CameraCorrespondence {
		w := cfg.WorldPoints[i]
		return CameraCorrespondence{
			Image: r2.Point{X: img[0], Y: img[1]},
			World: r3.Vector{X: w[0], Y: w[1], Z: w[2]},
		}
	})
}
