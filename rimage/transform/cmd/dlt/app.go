package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"go.viam.com/dlt/logging"
	"go.viam.com/dlt/rimage/transform"
)

const (
	flagDebug         = "debug"
	flagJSON          = "json"
	flagConfig        = "config"
	flagPlot          = "plot"
	flagIntrinsicsOut = "intrinsics-out"
	flagWidth         = "width"
	flagHeight        = "height"
)

// NewApp returns the dlt command with Writer set to out and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	var logger logging.Logger
	app := &cli.App{
		Name:            "dlt",
		Usage:           "estimate homographies and calibrate cameras from point correspondences",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagJSON,
				Usage: "print results as JSON",
			},
		},
		Before: func(c *cli.Context) error {
			logger = logging.NewBlankLogger("dlt")
			// configs are calibrated concurrently, so writes to errOut must be serialized
			logger.AddAppender(logging.NewWriterAppender(zapcore.Lock(zapcore.AddSync(errOut))))
			if !c.Bool(flagDebug) {
				logger.SetLevel(logging.INFO)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "homography",
				Usage:     "estimate the homography mapping target points onto source points",
				UsageText: "dlt homography --config FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "correspondence config `FILE`",
					},
				},
				Action: func(c *cli.Context) error {
					return homographyAction(c, logger)
				},
			},
			{
				Name:      "calibrate",
				Usage:     "estimate and decompose the camera matrix of one or more configs",
				UsageText: "dlt calibrate --config FILE [--config FILE...] [--plot OUT.png] [--intrinsics-out OUT.json]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "correspondence config `FILE`, may be repeated",
					},
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "write a scatter plot of the reprojection residuals to `FILE`",
					},
					&cli.StringFlag{
						Name:  flagIntrinsicsOut,
						Usage: "write pinhole intrinsics of the first config to `FILE`",
					},
					&cli.IntFlag{
						Name:  flagWidth,
						Usage: "image width in pixels, for --intrinsics-out",
					},
					&cli.IntFlag{
						Name:  flagHeight,
						Usage: "image height in pixels, for --intrinsics-out",
					},
				},
				Action: func(c *cli.Context) error {
					return calibrateAction(c, logger)
				},
			},
			{
				Name:  "schema",
				Usage: "print the JSON schema of correspondence config files",
				Action: func(c *cli.Context) error {
					b, err := json.MarshalIndent(transform.CorrespondenceConfigSchema(), "", "  ")
					if err != nil {
						return err
					}
					printf(c.App.Writer, "%s", b)
					return nil
				},
			},
		},
	}
	return app
}

type homographyResult struct {
	Homography   *transform.Homography         `json:"homography"`
	Reprojection *transform.ReprojectionReport `json:"reprojection"`
}

func homographyAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := transform.NewCorrespondenceConfigFromJSONFile(c.String(flagConfig))
	if err != nil {
		return err
	}
	if !cfg.HasHomography() {
		return errors.Errorf("%s has no source_points/target_points", c.String(flagConfig))
	}
	est, err := transform.NewEstimator(cfg.Estimator, logger.Sublogger("estimator"))
	if err != nil {
		return err
	}
	pts := cfg.PointCorrespondences()
	h, err := est.EstimateHomography(pts)
	if err != nil {
		return errors.Wrap(err, "cannot estimate homography")
	}
	report, err := transform.HomographyReprojection(h, pts)
	if err != nil {
		return err
	}
	if c.Bool(flagJSON) {
		return printJSON(c.App.Writer, homographyResult{h, report})
	}
	printf(c.App.Writer, "%s", matrixTable("Homography", h.Matrix()))
	printf(c.App.Writer, "%s", reportTable(report))
	return nil
}

type calibrationResult struct {
	Config       string                        `json:"config"`
	Parameters   *transform.CameraParameters   `json:"parameters"`
	Reprojection *transform.ReprojectionReport `json:"reprojection"`
}

// calibrateFile runs calibration on a single config file.
func calibrateFile(path string, logger logging.Logger) (*calibrationResult, error) {
	cfg, err := transform.NewCorrespondenceConfigFromJSONFile(path)
	if err != nil {
		return nil, err
	}
	if !cfg.HasCamera() {
		return nil, errors.Errorf("%s has no image_points/world_points", path)
	}
	est, err := transform.NewEstimator(cfg.Estimator, logger)
	if err != nil {
		return nil, err
	}
	pts := cfg.CameraCorrespondences()
	params, err := est.CalibrateCamera(pts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot calibrate %s", path)
	}
	report, err := transform.CameraReprojection(params.CameraMatrix, pts)
	if err != nil {
		return nil, err
	}
	return &calibrationResult{Config: path, Parameters: params, Reprojection: report}, nil
}

func calibrateAction(c *cli.Context, logger logging.Logger) error {
	paths := c.StringSlice(flagConfig)
	results := make([]*calibrationResult, len(paths))

	g, ctx := errgroup.WithContext(c.Context)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := calibrateFile(path, logger.Sublogger("estimator"))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		warnIfSuspicious(c.App.ErrWriter, res)
	}
	if c.Bool(flagJSON) {
		if err := printJSON(c.App.Writer, results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			printf(c.App.Writer, "%s", parametersTable(res.Config, res.Parameters))
			printf(c.App.Writer, "%s", reportTable(res.Reprojection))
		}
	}

	if out := c.String(flagPlot); out != "" {
		if err := plotResiduals(out, results); err != nil {
			return err
		}
		infof(c.App.ErrWriter, "wrote residual plot to %s", out)
	}
	if out := c.String(flagIntrinsicsOut); out != "" {
		intrinsics := results[0].Parameters.PinholeIntrinsics(c.Int(flagWidth), c.Int(flagHeight))
		if err := intrinsics.CheckValid(); err != nil {
			return errors.Wrap(err, "cannot write intrinsics, set --width and --height")
		}
		if err := intrinsics.WriteJSONFile(out); err != nil {
			return err
		}
		infof(c.App.ErrWriter, "wrote intrinsics to %s", out)
	}
	return nil
}
