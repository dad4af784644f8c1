package main

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/dlt/utils"
)

// plotResiduals saves one scatter series of reprojection residuals per result. The format is
// picked from the extension of out. Infinite residuals are left out.
func plotResiduals(out string, results []*calibrationResult) error {
	p := plot.New()
	p.Title.Text = "Reprojection residuals"
	p.X.Label.Text = "correspondence"
	p.Y.Label.Text = "residual (px)"
	p.Add(plotter.NewGrid())

	for i, res := range results {
		pts := make(plotter.XYs, 0, len(res.Reprojection.Residuals))
		for j, r := range res.Reprojection.Residuals {
			if utils.IsFinite(r) {
				pts = append(pts, plotter.XY{X: float64(j), Y: r})
			}
		}
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrapf(err, "cannot plot residuals of %s", res.Config)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(scatter)
		p.Legend.Add(filepath.Base(res.Config), scatter)
	}

	if err := p.Save(8*vg.Inch, 4*vg.Inch, out); err != nil {
		return errors.Wrapf(err, "cannot save plot to %s", out)
	}
	return nil
}
