package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dlt/rimage/transform"
	"go.viam.com/dlt/utils"
)

// Reprojection errors above this many pixels on noise-free input usually mean swapped points.
const maxExpectedResidual = 1.0

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a message prefixed with a bold "Info: ".
func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold).Fprint(w, "Info: ")
	printf(w, format, a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode result")
	}
	printf(w, "%s", b)
	return nil
}

func matrixTable(title string, m mat.Matrix) string {
	t := table.NewWriter()
	t.SetTitle(title)
	_, cols := m.Dims()
	header := table.Row{"row"}
	for j := 0; j < cols; j++ {
		header = append(header, fmt.Sprintf("c%d", j))
	}
	t.AppendHeader(header)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := table.Row{i}
		for j := 0; j < cols; j++ {
			row = append(row, fmt.Sprintf("%.6g", m.At(i, j)))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func reportTable(report *transform.ReprojectionReport) string {
	t := table.NewWriter()
	t.SetTitle("Reprojection error (px)")
	t.AppendHeader(table.Row{"Points", "Mean", "Median", "Max", "RMS"})
	t.AppendRow(table.Row{
		len(report.Residuals),
		fmt.Sprintf("%.3g", report.Mean),
		fmt.Sprintf("%.3g", report.Median),
		fmt.Sprintf("%.3g", report.Max),
		fmt.Sprintf("%.3g", report.RMS),
	})
	return t.Render()
}

func parametersTable(name string, params *transform.CameraParameters) string {
	t := table.NewWriter()
	t.SetTitle(name)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRows([]table.Row{
		{"rho", fmt.Sprintf("%.6g", params.Rho)},
		{"principal point", fmt.Sprintf("(%.3f, %.3f)", params.PrincipalPoint.X, params.PrincipalPoint.Y)},
		{"skew angle", fmt.Sprintf("%.4f deg", utils.RadToDeg(params.SkewAngle))},
		{"cos(skew)", fmt.Sprintf("%.3g", params.CosSkew)},
		{"alpha", fmt.Sprintf("%.3f", params.Alpha)},
		{"beta", fmt.Sprintf("%.3f", params.Beta)},
		{"translation", fmt.Sprintf("X:%.4f, Y:%.4f, Z:%.4f",
			params.Translation.X, params.Translation.Y, params.Translation.Z)},
		{"skew model", string(params.SkewModel)},
	})
	return t.Render() + "\n" + matrixTable("K", params.Intrinsics) + "\n" + matrixTable("R", params.Rotation)
}

func warnIfSuspicious(w io.Writer, res *calibrationResult) {
	if res.Reprojection.Max > maxExpectedResidual || math.IsInf(res.Reprojection.Max, 1) {
		warningf(w, "%s: max reprojection error is %.3g px", res.Config, res.Reprojection.Max)
	}
	if !utils.Float64AlmostEqual(res.Parameters.CosSkew, 0, 1e-3) {
		warningf(w, "%s: image axes are skewed by %.3f deg", res.Config,
			90-utils.RadToDeg(res.Parameters.SkewAngle))
	}
	if res.Parameters.SkewModel == transform.SkewArctangent {
		warningf(w, "%s: intrinsics use the legacy arctangent skew term", res.Config)
	}
}
