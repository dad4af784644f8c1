package transform

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dlt/utils"
)

// ErrNoIntrinsics is returned when pinhole intrinsics are missing or unusable.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with msg.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is the skew-free pinhole model used to exchange calibration results
// with tools that do not understand a full camera matrix.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid reports every invalid field at once. Each error wraps ErrNoIntrinsics.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics are nil")
	}
	var errs error
	if params.Width <= 0 || params.Height <= 0 {
		errs = multierr.Append(errs, NewNoIntrinsicsError(
			fmt.Sprintf("invalid image size %dx%d", params.Width, params.Height)))
	}
	for _, f := range []struct {
		name string
		val  float64
	}{{"fx", params.Fx}, {"fy", params.Fy}} {
		if f.val <= 0 || !utils.IsFinite(f.val) {
			errs = multierr.Append(errs, NewNoIntrinsicsError(fmt.Sprintf("invalid focal length %s = %g", f.name, f.val)))
		}
	}
	if params.Ppx < 0 || params.Ppy < 0 {
		errs = multierr.Append(errs, NewNoIntrinsicsError(
			fmt.Sprintf("principal point (%g, %g) is outside the image", params.Ppx, params.Ppy)))
	}
	return errs
}

// NewPinholeCameraIntrinsicsFromJSONFile reads intrinsics written by WriteJSONFile. The result is
// not validated.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	intrinsics := &PinholeCameraIntrinsics{}
	if err := readJSONFile(jsonPath, intrinsics); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// WriteJSONFile writes the intrinsics to jsonPath, indented.
func (params *PinholeCameraIntrinsics) WriteJSONFile(jsonPath string) error {
	b, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error encoding intrinsics")
	}
	//nolint:gosec
	return errors.Wrap(os.WriteFile(jsonPath, b, 0o644), "error writing JSON file")
}

// PixelToPoint back-projects a pixel to the camera-frame point at the given depth.
func (params *PinholeCameraIntrinsics) PixelToPoint(px r2.Point, depth float64) r3.Vector {
	return r3.Vector{
		X: (px.X - params.Ppx) / params.Fx * depth,
		Y: (px.Y - params.Ppy) / params.Fy * depth,
		Z: depth,
	}
}

// PointToPixel projects a camera-frame point to subpixel image coordinates.
func (params *PinholeCameraIntrinsics) PointToPixel(p r3.Vector) (r2.Point, error) {
	if p.Z == 0 {
		return r2.Point{}, NewUndefinedNormalizationError("point lies in the camera plane")
	}
	return r2.Point{X: p.X/p.Z*params.Fx + params.Ppx, Y: p.Y/p.Z*params.Fy + params.Ppy}, nil
}

// GetCameraMatrix returns K = [[fx, 0, ppx], [0, fy, ppy], [0, 0, 1]], or nil for nil intrinsics.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// ObjectToImageSpace maps a point in object space to the image plane of a thin lens of focal
// length f whose optical center sits at z = -f.
func ObjectToImageSpace(p r3.Vector, f float64) (r2.Point, error) {
	if f == 0 {
		return r2.Point{}, errors.New("focal length must be nonzero")
	}
	d := p.Z + f
	if d == 0 {
		return r2.Point{}, NewUndefinedNormalizationError(
			fmt.Sprintf("point at depth %g lies in the lens plane", p.Z))
	}
	return r2.Point{X: p.X * f / d, Y: p.Y * f / d}, nil
}

// ImageToObjectSpace is the inverse of ObjectToImageSpace for a known object depth z.
func ImageToObjectSpace(p r2.Point, z, f float64) (r3.Vector, error) {
	if f == 0 {
		return r3.Vector{}, errors.New("focal length must be nonzero")
	}
	if z+f == 0 {
		return r3.Vector{}, NewUndefinedNormalizationError(
			fmt.Sprintf("depth %g lies in the lens plane", z))
	}
	s := (z + f) / f
	return r3.Vector{X: p.X * s, Y: p.Y * s, Z: z}, nil
}

// HomogeneousToCartesian divides the homogeneous point (kx, ky, kz, k) by k.
func HomogeneousToCartesian(kx, ky, kz, k float64) (r3.Vector, error) {
	if k == 0 {
		return r3.Vector{}, NewUndefinedNormalizationError("homogeneous point is at infinity")
	}
	return r3.Vector{X: kx / k, Y: ky / k, Z: kz / k}, nil
}
