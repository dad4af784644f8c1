package transform

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/dlt/utils"
)

// CameraCorrespondence pairs an image point with the world point that projects onto it.
type CameraCorrespondence struct {
	Image r2.Point
	World r3.Vector
}

// CameraParameters is the decomposition of a 3x4 camera matrix C into intrinsic and extrinsic
// parameters, such that C = (1/Rho) * Intrinsics * [Rotation | Translation].
type CameraParameters struct {
	// CameraMatrix is the estimated 3x4 matrix the parameters were decomposed from.
	CameraMatrix *mat.Dense
	// Rho resolves the homogeneous scale of CameraMatrix. It is always taken positive.
	Rho            float64
	PrincipalPoint r2.Point
	// SkewAngle is the angle, in radians, between a1 x a3 and a2 x a3 where a_i are the rows of
	// the left 3x3 block of CameraMatrix. pi/2 means no skew.
	SkewAngle float64
	// CosSkew is cos(SkewAngle).
	CosSkew float64
	// Alpha and Beta are the focal scale factors along the image axes, in pixels.
	Alpha float64
	Beta  float64
	// Intrinsics is the 3x3 intrinsic matrix K.
	Intrinsics  *mat.Dense
	Rotation    *mat.Dense
	Translation r3.Vector
	SkewModel   SkewModel
}

// cameraLayout encodes x_i = C·X_w for each correspondence:
//
//	[-x_w, -y_w, -z_w, -1, 0, 0, 0, 0, x_i*x_w, x_i*y_w, x_i*z_w, x_i]
//	[0, 0, 0, 0, -x_w, -y_w, -z_w, -1, y_i*x_w, y_i*y_w, y_i*z_w, y_i]
var cameraLayout = dltLayout[CameraCorrespondence]{
	name:      "camera",
	cols:      12,
	minPoints: 6,
	rows: func(c CameraCorrespondence, r0, r1 []float64) {
		xi, yi := c.Image.X, c.Image.Y
		xw, yw, zw := c.World.X, c.World.Y, c.World.Z
		copy(r0, []float64{-xw, -yw, -zw, -1, 0, 0, 0, 0, xi * xw, xi * yw, xi * zw, xi})
		copy(r1, []float64{0, 0, 0, 0, -xw, -yw, -zw, -1, yi * xw, yi * yw, yi * zw, yi})
	},
}

// EstimateCameraMatrix returns the 3x4 camera matrix minimizing the algebraic error over pts.
// The matrix is defined up to a positive scale: its sign is chosen so that most world points
// have a positive homogeneous depth. At least 6 correspondences, not all coplanar, are needed.
func (e *Estimator) EstimateCameraMatrix(pts []CameraCorrespondence) (*mat.Dense, error) {
	work := pts
	var imageTInv, worldU *mat.Dense
	if e.cfg.NormalizePoints && len(pts) > 0 {
		images := make([]r2.Point, len(pts))
		worlds := make([]r3.Vector, len(pts))
		for i, pt := range pts {
			images[i], worlds[i] = pt.Image, pt.World
		}
		var normImages []r2.Point
		var normWorlds []r3.Vector
		normImages, _, imageTInv = normalizePoints(images)
		normWorlds, worldU = normalizeVectors(worlds)
		work = make([]CameraCorrespondence, len(pts))
		for i := range pts {
			work[i] = CameraCorrespondence{Image: normImages[i], World: normWorlds[i]}
		}
	}

	sol, err := solveDLT(work, cameraLayout, e.cfg.RankTolerance)
	if err != nil {
		return nil, err
	}
	e.logSolution(cameraLayout.name, sol)

	c := mat.NewDense(3, 4, sol.vector)
	if imageTInv != nil {
		// x_n ~ Cn·X_n  =>  x ~ T^-1·Cn·U·X
		var denorm mat.Dense
		denorm.Product(imageTInv, c, worldU)
		c = &denorm
	}
	if orientInFront(c, pts) {
		e.logger.Debug("flipped camera matrix sign so world points lie in front of the camera")
	}
	return c, nil
}

// orientInFront negates c in place when the majority of world points would be behind the
// camera, and reports whether it did.
func orientInFront(c *mat.Dense, pts []CameraCorrespondence) bool {
	behind := 0
	for _, pt := range pts {
		w := c.At(2, 0)*pt.World.X + c.At(2, 1)*pt.World.Y + c.At(2, 2)*pt.World.Z + c.At(2, 3)
		if w < 0 {
			behind++
		}
	}
	if 2*behind <= len(pts) {
		return false
	}
	c.Scale(-1, c)
	return true
}

// CalibrateCamera estimates the camera matrix of pts and decomposes it.
func (e *Estimator) CalibrateCamera(pts []CameraCorrespondence) (*CameraParameters, error) {
	c, err := e.EstimateCameraMatrix(pts)
	if err != nil {
		return nil, err
	}
	return e.DecomposeCameraMatrix(c)
}

// DecomposeCameraMatrix factors a 3x4 camera matrix C = [A | b] into scale, principal point,
// skew, focal scale factors, rotation and translation in a single closed-form pass. Rho is
// taken positive, so a C whose true scale is negative yields an inverted geometry; callers
// should pass a matrix oriented with the points in front of the camera (as
// EstimateCameraMatrix returns it).
func (e *Estimator) DecomposeCameraMatrix(c *mat.Dense) (*CameraParameters, error) {
	if r, cols := c.Dims(); r != 3 || cols != 4 {
		return nil, errors.Errorf("camera matrix must be 3x4, got %dx%d", r, cols)
	}
	for i := 0; i < 3; i++ {
		if !utils.IsFinite(mat.Row(nil, i, c)...) {
			return nil, NewNumericalDegeneracyError("camera matrix has a NaN or infinite entry")
		}
	}
	a1 := r3.Vector{X: c.At(0, 0), Y: c.At(0, 1), Z: c.At(0, 2)}
	a2 := r3.Vector{X: c.At(1, 0), Y: c.At(1, 1), Z: c.At(1, 2)}
	a3 := r3.Vector{X: c.At(2, 0), Y: c.At(2, 1), Z: c.At(2, 2)}
	b := mat.NewVecDense(3, []float64{c.At(0, 3), c.At(1, 3), c.At(2, 3)})

	a3Norm := a3.Norm()
	if a3Norm == 0 {
		return nil, NewNumericalDegeneracyError("third row of the camera matrix is zero")
	}
	rho := 1 / a3Norm
	rho2 := rho * rho

	principal := r2.Point{X: rho2 * a1.Dot(a3), Y: rho2 * a2.Dot(a3)}

	a13 := a1.Cross(a3)
	a23 := a2.Cross(a3)
	a13Norm, a23Norm := a13.Norm(), a23.Norm()
	if a13Norm == 0 || a23Norm == 0 {
		return nil, NewNumericalDegeneracyError("an image axis of the camera matrix is parallel to the optical axis")
	}
	cosTheta := utils.Clamp(a13.Dot(a23)/(a13Norm*a23Norm), -1, 1)
	theta := math.Acos(cosTheta)
	sinTheta := math.Sin(theta)
	if sinTheta <= e.cfg.SkewTolerance {
		return nil, NewNumericalDegeneracyError(
			fmt.Sprintf("skew angle %.3g rad is too close to 0 or pi to recover a rotation", theta))
	}

	alpha := rho2 * a13Norm * sinTheta
	beta := rho2 * a23Norm * sinTheta

	r1 := a23.Mul(1 / a23Norm)
	r3v := a3.Mul(1 / a3Norm)
	r2v := r3v.Cross(r1)
	rotation := mat.NewDense(3, 3, []float64{
		r1.X, r1.Y, r1.Z,
		r2v.X, r2v.Y, r2v.Z,
		r3v.X, r3v.Y, r3v.Z,
	})

	var skew float64
	switch e.cfg.SkewModel {
	case SkewArctangent:
		skew = -alpha * math.Atan(theta)
	default:
		skew = alpha * cosTheta / sinTheta
	}
	k := mat.NewDense(3, 3, []float64{
		alpha, skew, principal.X,
		0, beta / sinTheta, principal.Y,
		0, 0, 1,
	})

	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, NewNumericalDegeneracyError(fmt.Sprintf("intrinsic matrix is singular: %v", err))
	}
	var t mat.VecDense
	t.MulVec(&kInv, b)
	t.ScaleVec(rho, &t)

	params := &CameraParameters{
		CameraMatrix:   mat.DenseCopyOf(c),
		Rho:            rho,
		PrincipalPoint: principal,
		SkewAngle:      theta,
		CosSkew:        cosTheta,
		Alpha:          alpha,
		Beta:           beta,
		Intrinsics:     k,
		Rotation:       rotation,
		Translation:    r3.Vector{X: t.AtVec(0), Y: t.AtVec(1), Z: t.AtVec(2)},
		SkewModel:      e.cfg.SkewModel,
	}
	e.logger.Debugw("decomposed camera matrix",
		"rho", rho, "alpha", alpha, "beta", beta, "skew_angle", theta, "principal_point", principal)
	return params, nil
}

// Recompose returns (1/Rho) * K * [R | t], which equals CameraMatrix for the cotangent skew model.
func (params *CameraParameters) Recompose() *mat.Dense {
	rt := mat.NewDense(3, 4, nil)
	rt.Augment(params.Rotation, mat.NewVecDense(3, []float64{
		params.Translation.X, params.Translation.Y, params.Translation.Z,
	}))
	var out mat.Dense
	out.Mul(params.Intrinsics, rt)
	out.Scale(1/params.Rho, &out)
	return &out
}

// Project maps a world point to the image with the estimated camera matrix.
func (params *CameraParameters) Project(world r3.Vector) (r2.Point, error) {
	return ProjectPoint(params.CameraMatrix, world)
}

// CameraCenter returns the position of the camera in world coordinates, -R^T·t.
func (params *CameraParameters) CameraCenter() r3.Vector {
	var center mat.VecDense
	center.MulVec(params.Rotation.T(), mat.NewVecDense(3, []float64{
		params.Translation.X, params.Translation.Y, params.Translation.Z,
	}))
	return r3.Vector{X: -center.AtVec(0), Y: -center.AtVec(1), Z: -center.AtVec(2)}
}

// PinholeIntrinsics approximates the decomposition with a skew-free pinhole model of the given
// image size. The vertical focal length absorbs the 1/sin(theta) factor of K.
func (params *CameraParameters) PinholeIntrinsics(width, height int) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     params.Intrinsics.At(0, 0),
		Fy:     params.Intrinsics.At(1, 1),
		Ppx:    params.PrincipalPoint.X,
		Ppy:    params.PrincipalPoint.Y,
	}
}

// ProjectPoint maps a world point to the image with a 3x4 camera matrix.
func ProjectPoint(c mat.Matrix, world r3.Vector) (r2.Point, error) {
	var x mat.VecDense
	x.MulVec(c, mat.NewVecDense(4, []float64{world.X, world.Y, world.Z, 1}))
	if x.AtVec(2) == 0 {
		return r2.Point{}, NewUndefinedNormalizationError(
			fmt.Sprintf("world point %v projects to infinity", world))
	}
	return r2.Point{X: x.AtVec(0) / x.AtVec(2), Y: x.AtVec(1) / x.AtVec(2)}, nil
}

type cameraParametersJSON struct {
	CameraMatrix   [][]float64 `json:"camera_matrix"`
	Rho            float64     `json:"rho"`
	PrincipalPoint [2]float64  `json:"principal_point"`
	SkewAngle      float64     `json:"skew_angle_rad"`
	CosSkew        float64     `json:"cos_skew"`
	Alpha          float64     `json:"alpha"`
	Beta           float64     `json:"beta"`
	Intrinsics     [][]float64 `json:"intrinsics"`
	Rotation       [][]float64 `json:"rotation"`
	Translation    [3]float64  `json:"translation"`
	SkewModel      SkewModel   `json:"skew_model"`
}

// MarshalJSON encodes the parameters with matrices as arrays of rows.
func (params *CameraParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(cameraParametersJSON{
		CameraMatrix:   denseRows(params.CameraMatrix),
		Rho:            params.Rho,
		PrincipalPoint: [2]float64{params.PrincipalPoint.X, params.PrincipalPoint.Y},
		SkewAngle:      params.SkewAngle,
		CosSkew:        params.CosSkew,
		Alpha:          params.Alpha,
		Beta:           params.Beta,
		Intrinsics:     denseRows(params.Intrinsics),
		Rotation:       denseRows(params.Rotation),
		Translation:    [3]float64{params.Translation.X, params.Translation.Y, params.Translation.Z},
		SkewModel:      params.SkewModel,
	})
}

func denseRows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
