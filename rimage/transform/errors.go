package transform

import "github.com/pkg/errors"

var (
	// ErrDegenerateInput is when there are too few correspondences, or they constrain the
	// coefficient matrix to a null space of more than one dimension.
	ErrDegenerateInput = errors.New("degenerate correspondences")

	// ErrUndefinedNormalization is when the entry used to fix the homogeneous scale is zero.
	ErrUndefinedNormalization = errors.New("normalizing entry is zero")

	// ErrNumericalDegeneracy is when a camera matrix cannot be decomposed without dividing by
	// (near) zero, e.g. a skew angle close to 0 or pi.
	ErrNumericalDegeneracy = errors.New("numerically degenerate camera matrix")
)

// NewDegenerateInputError is used when the correspondences cannot determine the transform.
func NewDegenerateInputError(msg string) error {
	return errors.Wrap(ErrDegenerateInput, msg)
}

// NewUndefinedNormalizationError is used when a homogeneous quantity cannot be normalized.
func NewUndefinedNormalizationError(msg string) error {
	return errors.Wrap(ErrUndefinedNormalization, msg)
}

// NewNumericalDegeneracyError is used when a decomposition step becomes ill-conditioned.
func NewNumericalDegeneracyError(msg string) error {
	return errors.Wrap(ErrNumericalDegeneracy, msg)
}
