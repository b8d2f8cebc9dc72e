package derivative

import "errors"

var (
	// ErrDerivativeNotFound signals that no derivative of the requested type exists.
	ErrDerivativeNotFound = errors.New("derivative not found")
)
