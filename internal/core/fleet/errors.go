package fleet

import "errors"

var (
	ErrVesselNotFound = errors.New("vessel not found")
	ErrUnknownClass   = errors.New("unknown vessel class")
	ErrDuplicateClass = errors.New("duplicate vessel class")
	ErrInvalidClass   = errors.New("invalid vessel class")
	ErrNoPropulsion   = errors.New("vessel has no propulsion")
)
