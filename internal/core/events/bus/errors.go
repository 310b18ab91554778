package bus

import "errors"

var (
	ErrNilHandler     = errors.New("bus: nil handler")
	ErrEmptyEventType = errors.New("bus: empty event type")
	ErrNilEvent       = errors.New("bus: nil event")
)
