package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrInvalidVesselID      = errors.New("invalid vessel id")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
	ErrUnknownAction        = errors.New("unknown action")
	ErrListenerFailed       = errors.New("failed to create listener")
)
