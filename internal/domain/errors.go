package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTask       = errors.New("task is missing required fields")
	ErrUnsupportedAction = errors.New("message type not supported: only connection_request is sendable in this version")
	ErrResolutionFailed  = errors.New("identity resolution failed")
	ErrRateLimited       = errors.New("daily send limit reached for account")
	ErrNoActiveAccount   = errors.New("no active sending account for campaign")
	ErrUnauthorized      = errors.New("missing or invalid shared secret")
)
