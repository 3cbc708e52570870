package models

import "errors"

// Error taxonomy shared by adapters, reconciler and aggregation loop.
// None of these is fatal; callers classify with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrDataShape           = errors.New("data shape mismatch")
	ErrInvariant           = errors.New("invariant violation")
)

// ErrorKind maps an error onto its taxonomy label (used for metrics and logs).
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, ErrDataShape):
		return "data_shape"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	default:
		return "unknown"
	}
}
