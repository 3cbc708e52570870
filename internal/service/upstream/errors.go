// Package upstream holds the plumbing shared by the source adapters.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"CourtArb/internal/domain/models"
	xhttp "CourtArb/pkg/http"
)

// Classify maps a transport or decode failure onto the domain error taxonomy.
// The original error stays in the chain.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var kind error
	var se *xhttp.StatusError
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = models.ErrUpstreamTimeout
	case errors.Is(err, xhttp.ErrDecode):
		kind = models.ErrDataShape
	case errors.As(err, &se):
		if se.Code == http.StatusNotFound {
			kind = models.ErrNotFound
		} else {
			kind = models.ErrUpstreamUnavailable
		}
	case errors.As(err, &ne) && ne.Timeout():
		kind = models.ErrUpstreamTimeout
	default:
		kind = models.ErrUpstreamUnavailable
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Shape reports a structurally invalid payload.
func Shape(op, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", op, models.ErrDataShape, fmt.Sprintf(format, args...))
}
