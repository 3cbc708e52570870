package upstream

import (
	"context"
	"fmt"

	"CourtArb/internal/domain/models"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// NewLimiter returns a token bucket allowing rps requests per second.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks for a token. Running out of time while queued counts as an
// upstream timeout.
func Wait(ctx context.Context, l *rate.Limiter, op string) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w: %w", op, models.ErrUpstreamTimeout, err)
	}
	return nil
}
