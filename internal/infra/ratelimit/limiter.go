// Package ratelimit bounds request rate per identity and route with a fixed
// window counter.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Limiter answers whether one more request for (identity, route) fits in the
// current window. A rejection is returned as *LimitedError.
type Limiter interface {
	Allow(ctx context.Context, identity, route string) error
}

type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds the remaining window up to whole seconds, never
// below one.
func (e *LimitedError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func key(identity, route string) string {
	return identity + ":" + route
}
