package common

import (
	"context"
	"time"
)

// CreateContext returns a context bounded by duration. A non-positive
// duration yields a plain cancellable context.
func CreateContext(duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), duration)
}

// WithOptionalTimeout bounds parent by d unless d is non-positive
func WithOptionalTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
