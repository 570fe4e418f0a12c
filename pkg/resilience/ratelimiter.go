// Package resilience provides client-side request throttling for outbound
// HTTP traffic.
package resilience

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// LimiterOpts configures the token bucket.
type LimiterOpts struct {
	// Rate is the number of requests allowed per second. Zero or negative
	// disables throttling.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter throttles calls against a token bucket. A nil Limiter allows
// everything, so callers can hold one unconditionally.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a limiter, or nil when opts disable throttling.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Rate <= 0 {
		return nil
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.bucket.Wait(ctx)
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.bucket.Allow()
}

// Transport is an http.RoundTripper that waits for a token before each
// request.
type Transport struct {
	Limiter *Limiter
	Base    http.RoundTripper
}

// RoundTrip waits on the limiter, then delegates to Base (or the default
// transport).
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
