package network

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Throttle gates outgoing requests. Wait blocks until the next request may be
// sent or ctx is done.
type Throttle interface {
	Wait(ctx context.Context) error
}

// MinIntervalThrottle spaces requests at least a fixed interval apart.
type MinIntervalThrottle struct {
	limiter *rate.Limiter
}

// NewMinIntervalThrottle returns a throttle allowing burst requests back to back
// and then one request per interval. A non-positive interval disables throttling.
func NewMinIntervalThrottle(interval time.Duration, burst int) *MinIntervalThrottle {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &MinIntervalThrottle{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until the limiter grants a token.
func (t *MinIntervalThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// ThrottleMiddleware is an http.RoundTripper that waits on a Throttle before
// every request, including each hop of a redirect chain.
type ThrottleMiddleware struct {
	Transport http.RoundTripper
	Throttle  Throttle
}

// NewThrottleMiddleware wraps transport so every request waits on throttle first.
func NewThrottleMiddleware(transport http.RoundTripper, throttle Throttle) *ThrottleMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &ThrottleMiddleware{Transport: transport, Throttle: throttle}
}

// RoundTrip implements http.RoundTripper.
func (tm *ThrottleMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if tm.Throttle != nil {
		if err := tm.Throttle.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return tm.Transport.RoundTrip(req)
}
