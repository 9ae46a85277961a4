package llm

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the local request budget is exhausted.
var ErrRateLimited = errors.New("llm: rate limited")

// RateLimitedClient caps the request rate to the wrapped provider. It never
// queues: a request over budget fails immediately so callers can degrade.
type RateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows perSecond requests with the given burst. A
// non-positive rate disables limiting.
func NewRateLimitedClient(next Client, perSecond float64, burst int) *RateLimitedClient {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if !c.limiter.Allow() {
		return Response{}, ErrRateLimited
	}
	return c.next.Complete(ctx, req)
}
