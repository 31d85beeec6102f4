package checkout

import (
	"context"
	"sync"

	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// SelfRetainingClient hands each call to a detached goroutine that owns the
// request until it completes. The call survives the caller going away:
// neither dropping the client nor cancelling the caller's context aborts it.
// If the inner client never returns, the goroutine leaks; bounding that is
// the inner client's job (transport timeout).
type SelfRetainingClient struct {
	inner    ports.APIClient
	onDeinit func()
	inflight sync.WaitGroup
}

// NewSelfRetainingClient wraps inner. onDeinit, if set, runs once after every
// call has delivered its result.
func NewSelfRetainingClient(inner ports.APIClient, onDeinit func()) *SelfRetainingClient {
	return &SelfRetainingClient{inner: inner, onDeinit: onDeinit}
}

// PerformAsync starts req and returns immediately. completion may be nil.
func (c *SelfRetainingClient) PerformAsync(ctx context.Context, req ports.Request, completion func(*ports.Response, error)) {
	ctx = context.WithoutCancel(ctx)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		resp, err := c.inner.Perform(ctx, req)
		if completion != nil {
			completion(resp, err)
		}
		if c.onDeinit != nil {
			c.onDeinit()
		}
	}()
}

// Perform waits for the result, but stops waiting (without stopping the
// request) when ctx ends.
func (c *SelfRetainingClient) Perform(ctx context.Context, req ports.Request) (*ports.Response, error) {
	type result struct {
		resp *ports.Response
		err  error
	}
	done := make(chan result, 1)

	c.PerformAsync(ctx, req, func(resp *ports.Response, err error) {
		done <- result{resp, err}
	})

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until every detached call has finished.
func (c *SelfRetainingClient) Wait() {
	c.inflight.Wait()
}
