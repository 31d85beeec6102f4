package checkout

import (
	"context"
	"fmt"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// SessionState is the slice of the session context the client writes to.
// The session owns the context; the client only holds this handle.
type SessionState interface {
	UpdateData(data string)
	UpdateResultCode(code domain.ResultCode)
}

// SessionClient keeps the session context in step with the backend: every
// successful response rotates the continuation token and, when present,
// records the result code. Failed calls leave the context untouched. A
// response without sessionData is an UnknownError, but its result code is
// still recorded.
type SessionClient struct {
	inner ports.APIClient
	state SessionState
}

func NewSessionClient(inner ports.APIClient, state SessionState) *SessionClient {
	return &SessionClient{inner: inner, state: state}
}

func (c *SessionClient) Perform(ctx context.Context, req ports.Request) (*ports.Response, error) {
	resp, err := c.inner.Perform(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.ResultCode != nil {
		c.state.UpdateResultCode(*resp.ResultCode)
	}
	if resp.SessionData == nil {
		return nil, &UnknownError{Description: fmt.Sprintf("session response for %s has no sessionData", req.Path())}
	}
	c.state.UpdateData(*resp.SessionData)

	return resp, nil
}
