package ports

import (
	"context"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

type QueryItem struct {
	Name  string
	Value string
}

// Request describes one outbound call. Each concrete request knows how to
// decode its own response body.
type Request interface {
	Path() string
	Method() string
	Headers() map[string]string
	QueryParameters() []QueryItem
	// Body is nil for requests without a payload.
	Body() any
	Decode(body []byte) (*Response, error)
}

// Response is a decoded backend reply. SessionData and ResultCode are set
// only when the response type carries them.
type Response struct {
	StatusCode  int
	Value       any
	SessionData *string
	ResultCode  *domain.ResultCode
}

// APIClient performs a single request. Implementations decorate each other.
type APIClient interface {
	Perform(ctx context.Context, req Request) (*Response, error)
}
