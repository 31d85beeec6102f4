package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// decodeInto decodes body into T. caps extracts the optional session fields
// the response type carries.
func decodeInto[T any](body []byte, caps func(*T) (*string, *domain.ResultCode)) (*ports.Response, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}

	resp := &ports.Response{Value: &out}
	if caps != nil {
		resp.SessionData, resp.ResultCode = caps(&out)
	}
	return resp, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Do performs req through client and returns the typed response value.
func Do[T any](ctx context.Context, client ports.APIClient, req ports.Request) (*T, error) {
	resp, err := client.Perform(ctx, req)
	if err != nil {
		return nil, err
	}
	return Value[T](resp)
}

// Value unwraps the typed value of resp.
func Value[T any](resp *ports.Response) (*T, error) {
	out, ok := resp.Value.(*T)
	if !ok {
		var want *T
		return nil, &UnknownError{Description: fmt.Sprintf("expected %T, got %T", want, resp.Value)}
	}
	return out, nil
}
