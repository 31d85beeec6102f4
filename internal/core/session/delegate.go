package session

import (
	"context"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

// Component is the UI element a flow started from. Components are compared
// by identity to tell a repeated terminal event from a new component's, so
// pass pointers or other comparable values.
type Component interface {
	PaymentMethodType() string
}

// Delegate is implemented once per checkout by the host application. Every
// payment attempt ends in exactly one of the two calls.
type Delegate interface {
	DidComplete(result Result, component Component, session *Session)
	DidFail(err error, component Component, session *Session)
}

// PaymentsHandler lets the host take over the payments call for a submit
// instead of the session's own request.
type PaymentsHandler interface {
	DidSubmit(ctx context.Context, data domain.PaymentComponentData, component Component, session *Session)
}

// AdditionalDetailsHandler lets the host take over the paymentDetails call.
type AdditionalDetailsHandler interface {
	DidProvide(ctx context.Context, data domain.ActionComponentData, component Component, session *Session)
}

// ActionHandler executes backend actions (redirects, challenges, vouchers)
// and later reports back through Session.DidProvide or Session.DidFail.
type ActionHandler interface {
	HandleAction(action domain.Action, component Component, session *Session)
}

// OrderObserver is told when a partial payment left money to pay.
type OrderObserver interface {
	DidUpdateOrder(order domain.PartialPaymentOrder, component Component, session *Session)
}

// Result is the outcome handed to Delegate.DidComplete.
type Result struct {
	ResultCode    domain.ResultCode
	SessionID     string
	SessionResult string
}

// PaymentResult is the decoded reply to a payments or paymentDetails call.
// Either Action is set and the flow continues, or ResultCode ends it.
type PaymentResult struct {
	ResultCode    domain.ResultCode
	Action        *domain.Action
	Order         *domain.PartialPaymentOrder
	SessionResult string
}
