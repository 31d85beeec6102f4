package session

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

// attempt is one logical payment: a submit, any number of actions and
// details calls, and exactly one terminal callback to the host.
type attempt struct {
	id        uint64
	component Component
	finished  atomic.Bool
}

func (s *Session) beginAttempt(component Component) *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	s.current = &attempt{id: s.attempts, component: component}
	return s.current
}

// openAttempt continues the open attempt, or starts one when a component
// reports without a preceding submit.
func (s *Session) openAttempt(component Component) *attempt {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil || cur.finished.Load() {
		return s.beginAttempt(component)
	}
	return cur
}

// latestAttempt is the attempt a terminal event belongs to. A finished
// attempt only absorbs further events from the component that ran it;
// another component reporting starts an attempt of its own.
func (s *Session) latestAttempt(component Component) *attempt {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil || (cur.finished.Load() && !sameComponent(cur.component, component)) {
		return s.beginAttempt(component)
	}
	return cur
}

// sameComponent compares by identity. Values of non-comparable types never match.
func sameComponent(a, b Component) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// DidSubmit is called by a payment component when the shopper submits.
// It returns immediately; the outcome reaches the host delegate.
func (s *Session) DidSubmit(ctx context.Context, data domain.PaymentComponentData, component Component) {
	att := s.beginAttempt(component)

	if h := s.cfg.PaymentsHandler; h != nil {
		s.dispatch("payments handler", func() { h.DidSubmit(ctx, data, component, s) })
		return
	}

	s.goFlow(func() {
		result, err := s.SubmitPayment(ctx, data)
		if err != nil {
			s.fail(att, err, component)
			return
		}
		s.handlePaymentResult(att, result, component)
	})
}

// DidProvide is called by an action component with the details it collected.
func (s *Session) DidProvide(ctx context.Context, data domain.ActionComponentData, component Component) {
	att := s.openAttempt(component)

	if h := s.cfg.AdditionalDetailsHandler; h != nil {
		s.dispatch("additional details handler", func() { h.DidProvide(ctx, data, component, s) })
		return
	}

	s.goFlow(func() {
		result, err := s.ProvideAdditionalDetails(ctx, data)
		if err != nil {
			s.fail(att, err, component)
			return
		}
		s.handlePaymentResult(att, result, component)
	})
}

// DidFail is called by a component that could not continue. A shopper
// cancelling halfway through a partial payment also cancels the order.
func (s *Session) DidFail(ctx context.Context, err error, component Component) {
	att := s.latestAttempt(component)

	if errors.Is(err, domain.ErrCancelled) {
		if order := s.Order(); order != nil {
			s.CancelOrder(ctx, order)
		}
	}
	s.fail(att, err, component)
}

// DidComplete is called by a component that finished on its own, such as a
// voucher being shown. The last known result code is reported.
func (s *Session) DidComplete(_ context.Context, component Component) {
	att := s.latestAttempt(component)

	code, ok := s.sc.ResultCode()
	if !ok {
		code = domain.ResultReceived
	}
	s.complete(att, s.result(code, ""), component)
}

// DidOpenExternalApplication is informational: the shopper left for a
// banking or wallet app and the flow continues when they come back.
func (s *Session) DidOpenExternalApplication(_ context.Context, component Component) {
	s.logger.Info("external application opened", "payment_method", component.PaymentMethodType())
}

// Complete lets an advanced-flow handler report the outcome of a call it made itself.
func (s *Session) Complete(result Result, component Component) {
	s.complete(s.latestAttempt(component), result, component)
}

// Fail lets an advanced-flow handler report a failure of a call it made itself.
func (s *Session) Fail(err error, component Component) {
	s.fail(s.latestAttempt(component), err, component)
}

func (s *Session) handlePaymentResult(att *attempt, result *PaymentResult, component Component) {
	if result.Action != nil {
		h := s.cfg.ActionHandler
		if h == nil {
			s.fail(att, domain.ErrActionNotHandled, component)
			return
		}
		action := *result.Action
		s.dispatch("action handler", func() { h.HandleAction(action, component, s) })
		return
	}

	if result.ResultCode == domain.ResultAuthorised && result.Order != nil && result.Order.HasRemainder() && s.cfg.OrderObserver != nil {
		// The order continues with another payment method. The attempt stays
		// open so a cancellation still reaches the host.
		order := *result.Order
		obs := s.cfg.OrderObserver
		s.dispatch("order observer", func() { obs.DidUpdateOrder(order, component, s) })
		return
	}

	if !result.ResultCode.FinishesFlow() {
		s.fail(att, errUnexpectedResult(result.ResultCode), component)
		return
	}
	s.complete(att, s.result(result.ResultCode, result.SessionResult), component)
}

func (s *Session) result(code domain.ResultCode, sessionResult string) Result {
	return Result{
		ResultCode:    code,
		SessionID:     s.sc.Identifier(),
		SessionResult: sessionResult,
	}
}

func (s *Session) complete(att *attempt, result Result, component Component) {
	if !att.finished.CompareAndSwap(false, true) {
		s.logger.Warn("dropping duplicate completion", "attempt", att.id, "result_code", result.ResultCode)
		return
	}
	s.logger.Info("payment finished", "attempt", att.id, "result_code", result.ResultCode)
	s.dispatch("did complete", func() { s.cfg.Delegate.DidComplete(result, component, s) })
}

func (s *Session) fail(att *attempt, err error, component Component) {
	if !att.finished.CompareAndSwap(false, true) {
		s.logger.Warn("dropping duplicate failure", "attempt", att.id, "error", err)
		return
	}
	s.logger.Warn("payment failed", "attempt", att.id, "error", err)
	s.dispatch("did fail", func() { s.cfg.Delegate.DidFail(err, component, s) })
}

// dispatch queues a host callback. Callbacks queued after Close are lost,
// so they are at least logged.
func (s *Session) dispatch(callback string, fn func()) {
	if !s.dispatcher.Async(fn) {
		s.logger.Error("session closed, callback not delivered", "callback", callback)
	}
}

// goFlow runs fn on its own goroutine unless the session is closing. The
// Add happens under mu so it never races the Wait in Close.
func (s *Session) goFlow(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Error("session closed, flow not started")
		return
	}
	s.flows.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.flows.Done()
		fn()
	}()
}
