package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/card"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/session"
)

const defaultStepTimeout = 30 * time.Second

// Outcome is what happened to one submitted payment.
type Outcome struct {
	Method        string
	ResultCode    domain.ResultCode
	Action        domain.ActionType
	Remaining     *domain.Amount
	SessionResult string
	Err           error
}

type Report struct {
	SessionID string
	Outcomes  []Outcome
	// Final is set when the checkout reached a result code.
	Final *session.Result
	// OrderCancelled is set when an unfinished partial payment order was
	// cancelled at the end of the run.
	OrderCancelled bool
}

// Runner drives sessions the way a shopper-facing client would: through
// the component callbacks of session.Session.
type Runner struct {
	client      *checkout.RetryClient
	clientKey   string
	encrypter   *card.Encrypter
	stepTimeout time.Duration
	logger      *slog.Logger
}

// NewRunner builds a runner. Card fields are encrypted with the test
// encryptor understood by the sandbox.
func NewRunner(client *checkout.RetryClient, clientKey string, logger *slog.Logger) *Runner {
	keys := card.NewPublicKeyProvider(client, clientKey, 0, logger)
	return &Runner{
		client:      client,
		clientKey:   clientKey,
		encrypter:   card.NewEncrypter(keys, card.TestEncryptor{}),
		stepTimeout: defaultStepTimeout,
		logger:      logger,
	}
}

// CreateSession opens the session described by settings.
func (r *Runner) CreateSession(ctx context.Context, settings SessionSettings) (domain.SessionSnapshot, error) {
	req, err := settings.Request()
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	created, err := checkout.Do[checkout.CreateSessionResponse](ctx, r.client, req)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("create session: %w", err)
	}
	r.logger.Info("session created", "session_id", created.ID, "amount", created.Amount.Format())
	return created.Snapshot(), nil
}

// Start initialises a session from snapshot with r as its host.
func (r *Runner) Start(ctx context.Context, snapshot domain.SessionSnapshot) (*session.Session, *host, error) {
	h := newHost(ctx)
	s, err := session.Initialize(ctx, snapshot, r.client, session.Config{
		ClientKey:     r.clientKey,
		Delegate:      h,
		ActionHandler: h,
		OrderObserver: h,
	}, r.logger)
	if err != nil {
		return nil, nil, err
	}
	return s, h, nil
}

// Run submits payments one after another. More than one payment makes the
// run open a partial payment order first. Payment failures are reported in
// the outcomes; the error is for runs that could not be carried out.
func (r *Runner) Run(ctx context.Context, snapshot domain.SessionSnapshot, payments []Payment) (*Report, error) {
	if len(payments) == 0 {
		return nil, errors.New("no payments to submit")
	}

	s, h, err := r.Start(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	report := &Report{SessionID: s.Identifier()}
	if len(payments) > 1 {
		if _, err := s.RequestOrder(ctx); err != nil {
			return report, fmt.Errorf("request order: %w", err)
		}
	}

	for i := range payments {
		p := payments[i]
		details, err := p.PaymentMethod(ctx, r.encrypter)
		if err != nil {
			return report, fmt.Errorf("payment %d: %w", i+1, err)
		}

		h.begin(p)
		s.DidSubmit(ctx, domain.PaymentComponentData{PaymentMethod: details}, component(p.Method))

		ev, err := h.wait(ctx, r.stepTimeout)
		if err != nil {
			return report, fmt.Errorf("payment %d: %w", i+1, err)
		}

		outcome := Outcome{Method: p.Method, Action: h.lastAction()}
		switch {
		case ev.order != nil:
			outcome.ResultCode = domain.ResultAuthorised
			outcome.Remaining = ev.order.RemainingAmount
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		case ev.result != nil:
			outcome.ResultCode = ev.result.ResultCode
			outcome.SessionResult = ev.result.SessionResult
			report.Final = ev.result
		default:
			outcome.Err = ev.err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		break
	}

	if order := s.Order(); order != nil {
		r.logger.Info("cancelling unfinished order", "psp_reference", order.PSPReference)
		if err := <-s.CancelOrder(ctx, order); err != nil {
			return report, fmt.Errorf("cancel order: %w", err)
		}
		report.OrderCancelled = true
	}
	return report, nil
}

// CheckBalance asks the backend what is left on the gift card p, within
// the session of snapshot. The returned snapshot carries the session data
// current after the call.
func (r *Runner) CheckBalance(ctx context.Context, snapshot domain.SessionSnapshot, p Payment) (*domain.Balance, domain.SessionSnapshot, error) {
	s, _, err := r.Start(ctx, snapshot)
	if err != nil {
		return nil, snapshot, err
	}
	defer s.Close()

	details, err := p.PaymentMethod(ctx, r.encrypter)
	if err != nil {
		return nil, s.Snapshot(), err
	}
	balance, err := s.CheckBalance(ctx, domain.PaymentComponentData{PaymentMethod: details})
	return balance, s.Snapshot(), err
}

type component string

func (c component) PaymentMethodType() string { return string(c) }

type event struct {
	result *session.Result
	order  *domain.PartialPaymentOrder
	err    error
}

// host receives the session callbacks and turns them into events for Run.
type host struct {
	ctx    context.Context
	events chan event

	mu     sync.Mutex
	step   Payment
	action domain.ActionType
}

func newHost(ctx context.Context) *host {
	return &host{ctx: ctx, events: make(chan event, 4)}
}

func (h *host) begin(p Payment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.step = p
	h.action = ""
}

func (h *host) lastAction() domain.ActionType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.action
}

func (h *host) wait(ctx context.Context, timeout time.Duration) (event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-h.events:
		return ev, nil
	case <-ctx.Done():
		return event{}, ctx.Err()
	case <-timer.C:
		return event{}, fmt.Errorf("no outcome after %s", timeout)
	}
}

func (h *host) DidComplete(result session.Result, _ session.Component, _ *session.Session) {
	h.events <- event{result: &result}
}

func (h *host) DidFail(err error, _ session.Component, _ *session.Session) {
	h.events <- event{err: err}
}

func (h *host) DidUpdateOrder(order domain.PartialPaymentOrder, _ session.Component, _ *session.Session) {
	h.events <- event{order: &order}
}

func (h *host) HandleAction(action domain.Action, c session.Component, s *session.Session) {
	h.mu.Lock()
	h.action = action.Type
	details := h.step.Details
	h.mu.Unlock()

	if len(details) == 0 {
		s.DidFail(h.ctx, domain.ErrActionNotHandled, c)
		return
	}
	s.DidProvide(h.ctx, domain.ActionComponentData{
		Details:     details,
		PaymentData: action.PaymentData(),
	}, c)
}
