package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// Config wires a Session to the host application. Only Delegate is required;
// the optional handlers replace the session's default behaviour.
type Config struct {
	ClientKey string
	Delegate  Delegate

	PaymentsHandler          PaymentsHandler
	AdditionalDetailsHandler AdditionalDetailsHandler
	ActionHandler            ActionHandler
	OrderObserver            OrderObserver

	// OnCancelOrderDone runs after every detached order cancellation.
	OnCancelOrderDone func()
}

// Session coordinates one checkout: it owns the session context and the
// client chain that keeps it current, talks to the backend on behalf of
// components and reports outcomes to the host delegate.
type Session struct {
	sc         *domain.SessionContext
	cfg        Config
	api        ports.APIClient
	canceller  *checkout.SelfRetainingClient
	dispatcher *Dispatcher
	logger     *slog.Logger

	flows sync.WaitGroup

	mu             sync.Mutex
	paymentMethods domain.PaymentMethods
	configuration  checkout.SessionConfiguration
	amount         *domain.Amount
	order          *domain.PartialPaymentOrder
	current        *attempt
	attempts       uint64
	closed         bool
}

// New builds a session from a server-issued snapshot. base performs the
// HTTP calls; the session puts its own context-tracking client on top.
func New(snapshot domain.SessionSnapshot, base ports.APIClient, cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.Delegate == nil {
		return nil, errors.New("session delegate is required")
	}
	if cfg.ClientKey == "" {
		return nil, errors.New("client key is required")
	}

	sc, err := domain.NewSessionContext(snapshot)
	if err != nil {
		return nil, err
	}

	api := checkout.NewSessionClient(base, sc)

	return &Session{
		sc:         sc,
		cfg:        cfg,
		api:        api,
		canceller:  checkout.NewSelfRetainingClient(api, cfg.OnCancelOrderDone),
		dispatcher: NewDispatcher(),
		logger:     logger.With("session_id", sc.Identifier()),
	}, nil
}

// Initialize builds a session and runs setup against the backend.
func Initialize(ctx context.Context, snapshot domain.SessionSnapshot, base ports.APIClient, cfg Config, logger *slog.Logger) (*Session, error) {
	s, err := New(snapshot, base, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := s.Setup(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	return s, nil
}

// Close stops new flows, waits for running flows and detached calls, then
// drains the dispatcher. It must not be called from a delegate callback.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.flows.Wait()
	s.canceller.Wait()
	s.dispatcher.Close()
}

func (s *Session) Identifier() string {
	return s.sc.Identifier()
}

// Snapshot returns what is needed to resume this session later.
func (s *Session) Snapshot() domain.SessionSnapshot {
	return s.sc.Snapshot()
}

// ResultCode is the last result code the backend reported.
func (s *Session) ResultCode() (domain.ResultCode, bool) {
	return s.sc.ResultCode()
}

func (s *Session) PaymentMethods() domain.PaymentMethods {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentMethods
}

func (s *Session) Configuration() checkout.SessionConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configuration
}

// Order is the partial payment order in progress, if any.
func (s *Session) Order() *domain.PartialPaymentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// Setup loads the payment methods, amount and configuration of the session.
func (s *Session) Setup(ctx context.Context) (*checkout.SetupResponse, error) {
	resp, err := checkout.Do[checkout.SetupResponse](ctx, s.api, checkout.NewSetupRequest(s.sc, s.cfg.ClientKey))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.paymentMethods = resp.PaymentMethods
	s.configuration = resp.Configuration
	amount := resp.Amount
	s.amount = &amount
	s.mu.Unlock()

	s.logger.Info("session set up",
		"amount", resp.Amount.String(),
		"payment_methods", len(resp.PaymentMethods.Regular),
		"stored_payment_methods", len(resp.PaymentMethods.Stored),
	)
	return resp, nil
}

// SubmitPayment posts the payments call. A pending partial payment order is
// attached when data carries none.
func (s *Session) SubmitPayment(ctx context.Context, data domain.PaymentComponentData) (*PaymentResult, error) {
	if data.PaymentMethod == nil {
		return nil, domain.NewMissingRequiredFieldError("paymentMethod")
	}
	data = s.withSessionDefaults(data)

	resp, err := checkout.Do[checkout.PaymentsResponse](ctx, s.api, checkout.NewPaymentsRequest(s.sc, s.cfg.ClientKey, data))
	if err != nil {
		return nil, err
	}
	return s.paymentResult(resp), nil
}

// ProvideAdditionalDetails posts the paymentDetails call after an action.
func (s *Session) ProvideAdditionalDetails(ctx context.Context, data domain.ActionComponentData) (*PaymentResult, error) {
	if len(data.Details) == 0 {
		return nil, domain.NewMissingRequiredFieldError("details")
	}

	resp, err := checkout.Do[checkout.PaymentsResponse](ctx, s.api, checkout.NewPaymentDetailsRequest(s.sc, s.cfg.ClientKey, data))
	if err != nil {
		return nil, err
	}
	return s.paymentResult(resp), nil
}

// CheckBalance asks the backend what is left on a gift card style method.
// An empty balance is reported as domain.ErrZeroBalance.
func (s *Session) CheckBalance(ctx context.Context, data domain.PaymentComponentData) (*domain.Balance, error) {
	if data.PaymentMethod == nil {
		return nil, domain.NewMissingRequiredFieldError("paymentMethod")
	}
	data = s.withSessionDefaults(data)

	resp, err := checkout.Do[checkout.BalanceResponse](ctx, s.api, checkout.NewBalanceRequest(s.sc, s.cfg.ClientKey, data))
	if err != nil {
		return nil, err
	}

	balance := &domain.Balance{
		AvailableAmount:  resp.Balance,
		TransactionLimit: resp.TransactionLimit,
	}
	if balance.AvailableAmount.IsZero() {
		return nil, domain.ErrZeroBalance
	}
	return balance, nil
}

// RequestOrder opens a partial payment order for the session amount.
func (s *Session) RequestOrder(ctx context.Context) (*domain.PartialPaymentOrder, error) {
	resp, err := checkout.Do[checkout.CreateOrderResponse](ctx, s.api, checkout.NewCreateOrderRequest(s.sc, s.cfg.ClientKey))
	if err != nil {
		return nil, err
	}

	order := resp.Order()
	s.mu.Lock()
	s.order = order
	s.mu.Unlock()

	s.logger.Info("partial payment order created", "psp_reference", order.PSPReference)
	return order, nil
}

// CancelOrder cancels order in the background. The call finishes even if
// ctx is cancelled or the session is dropped; failures are only logged. The
// returned channel yields the outcome once and is then closed.
func (s *Session) CancelOrder(ctx context.Context, order *domain.PartialPaymentOrder) <-chan error {
	done := make(chan error, 1)
	if order == nil {
		done <- domain.NewMissingRequiredFieldError("order")
		close(done)
		return done
	}

	req := checkout.NewCancelOrderRequest(s.sc, s.cfg.ClientKey, order)
	s.canceller.PerformAsync(ctx, req, func(_ *ports.Response, err error) {
		if err != nil {
			s.logger.Warn("order cancellation failed", "psp_reference", order.PSPReference, "error", err)
		} else {
			s.forgetOrder(order.PSPReference)
			s.logger.Info("order cancelled", "psp_reference", order.PSPReference)
		}
		done <- err
		close(done)
	})
	return done
}

// DisableStoredPaymentMethod removes a stored payment method for the shopper.
func (s *Session) DisableStoredPaymentMethod(ctx context.Context, storedID string) error {
	if storedID == "" {
		return domain.NewMissingRequiredFieldError("storedPaymentMethodId")
	}

	resp, err := checkout.Do[checkout.DisableTokenResponse](ctx, s.api, checkout.NewDisableTokenRequest(s.sc, s.cfg.ClientKey, storedID))
	if err != nil {
		return err
	}
	if resp.ResultCode != checkout.DisabledResultCode {
		return &checkout.UnknownError{Description: fmt.Sprintf("disableToken returned result code %q", resp.ResultCode)}
	}

	s.mu.Lock()
	s.paymentMethods = s.paymentMethods.Without(storedID)
	s.mu.Unlock()
	return nil
}

func (s *Session) withSessionDefaults(data domain.PaymentComponentData) domain.PaymentComponentData {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data.Order == nil && s.order != nil {
		data.Order = s.order
	}
	if data.Amount == nil {
		switch {
		case data.Order != nil && data.Order.HasRemainder():
			remaining := *data.Order.RemainingAmount
			data.Amount = &remaining
		case s.amount != nil:
			amount := *s.amount
			data.Amount = &amount
		}
	}
	return data
}

func (s *Session) paymentResult(resp *checkout.PaymentsResponse) *PaymentResult {
	if resp.Order != nil {
		s.mu.Lock()
		if resp.Order.HasRemainder() {
			s.order = resp.Order
		} else {
			s.order = nil
		}
		s.mu.Unlock()
	}

	return &PaymentResult{
		ResultCode:    resp.ResultCode,
		Action:        resp.Action,
		Order:         resp.Order,
		SessionResult: resp.SessionResult,
	}
}

func (s *Session) forgetOrder(pspReference string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order != nil && s.order.PSPReference == pspReference {
		s.order = nil
	}
}

func errUnexpectedResult(code domain.ResultCode) error {
	return &checkout.UnknownError{Description: fmt.Sprintf("payment returned result code %q and no action", code)}
}
