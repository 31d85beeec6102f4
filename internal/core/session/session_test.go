package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports/mocks"
	"github.com/DanielPopoola/checkout-sessions/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var snapshot = domain.SessionSnapshot{ID: "S1", Data: "D0"}

type testComponent struct {
	method string
}

func (c *testComponent) PaymentMethodType() string { return c.method }

type recordingDelegate struct {
	completed chan session.Result
	failed    chan error
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		completed: make(chan session.Result, 4),
		failed:    make(chan error, 4),
	}
}

func (d *recordingDelegate) DidComplete(result session.Result, _ session.Component, _ *session.Session) {
	d.completed <- result
}

func (d *recordingDelegate) DidFail(err error, _ session.Component, _ *session.Session) {
	d.failed <- err
}

type recordingActionHandler struct {
	actions chan domain.Action
}

func (h *recordingActionHandler) HandleAction(action domain.Action, _ session.Component, _ *session.Session) {
	h.actions <- action
}

type recordingOrderObserver struct {
	orders chan domain.PartialPaymentOrder
}

func (o *recordingOrderObserver) DidUpdateOrder(order domain.PartialPaymentOrder, _ session.Component, _ *session.Session) {
	o.orders <- order
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func operation(op string) any {
	return mock.MatchedBy(func(req ports.Request) bool {
		return strings.HasSuffix(req.Path(), "/"+op)
	})
}

// reply decodes body the way the HTTP client would after a 200.
func reply(body string) func(context.Context, ports.Request) (*ports.Response, error) {
	return func(_ context.Context, req ports.Request) (*ports.Response, error) {
		resp, err := req.Decode([]byte(body))
		if err != nil {
			return nil, err
		}
		resp.StatusCode = http.StatusOK
		return resp, nil
	}
}

func sentSessionData(t *testing.T, req ports.Request) string {
	t.Helper()
	raw, err := json.Marshal(req.Body())
	assert.NoError(t, err)

	var body struct {
		SessionData string `json:"sessionData"`
	}
	assert.NoError(t, json.Unmarshal(raw, &body))
	return body.SessionData
}

func newSession(t *testing.T, api ports.APIClient, cfg session.Config) *session.Session {
	t.Helper()
	if cfg.ClientKey == "" {
		cfg.ClientKey = "test_CLIENTKEY"
	}
	s, err := session.New(snapshot, api, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func cardPayment() domain.PaymentComponentData {
	return domain.PaymentComponentData{
		PaymentMethod: domain.CardDetails{
			EncryptedCardNumber:   "test_4111111111111111",
			EncryptedExpiryMonth:  "test_03",
			EncryptedExpiryYear:   "test_2030",
			EncryptedSecurityCode: "test_737",
		},
	}
}

func TestNew_RequiresDelegateAndClientKey(t *testing.T) {
	api := mocks.NewMockAPIClient(t)

	_, err := session.New(snapshot, api, session.Config{ClientKey: "key"}, discardLogger())
	assert.Error(t, err)

	_, err = session.New(snapshot, api, session.Config{Delegate: newRecordingDelegate()}, discardLogger())
	assert.Error(t, err)

	_, err = session.New(domain.SessionSnapshot{ID: "S1"}, api, session.Config{ClientKey: "key", Delegate: newRecordingDelegate()}, discardLogger())
	assert.Error(t, err)
}

func TestSubmitPayment_RotatesSessionData(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	s := newSession(t, api, session.Config{Delegate: newRecordingDelegate()})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		Run(func(_ context.Context, req ports.Request) {
			assert.Equal(t, "D0", sentSessionData(t, req))
		}).
		RunAndReturn(reply(`{"sessionData":"D1","resultCode":"Authorised"}`)).
		Once()

	result, err := s.SubmitPayment(context.Background(), cardPayment())

	require.NoError(t, err)
	assert.Equal(t, domain.ResultAuthorised, result.ResultCode)
	assert.Equal(t, domain.SessionSnapshot{ID: "S1", Data: "D1"}, s.Snapshot())
	code, ok := s.ResultCode()
	require.True(t, ok)
	assert.Equal(t, domain.ResultAuthorised, code)
}

func TestSubmitPayment_MissingPaymentMethod(t *testing.T) {
	s := newSession(t, mocks.NewMockAPIClient(t), session.Config{Delegate: newRecordingDelegate()})

	_, err := s.SubmitPayment(context.Background(), domain.PaymentComponentData{})

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField))
}

func TestDidSubmit_RedirectThenDetails(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	actions := &recordingActionHandler{actions: make(chan domain.Action, 1)}
	s := newSession(t, api, session.Config{Delegate: delegate, ActionHandler: actions})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		RunAndReturn(reply(`{
			"sessionData":"D1",
			"resultCode":"RedirectShopper",
			"action":{"type":"redirect","url":"https://issuer.example/auth","method":"GET","paymentData":"pd-1"}
		}`)).
		Once()
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPaymentDetails)).
		Run(func(_ context.Context, req ports.Request) {
			assert.Equal(t, "D1", sentSessionData(t, req))
		}).
		RunAndReturn(reply(`{"sessionData":"D2","resultCode":"Authorised","sessionResult":"X2"}`)).
		Once()

	component := &testComponent{method: "ideal"}
	s.DidSubmit(context.Background(), domain.PaymentComponentData{
		PaymentMethod: domain.IssuerListDetails{Type: "ideal", Issuer: "1121"},
	}, component)

	var action domain.Action
	select {
	case action = <-actions.actions:
	case <-time.After(waitFor):
		t.Fatal("action was not handed to the action handler")
	}
	require.NotNil(t, action.Redirect)
	assert.Equal(t, "https://issuer.example/auth", action.Redirect.URL)

	s.DidProvide(context.Background(), domain.ActionComponentData{
		Details:     map[string]string{"redirectResult": "abc"},
		PaymentData: action.PaymentData(),
	}, component)

	select {
	case result := <-delegate.completed:
		assert.Equal(t, domain.ResultAuthorised, result.ResultCode)
		assert.Equal(t, "S1", result.SessionID)
		assert.Equal(t, "X2", result.SessionResult)
	case err := <-delegate.failed:
		t.Fatalf("unexpected failure: %v", err)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}
	assert.Equal(t, "D2", s.Snapshot().Data)
}

func TestDidSubmit_ActionWithoutHandlerFails(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	s := newSession(t, api, session.Config{Delegate: delegate})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		RunAndReturn(reply(`{"sessionData":"D1","resultCode":"RedirectShopper","action":{"type":"redirect","url":"https://x","method":"GET"}}`)).
		Once()

	s.DidSubmit(context.Background(), cardPayment(), &testComponent{method: "scheme"})

	select {
	case err := <-delegate.failed:
		assert.ErrorIs(t, err, domain.ErrActionNotHandled)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}
}

func TestCheckBalance_FailureLeavesContextUntouched(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	s := newSession(t, api, session.Config{Delegate: delegate})

	apiErr := &checkout.APIError{
		Status:       http.StatusUnprocessableEntity,
		ErrorCode:    "14_004",
		ErrorMessage: "Missing payment method details",
		Type:         checkout.ErrorTypeValidation,
	}
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpBalance)).
		Return(nil, apiErr).
		Once()

	component := &testComponent{method: "giftcard"}
	_, err := s.CheckBalance(context.Background(), domain.PaymentComponentData{
		PaymentMethod: domain.GiftCardDetails{Brand: "givex", EncryptedCardNumber: "test_6036"},
	})
	require.ErrorIs(t, err, apiErr)
	assert.Equal(t, "D0", s.Snapshot().Data)

	s.DidFail(context.Background(), err, component)

	select {
	case got := <-delegate.failed:
		var target *checkout.APIError
		require.ErrorAs(t, got, &target)
		assert.Equal(t, checkout.ErrorTypeValidation, target.Type)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}
}

func TestCheckBalance_ZeroBalance(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	s := newSession(t, api, session.Config{Delegate: newRecordingDelegate()})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpBalance)).
		RunAndReturn(reply(`{"sessionData":"D1","balance":{"value":0,"currency":"EUR"}}`)).
		Once()

	_, err := s.CheckBalance(context.Background(), domain.PaymentComponentData{
		PaymentMethod: domain.GiftCardDetails{Brand: "givex", EncryptedCardNumber: "test_6036"},
	})

	assert.ErrorIs(t, err, domain.ErrZeroBalance)
	assert.Equal(t, "D1", s.Snapshot().Data)
}

func TestCheckBalance_ReportsLimit(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	s := newSession(t, api, session.Config{Delegate: newRecordingDelegate()})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpBalance)).
		RunAndReturn(reply(`{
			"sessionData":"D1",
			"balance":{"value":5000,"currency":"EUR"},
			"transactionLimit":{"value":2000,"currency":"EUR"}
		}`)).
		Once()

	balance, err := s.CheckBalance(context.Background(), domain.PaymentComponentData{
		PaymentMethod: domain.GiftCardDetails{Brand: "givex", EncryptedCardNumber: "test_6036"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.Amount{Value: 2000, Currency: "EUR"}, balance.Spendable())
	assert.True(t, balance.Covers(domain.Amount{Value: 1500, Currency: "EUR"}))
	assert.False(t, balance.Covers(domain.Amount{Value: 2500, Currency: "EUR"}))
}

func TestDidComplete_DuplicateIsDropped(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	s := newSession(t, api, session.Config{Delegate: delegate})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		RunAndReturn(reply(`{"sessionData":"D1","resultCode":"Refused"}`)).
		Once()

	component := &testComponent{method: "scheme"}
	s.DidSubmit(context.Background(), cardPayment(), component)

	select {
	case result := <-delegate.completed:
		assert.Equal(t, domain.ResultRefused, result.ResultCode)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}

	// The component reports again for the same attempt.
	s.DidComplete(context.Background(), component)
	s.DidFail(context.Background(), domain.ErrCancelled, component)

	s.Close()
	assert.Empty(t, delegate.completed)
	assert.Empty(t, delegate.failed)
}

func TestDidFail_AnotherComponentAfterFinishedAttempt(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	s := newSession(t, api, session.Config{Delegate: delegate})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		RunAndReturn(reply(`{"sessionData":"D1","resultCode":"Refused"}`)).
		Once()

	card := &testComponent{method: "scheme"}
	s.DidSubmit(context.Background(), cardPayment(), card)

	select {
	case result := <-delegate.completed:
		assert.Equal(t, domain.ResultRefused, result.ResultCode)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}

	// The shopper switches to MB WAY, which fails before submitting.
	mbway := &testComponent{method: "mbway"}
	failure := errors.New("telephone number rejected")
	s.DidFail(context.Background(), failure, mbway)
	s.DidComplete(context.Background(), mbway)

	select {
	case err := <-delegate.failed:
		assert.ErrorIs(t, err, failure)
	case <-time.After(waitFor):
		t.Fatal("delegate was not told about the second component")
	}

	s.Close()
	assert.Empty(t, delegate.completed)
	assert.Empty(t, delegate.failed)
}

func TestClose_StopsNewFlows(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	s := newSession(t, api, session.Config{Delegate: delegate})

	s.Close()

	component := &testComponent{method: "scheme"}
	s.DidSubmit(context.Background(), cardPayment(), component)
	s.DidFail(context.Background(), domain.ErrCancelled, component)
	s.Close()

	assert.Empty(t, delegate.completed)
	assert.Empty(t, delegate.failed)
}

func TestPartialPayment_OrderContinuesThenCancel(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	observer := &recordingOrderObserver{orders: make(chan domain.PartialPaymentOrder, 1)}
	cancelled := make(chan struct{}, 1)
	s := newSession(t, api, session.Config{
		Delegate:          delegate,
		OrderObserver:     observer,
		OnCancelOrderDone: func() { cancelled <- struct{}{} },
	})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpOrders)).
		RunAndReturn(reply(`{
			"sessionData":"D1","pspReference":"ORD1","orderData":"od-1",
			"amount":{"value":10000,"currency":"EUR"},
			"remainingAmount":{"value":10000,"currency":"EUR"}
		}`)).
		Once()
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpPayments)).
		Run(func(_ context.Context, req ports.Request) {
			body := req.Body().(checkout.PaymentsBody)
			if assert.NotNil(t, body.Data.Order) {
				assert.Equal(t, "ORD1", body.Data.Order.PSPReference)
			}
			if assert.NotNil(t, body.Data.Amount) {
				assert.Equal(t, int64(10000), body.Data.Amount.Value)
			}
		}).
		RunAndReturn(reply(`{
			"sessionData":"D2","resultCode":"Authorised",
			"order":{"pspReference":"ORD1","orderData":"od-2","remainingAmount":{"value":4000,"currency":"EUR"}}
		}`)).
		Once()
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpCancelOrder)).
		RunAndReturn(reply(`{"sessionData":"D3","status":"Cancelled"}`)).
		Once()

	order, err := s.RequestOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORD1", order.PSPReference)

	component := &testComponent{method: "giftcard"}
	s.DidSubmit(context.Background(), domain.PaymentComponentData{
		PaymentMethod: domain.GiftCardDetails{Brand: "givex", EncryptedCardNumber: "test_6036"},
	}, component)

	select {
	case updated := <-observer.orders:
		assert.Equal(t, int64(4000), updated.RemainingAmount.Value)
	case <-time.After(waitFor):
		t.Fatal("order observer was not called")
	}
	assert.Equal(t, "od-2", s.Order().OrderData)

	s.DidFail(context.Background(), domain.ErrCancelled, component)

	select {
	case err := <-delegate.failed:
		assert.ErrorIs(t, err, domain.ErrCancelled)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}
	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("order was not cancelled")
	}
	assert.Nil(t, s.Order())
	assert.Equal(t, "D3", s.Snapshot().Data)
}

func TestCancelOrder_SurvivesCallerCancellation(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	s := newSession(t, api, session.Config{Delegate: newRecordingDelegate()})

	release := make(chan struct{})
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpCancelOrder)).
		RunAndReturn(func(ctx context.Context, req ports.Request) (*ports.Response, error) {
			<-release
			assert.NoError(t, ctx.Err())
			return reply(`{"sessionData":"D1","status":"Cancelled"}`)(ctx, req)
		}).
		Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := s.CancelOrder(ctx, &domain.PartialPaymentOrder{PSPReference: "ORD1", OrderData: "od"})
	cancel()
	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("cancellation did not finish")
	}
	assert.Equal(t, "D1", s.Snapshot().Data)
}

func TestDisableStoredPaymentMethod(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	s := newSession(t, api, session.Config{Delegate: newRecordingDelegate()})

	api.EXPECT().Perform(mock.Anything, operation(checkout.OpSetup)).
		RunAndReturn(reply(`{
			"sessionData":"D1",
			"amount":{"value":1000,"currency":"EUR"},
			"paymentMethods":{
				"paymentMethods":[{"type":"scheme","name":"Cards"}],
				"storedPaymentMethods":[{"id":"tok-1","type":"scheme","name":"Visa"},{"id":"tok-2","type":"scheme","name":"MC"}]
			}
		}`)).
		Once()
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpDisableToken)).
		RunAndReturn(reply(`{"sessionData":"D2","resultCode":"disabled"}`)).
		Once()
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpDisableToken)).
		RunAndReturn(reply(`{"sessionData":"D3","resultCode":"notFound"}`)).
		Once()

	_, err := s.Setup(context.Background())
	require.NoError(t, err)
	require.Len(t, s.PaymentMethods().Stored, 2)

	require.NoError(t, s.DisableStoredPaymentMethod(context.Background(), "tok-1"))
	stored := s.PaymentMethods().Stored
	require.Len(t, stored, 1)
	assert.Equal(t, "tok-2", stored[0].ID)

	err = s.DisableStoredPaymentMethod(context.Background(), "tok-2")
	var unknown *checkout.UnknownError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "D3", s.Snapshot().Data)
}

type forwardingPaymentsHandler struct {
	mu    sync.Mutex
	calls int
}

func (h *forwardingPaymentsHandler) DidSubmit(_ context.Context, _ domain.PaymentComponentData, component session.Component, s *session.Session) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	s.Complete(session.Result{ResultCode: domain.ResultAuthorised, SessionID: s.Identifier()}, component)
}

func TestDidSubmit_PaymentsHandlerTakesOver(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	delegate := newRecordingDelegate()
	handler := &forwardingPaymentsHandler{}
	s := newSession(t, api, session.Config{Delegate: delegate, PaymentsHandler: handler})

	s.DidSubmit(context.Background(), cardPayment(), &testComponent{method: "scheme"})

	select {
	case result := <-delegate.completed:
		assert.Equal(t, domain.ResultAuthorised, result.ResultCode)
	case <-time.After(waitFor):
		t.Fatal("delegate was not called")
	}
	handler.mu.Lock()
	assert.Equal(t, 1, handler.calls)
	handler.mu.Unlock()
	api.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything)
}

func TestInitialize_SetupFailure(t *testing.T) {
	api := mocks.NewMockAPIClient(t)
	api.EXPECT().Perform(mock.Anything, operation(checkout.OpSetup)).
		Return(nil, &checkout.NetworkError{Err: io.ErrUnexpectedEOF}).
		Once()

	_, err := session.Initialize(context.Background(), snapshot, api, session.Config{
		ClientKey: "key",
		Delegate:  newRecordingDelegate(),
	}, discardLogger())

	require.Error(t, err)
	assert.True(t, checkout.IsNetworkError(err))
}
