package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DanielPopoola/checkout-sessions/internal/adapters/checkout"
	"github.com/DanielPopoola/checkout-sessions/internal/config"
	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// RefusedHolderName makes any card payment come back Refused.
const RefusedHolderName = "REFUSED"

// refusedDetail as a details value makes the paymentDetails call refuse.
const refusedDetail = "refused"

const (
	disableResultNotFound = "notFound"
	cancelOrderReceived   = "Received"
	encryptedPrefix       = "test_"
)

// StoredCardID is the stored card offered to sessions created with a shopper reference.
const StoredCardID = "8315000000000001"

// CreateSessionRequest is what a merchant server posts to open a session.
type CreateSessionRequest struct {
	Amount           SessionAmount `json:"amount" validate:"required"`
	CountryCode      string        `json:"countryCode" validate:"required,len=2"`
	Reference        string        `json:"reference" validate:"required"`
	ShopperReference string        `json:"shopperReference,omitempty"`
	ShopperLocale    string        `json:"shopperLocale,omitempty"`
}

type SessionAmount struct {
	Value    int64  `json:"value" validate:"gte=0"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type SessionCreated struct {
	ID          string        `json:"id"`
	SessionData string        `json:"sessionData"`
	Amount      domain.Amount `json:"amount"`
	Reference   string        `json:"reference"`
	CountryCode string        `json:"countryCode"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// Service is the sandbox checkout backend. It speaks the session protocol
// the SDK expects and decides payment outcomes deterministically.
type Service struct {
	store  ports.SessionStore
	tokens *TokenIssuer
	cfg    config.BackendConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store ports.SessionStore, cfg config.BackendConfig, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		tokens: NewTokenIssuer(cfg.TokenSecret),
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// CheckClientKey rejects requests made with a key the sandbox did not issue.
func (s *Service) CheckClientKey(clientKey string) error {
	if clientKey == "" || clientKey != s.cfg.ClientKey {
		return newClientKeyError()
	}
	return nil
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionCreated, error) {
	amount, err := domain.NewAmount(req.Amount.Value, strings.ToUpper(req.Amount.Currency))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	now := s.now()
	sess := &ports.StoredSession{
		ID:               "CS" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")),
		Amount:           amount,
		CountryCode:      strings.ToUpper(req.CountryCode),
		ShopperReference: req.ShopperReference,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.SessionTTL),
	}
	sess.Data, err = s.tokens.IssueSessionData(sess.ID, 0, sess.ExpiresAt)
	if err != nil {
		return nil, newInternalError(fmt.Errorf("issue session data: %w", err))
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, toError(fmt.Errorf("create session: %w", err))
	}

	s.logger.Info("session created", "session_id", sess.ID, "amount", amount.String(), "reference", req.Reference)
	return &SessionCreated{
		ID:          sess.ID,
		SessionData: sess.Data,
		Amount:      amount,
		Reference:   req.Reference,
		CountryCode: sess.CountryCode,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

// withSession authenticates sessionData, runs op and rotates the token.
// A failing op leaves the current token valid.
func (s *Service) withSession(ctx context.Context, id, sessionData string, op func(*ports.StoredSession) error) (string, error) {
	claims, err := s.tokens.VerifySessionData(id, sessionData)
	if err != nil {
		return "", newSessionExpiredError(err)
	}

	sess, err := s.store.FindSession(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return "", newSessionNotFoundError(id)
		}
		return "", toError(err)
	}
	if sess.Data != sessionData {
		return "", newSessionExpiredError(ports.ErrStaleSessionData)
	}

	if err := op(sess); err != nil {
		return "", err
	}

	next, err := s.tokens.IssueSessionData(id, claims.Sequence+1, sess.ExpiresAt)
	if err != nil {
		return "", newInternalError(fmt.Errorf("issue session data: %w", err))
	}
	if err := s.store.RotateSessionData(ctx, id, sessionData, next); err != nil {
		return "", toError(err)
	}
	return next, nil
}

func (s *Service) Setup(ctx context.Context, id, sessionData string) (*checkout.SetupResponse, error) {
	var resp checkout.SetupResponse
	next, err := s.withSession(ctx, id, sessionData, func(sess *ports.StoredSession) error {
		expiresAt := sess.ExpiresAt
		resp = checkout.SetupResponse{
			Amount:         sess.Amount,
			CountryCode:    sess.CountryCode,
			ExpiresAt:      &expiresAt,
			PaymentMethods: paymentMethods(sess),
			Configuration: checkout.SessionConfiguration{
				EnableStoreDetails:            sess.ShopperReference != "",
				ShowRemovePaymentMethodButton: sess.ShopperReference != "",
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return &resp, nil
}

func (s *Service) Payments(ctx context.Context, id string, body checkout.PaymentsBody) (*checkout.PaymentsResponse, error) {
	var resp *checkout.PaymentsResponse
	next, err := s.withSession(ctx, id, body.SessionData, func(sess *ports.StoredSession) error {
		var err error
		resp, err = s.pay(ctx, sess, body.Data)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return resp, nil
}

func (s *Service) PaymentDetails(ctx context.Context, id string, body checkout.PaymentDetailsBody) (*checkout.PaymentsResponse, error) {
	if len(body.Details) == 0 {
		return nil, NewValidationError("details are required")
	}

	var resp *checkout.PaymentsResponse
	next, err := s.withSession(ctx, id, body.SessionData, func(sess *ports.StoredSession) error {
		var err error
		resp, err = s.finishAction(ctx, sess, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return resp, nil
}

func (s *Service) Balance(ctx context.Context, id string, body checkout.BalanceBody) (*checkout.BalanceResponse, error) {
	method, err := domain.DecodePaymentMethod(body.PaymentMethod)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid payment method: %v", err))
	}
	giftCard, ok := method.(domain.GiftCardDetails)
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("payment method %s has no balance", method.PaymentMethodType()))
	}

	var resp checkout.BalanceResponse
	next, err := s.withSession(ctx, id, body.SessionData, func(sess *ports.StoredSession) error {
		resp.Balance = s.giftCardBalance(giftCard, sess.Amount.Currency)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return &resp, nil
}

func (s *Service) CreateOrder(ctx context.Context, id, sessionData string) (*checkout.CreateOrderResponse, error) {
	var resp checkout.CreateOrderResponse
	next, err := s.withSession(ctx, id, sessionData, func(sess *ports.StoredSession) error {
		order := &ports.StoredOrder{
			PSPReference:    pspReference(),
			SessionID:       sess.ID,
			OrderData:       "Ab02b4c0!" + uuid.NewString(),
			Reference:       sess.ID + "-order",
			Amount:          sess.Amount,
			RemainingAmount: sess.Amount,
			Status:          ports.OrderStatusActive,
			ExpiresAt:       s.now().Add(s.cfg.OrderTTL),
		}
		if err := s.store.CreateOrder(ctx, order); err != nil {
			return toError(fmt.Errorf("create order: %w", err))
		}

		po := toPartialPaymentOrder(order)
		resp = checkout.CreateOrderResponse{
			PSPReference:    po.PSPReference,
			OrderData:       po.OrderData,
			Reference:       po.Reference,
			Amount:          po.Amount,
			RemainingAmount: po.RemainingAmount,
			ExpiresAt:       po.ExpiresAt,
		}
		s.logger.Info("order created", "session_id", sess.ID, "psp_reference", order.PSPReference)
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return &resp, nil
}

func (s *Service) CancelOrder(ctx context.Context, id string, body checkout.CancelOrderBody) (*checkout.CancelOrderResponse, error) {
	if body.Order.PSPReference == "" {
		return nil, NewValidationError("order.pspReference is required")
	}

	next, err := s.withSession(ctx, id, body.SessionData, func(sess *ports.StoredSession) error {
		order, err := s.activeOrder(ctx, sess.ID, body.Order.PSPReference)
		if err != nil {
			return err
		}
		if order.OrderData != body.Order.OrderData {
			return NewValidationError("orderData does not match the order")
		}

		order.Status = ports.OrderStatusCancelled
		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return toError(fmt.Errorf("cancel order: %w", err))
		}
		s.logger.Info("order cancelled", "session_id", sess.ID, "psp_reference", order.PSPReference)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &checkout.CancelOrderResponse{SessionData: next, Status: cancelOrderReceived}, nil
}

func (s *Service) DisableToken(ctx context.Context, id string, body checkout.DisableTokenBody) (*checkout.DisableTokenResponse, error) {
	if body.StoredPaymentMethodID == "" {
		return nil, NewValidationError("storedPaymentMethodId is required")
	}

	resp := checkout.DisableTokenResponse{ResultCode: disableResultNotFound}
	next, err := s.withSession(ctx, id, body.SessionData, func(sess *ports.StoredSession) error {
		stored := paymentMethods(sess).Stored
		found := slices.ContainsFunc(stored, func(m domain.StoredPaymentMethod) bool {
			return m.ID == body.StoredPaymentMethodID
		})
		if !found {
			return nil
		}

		sess.DisabledStoredTokens = append(sess.DisabledStoredTokens, body.StoredPaymentMethodID)
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			return toError(fmt.Errorf("disable token: %w", err))
		}
		resp.ResultCode = checkout.DisabledResultCode
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.SessionData = next
	return &resp, nil
}

func (s *Service) PublicKey(clientKey string) (*checkout.PublicKeyResponse, error) {
	if err := s.CheckClientKey(clientKey); err != nil {
		return nil, err
	}
	return &checkout.PublicKeyResponse{PublicKey: s.cfg.PublicKey}, nil
}

func (s *Service) BinLookup(body checkout.BinLookupBody) *checkout.BinLookupResponse {
	bin := strings.TrimPrefix(body.EncryptedBin, encryptedPrefix)

	resp := &checkout.BinLookupResponse{RequestID: body.RequestID}
	if brand := brandForBin(bin); brand != "" {
		supported := len(body.SupportedBrands) == 0 || slices.Contains(body.SupportedBrands, brand)
		resp.Brands = []checkout.CardBrand{{
			Brand:            brand,
			EnableCVC:        true,
			EnableExpiryDate: true,
			Supported:        supported,
		}}
		resp.IssuingCountryCode = "NL"
	}
	return resp
}

// pay decides the outcome of a payments call.
func (s *Service) pay(ctx context.Context, sess *ports.StoredSession, data domain.PaymentComponentData) (*checkout.PaymentsResponse, error) {
	if data.PaymentMethod == nil {
		return nil, NewValidationError("paymentMethod is required")
	}

	amount := sess.Amount
	if data.Amount != nil {
		amount = *data.Amount
	}
	if amount.Currency != sess.Amount.Currency {
		return nil, NewValidationError(fmt.Sprintf("currency %s does not match the session currency %s", amount.Currency, sess.Amount.Currency))
	}

	var order *ports.StoredOrder
	if data.Order != nil {
		var err error
		if order, err = s.activeOrder(ctx, sess.ID, data.Order.PSPReference); err != nil {
			return nil, err
		}
		if !order.RemainingAmount.Covers(amount) {
			return nil, NewValidationError(fmt.Sprintf("amount %s exceeds the remaining %s", amount, order.RemainingAmount))
		}
	}

	switch method := data.PaymentMethod.(type) {
	case domain.CardDetails:
		if strings.EqualFold(method.HolderName, RefusedHolderName) {
			return s.settle(ctx, sess, order, domain.ResultRefused, 0)
		}
		return s.settle(ctx, sess, order, domain.ResultAuthorised, amount.Value)

	case domain.GiftCardDetails:
		balance := s.giftCardBalance(method, amount.Currency)
		if order == nil && !balance.Covers(amount) {
			return s.settle(ctx, sess, nil, domain.ResultRefused, 0)
		}
		if balance.IsZero() {
			return s.settle(ctx, sess, order, domain.ResultRefused, 0)
		}
		return s.settle(ctx, sess, order, domain.ResultAuthorised, min(balance.Value, amount.Value))

	case domain.IssuerListDetails:
		paymentData, err := s.paymentData(sess, method.PaymentMethodType(), amount, order)
		if err != nil {
			return nil, err
		}
		return &checkout.PaymentsResponse{
			ResultCode: domain.ResultRedirectShopper,
			Action: &domain.Action{
				Type: domain.ActionRedirect,
				Redirect: &domain.RedirectAction{
					URL:               "https://sandbox.checkout.invalid/redirect?issuer=" + method.Issuer,
					Method:            "GET",
					PaymentData:       paymentData,
					PaymentMethodType: method.PaymentMethodType(),
				},
			},
		}, nil

	case domain.MBWayDetails:
		paymentData, err := s.paymentData(sess, method.PaymentMethodType(), amount, order)
		if err != nil {
			return nil, err
		}
		return &checkout.PaymentsResponse{
			ResultCode: domain.ResultPending,
			Action: &domain.Action{
				Type: domain.ActionAwait,
				Await: &domain.AwaitAction{
					PaymentMethodType: method.PaymentMethodType(),
					PaymentData:       paymentData,
				},
			},
		}, nil
	}

	return s.settle(ctx, sess, order, domain.ResultAuthorised, amount.Value)
}

// finishAction resolves a payment that was waiting on a shopper action.
func (s *Service) finishAction(ctx context.Context, sess *ports.StoredSession, body checkout.PaymentDetailsBody) (*checkout.PaymentsResponse, error) {
	amount := sess.Amount
	var order *ports.StoredOrder

	if body.PaymentData != "" {
		claims, err := s.tokens.VerifyPaymentData(sess.ID, body.PaymentData)
		if err != nil {
			return nil, NewValidationError(fmt.Sprintf("invalid paymentData: %v", err))
		}
		amount = claims.Amount
		if claims.OrderPSPReference != "" {
			if order, err = s.activeOrder(ctx, sess.ID, claims.OrderPSPReference); err != nil {
				return nil, err
			}
		}
	}

	for _, v := range body.Details {
		if strings.EqualFold(v, refusedDetail) {
			return s.settle(ctx, sess, order, domain.ResultRefused, 0)
		}
	}
	return s.settle(ctx, sess, order, domain.ResultAuthorised, amount.Value)
}

// settle records the outcome of a payment. An authorised payment against
// an order reduces its remaining amount; the session result code is only
// set once nothing is left to pay.
func (s *Service) settle(ctx context.Context, sess *ports.StoredSession, order *ports.StoredOrder, code domain.ResultCode, charged int64) (*checkout.PaymentsResponse, error) {
	resp := &checkout.PaymentsResponse{ResultCode: code}

	if order != nil && code == domain.ResultAuthorised {
		order.RemainingAmount.Value -= charged
		if order.RemainingAmount.Value <= 0 {
			order.RemainingAmount.Value = 0
			order.Status = ports.OrderStatusCompleted
		}
		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return nil, toError(fmt.Errorf("update order: %w", err))
		}

		resp.Order = toPartialPaymentOrder(order)
		if order.Status == ports.OrderStatusActive {
			s.logger.Info("partial payment",
				"session_id", sess.ID,
				"psp_reference", order.PSPReference,
				"result_code", code,
				"remaining", order.RemainingAmount.String(),
			)
			return resp, nil
		}
	}

	sess.ResultCode = &code
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, toError(fmt.Errorf("update session: %w", err))
	}
	resp.SessionResult = "sr_" + uuid.NewString()

	s.logger.Info("payment settled", "session_id", sess.ID, "result_code", code)
	return resp, nil
}

func (s *Service) paymentData(sess *ports.StoredSession, method string, amount domain.Amount, order *ports.StoredOrder) (string, error) {
	claims := PaymentClaims{Amount: amount, Method: method}
	if order != nil {
		claims.OrderPSPReference = order.PSPReference
	}
	token, err := s.tokens.IssuePaymentData(sess.ID, claims, sess.ExpiresAt)
	if err != nil {
		return "", newInternalError(fmt.Errorf("issue payment data: %w", err))
	}
	return token, nil
}

func (s *Service) activeOrder(ctx context.Context, sessionID, pspReference string) (*ports.StoredOrder, error) {
	order, err := s.store.FindOrder(ctx, pspReference)
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			return nil, newOrderNotFoundError(pspReference)
		}
		return nil, toError(err)
	}
	if order.SessionID != sessionID {
		return nil, newOrderNotFoundError(pspReference)
	}
	if order.Status == ports.OrderStatusActive && !s.now().Before(order.ExpiresAt) {
		return nil, newOrderInactiveError(pspReference, strings.ToLower(ports.OrderStatusExpired))
	}
	if order.Status != ports.OrderStatusActive {
		return nil, newOrderInactiveError(pspReference, strings.ToLower(order.Status))
	}
	return order, nil
}

// giftCardBalance is the configured sandbox balance, or zero for card
// numbers ending in 0000.
func (s *Service) giftCardBalance(card domain.GiftCardDetails, currency string) domain.Amount {
	number := strings.TrimPrefix(card.EncryptedCardNumber, encryptedPrefix)
	if strings.HasSuffix(number, "0000") {
		return domain.Amount{Value: 0, Currency: currency}
	}
	return domain.Amount{Value: s.cfg.GiftCardBalance, Currency: currency}
}

func paymentMethods(sess *ports.StoredSession) domain.PaymentMethods {
	methods := domain.PaymentMethods{
		Regular: []domain.PaymentMethod{
			{Type: domain.MethodScheme, Name: "Cards", Brands: []string{"visa", "mc", "amex"}},
			{Type: domain.MethodIDEAL, Name: "iDEAL"},
			{Type: domain.MethodGiftCard, Name: "Givex", Brand: "givex"},
			{Type: domain.MethodMBWay, Name: "MB WAY"},
		},
	}
	if sess.ShopperReference == "" {
		return methods
	}

	stored := domain.StoredPaymentMethod{
		ID:          StoredCardID,
		Type:        domain.MethodScheme,
		Name:        "VISA",
		Brand:       "visa",
		LastFour:    "1111",
		ExpiryMonth: "03",
		ExpiryYear:  "2030",
		HolderName:  sess.ShopperReference,
	}
	if !slices.Contains(sess.DisabledStoredTokens, stored.ID) {
		methods.Stored = append(methods.Stored, stored)
	}
	return methods
}

func toPartialPaymentOrder(o *ports.StoredOrder) *domain.PartialPaymentOrder {
	amount := o.Amount
	remaining := o.RemainingAmount
	expiresAt := o.ExpiresAt
	return &domain.PartialPaymentOrder{
		PSPReference:    o.PSPReference,
		OrderData:       o.OrderData,
		Reference:       o.Reference,
		Amount:          &amount,
		RemainingAmount: &remaining,
		ExpiresAt:       &expiresAt,
	}
}

func pspReference() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:16]
}

func brandForBin(bin string) string {
	switch {
	case strings.HasPrefix(bin, "4"):
		return "visa"
	case strings.HasPrefix(bin, "34"), strings.HasPrefix(bin, "37"):
		return "amex"
	case len(bin) > 1 && bin[0] == '5' && bin[1] >= '1' && bin[1] <= '5':
		return "mc"
	case strings.HasPrefix(bin, "2"):
		return "mc"
	}
	return ""
}
