package checkout

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// Session operations, relative to checkoutshopper/v1/sessions/{id}/.
const (
	OpSetup          = "setup"
	OpPayments       = "payments"
	OpPaymentDetails = "paymentDetails"
	OpBalance        = "paymentMethodBalance"
	OpOrders         = "orders"
	OpCancelOrder    = "orders/cancel"
	OpDisableToken   = "disableToken"
)

// SessionPath is the endpoint of a session operation.
func SessionPath(sessionID, operation string) string {
	return fmt.Sprintf("checkoutshopper/v1/sessions/%s/%s", url.PathEscape(sessionID), operation)
}

// sessionRequest carries what every session call shares: where it goes and
// the continuation token current when it was built.
type sessionRequest struct {
	sessionID   string
	clientKey   string
	operation   string
	sessionData string
}

func newSessionRequest(sc *domain.SessionContext, clientKey, operation string) sessionRequest {
	return sessionRequest{
		sessionID:   sc.Identifier(),
		clientKey:   clientKey,
		operation:   operation,
		sessionData: sc.Data(),
	}
}

func (r sessionRequest) Path() string               { return SessionPath(r.sessionID, r.operation) }
func (r sessionRequest) Method() string             { return http.MethodPost }
func (r sessionRequest) Headers() map[string]string { return nil }
func (r sessionRequest) QueryParameters() []ports.QueryItem {
	return []ports.QueryItem{{Name: "clientKey", Value: r.clientKey}}
}

// --- setup

type SetupRequest struct {
	sessionRequest
}

func NewSetupRequest(sc *domain.SessionContext, clientKey string) SetupRequest {
	return SetupRequest{newSessionRequest(sc, clientKey, OpSetup)}
}

func (r SetupRequest) Body() any {
	return SessionDataBody{SessionData: r.sessionData}
}

func (r SetupRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*SetupResponse).capabilities)
}

type SessionDataBody struct {
	SessionData string `json:"sessionData"`
}

type SessionConfiguration struct {
	EnableStoreDetails            bool `json:"enableStoreDetails"`
	ShowRemovePaymentMethodButton bool `json:"showRemovePaymentMethodButton"`
}

type SetupResponse struct {
	SessionData    string                `json:"sessionData"`
	Amount         domain.Amount         `json:"amount"`
	CountryCode    string                `json:"countryCode,omitempty"`
	ShopperLocale  string                `json:"shopperLocale,omitempty"`
	ExpiresAt      *time.Time            `json:"expiresAt,omitempty"`
	PaymentMethods domain.PaymentMethods `json:"paymentMethods"`
	Configuration  SessionConfiguration  `json:"configuration"`
}

func (r *SetupResponse) capabilities() (*string, *domain.ResultCode) {
	return nonEmpty(r.SessionData), nil
}

// --- payments

type PaymentsRequest struct {
	sessionRequest
	Data domain.PaymentComponentData
}

func NewPaymentsRequest(sc *domain.SessionContext, clientKey string, data domain.PaymentComponentData) PaymentsRequest {
	return PaymentsRequest{sessionRequest: newSessionRequest(sc, clientKey, OpPayments), Data: data}
}

func (r PaymentsRequest) Body() any {
	return PaymentsBody{SessionData: r.sessionData, Data: r.Data}
}

func (r PaymentsRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*PaymentsResponse).capabilities)
}

// PaymentsBody is the payment component data with the session token merged
// into the same JSON object.
type PaymentsBody struct {
	SessionData string
	Data        domain.PaymentComponentData
}

func (b PaymentsBody) MarshalJSON() ([]byte, error) {
	return mergeSessionData(b.SessionData, b.Data)
}

func (b *PaymentsBody) UnmarshalJSON(data []byte) error {
	var head SessionDataBody
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	b.SessionData = head.SessionData
	return json.Unmarshal(data, &b.Data)
}

func mergeSessionData(sessionData string, v any) ([]byte, error) {
	fields, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(fields, &flat); err != nil {
		return nil, err
	}
	if flat == nil {
		flat = make(map[string]json.RawMessage, 1)
	}
	flat["sessionData"], _ = json.Marshal(sessionData)

	return json.Marshal(flat)
}

// PaymentsResponse answers both payments and paymentDetails.
type PaymentsResponse struct {
	SessionData   string                      `json:"sessionData"`
	ResultCode    domain.ResultCode           `json:"resultCode,omitempty"`
	Action        *domain.Action              `json:"action,omitempty"`
	Order         *domain.PartialPaymentOrder `json:"order,omitempty"`
	SessionResult string                      `json:"sessionResult,omitempty"`
}

func (r *PaymentsResponse) capabilities() (*string, *domain.ResultCode) {
	var code *domain.ResultCode
	if r.ResultCode != "" {
		code = &r.ResultCode
	}
	return nonEmpty(r.SessionData), code
}

// --- paymentDetails

type PaymentDetailsRequest struct {
	sessionRequest
	Data domain.ActionComponentData
}

func NewPaymentDetailsRequest(sc *domain.SessionContext, clientKey string, data domain.ActionComponentData) PaymentDetailsRequest {
	return PaymentDetailsRequest{sessionRequest: newSessionRequest(sc, clientKey, OpPaymentDetails), Data: data}
}

type PaymentDetailsBody struct {
	SessionData string            `json:"sessionData"`
	Details     map[string]string `json:"details"`
	PaymentData string            `json:"paymentData,omitempty"`
}

func (r PaymentDetailsRequest) Body() any {
	return PaymentDetailsBody{
		SessionData: r.sessionData,
		Details:     r.Data.Details,
		PaymentData: r.Data.PaymentData,
	}
}

func (r PaymentDetailsRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*PaymentsResponse).capabilities)
}

// --- paymentMethodBalance

type BalanceRequest struct {
	sessionRequest
	Data domain.PaymentComponentData
}

func NewBalanceRequest(sc *domain.SessionContext, clientKey string, data domain.PaymentComponentData) BalanceRequest {
	return BalanceRequest{sessionRequest: newSessionRequest(sc, clientKey, OpBalance), Data: data}
}

type BalanceBody struct {
	SessionData   string          `json:"sessionData"`
	PaymentMethod json.RawMessage `json:"paymentMethod"`
	Amount        *domain.Amount  `json:"amount,omitempty"`
}

func (r BalanceRequest) Body() any {
	// A nil method is rejected by the coordinator before a request is built.
	method, _ := domain.EncodePaymentMethod(r.Data.PaymentMethod)
	return BalanceBody{
		SessionData:   r.sessionData,
		PaymentMethod: method,
		Amount:        r.Data.Amount,
	}
}

func (r BalanceRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*BalanceResponse).capabilities)
}

type BalanceResponse struct {
	SessionData      string         `json:"sessionData"`
	Balance          domain.Amount  `json:"balance"`
	TransactionLimit *domain.Amount `json:"transactionLimit,omitempty"`
}

func (r *BalanceResponse) capabilities() (*string, *domain.ResultCode) {
	return nonEmpty(r.SessionData), nil
}

// --- orders

type CreateOrderRequest struct {
	sessionRequest
}

func NewCreateOrderRequest(sc *domain.SessionContext, clientKey string) CreateOrderRequest {
	return CreateOrderRequest{newSessionRequest(sc, clientKey, OpOrders)}
}

func (r CreateOrderRequest) Body() any {
	return SessionDataBody{SessionData: r.sessionData}
}

func (r CreateOrderRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*CreateOrderResponse).capabilities)
}

type CreateOrderResponse struct {
	SessionData     string         `json:"sessionData"`
	PSPReference    string         `json:"pspReference"`
	OrderData       string         `json:"orderData"`
	Reference       string         `json:"reference,omitempty"`
	Amount          *domain.Amount `json:"amount,omitempty"`
	RemainingAmount *domain.Amount `json:"remainingAmount,omitempty"`
	ExpiresAt       *time.Time     `json:"expiresAt,omitempty"`
}

func (r *CreateOrderResponse) capabilities() (*string, *domain.ResultCode) {
	return nonEmpty(r.SessionData), nil
}

func (r *CreateOrderResponse) Order() *domain.PartialPaymentOrder {
	return &domain.PartialPaymentOrder{
		PSPReference:    r.PSPReference,
		OrderData:       r.OrderData,
		Reference:       r.Reference,
		Amount:          r.Amount,
		RemainingAmount: r.RemainingAmount,
		ExpiresAt:       r.ExpiresAt,
	}
}

// --- orders/cancel

type CancelOrderRequest struct {
	sessionRequest
	Order domain.OrderReference
}

func NewCancelOrderRequest(sc *domain.SessionContext, clientKey string, order *domain.PartialPaymentOrder) CancelOrderRequest {
	return CancelOrderRequest{sessionRequest: newSessionRequest(sc, clientKey, OpCancelOrder), Order: order.Ref()}
}

type CancelOrderBody struct {
	SessionData string                `json:"sessionData"`
	Order       domain.OrderReference `json:"order"`
}

func (r CancelOrderRequest) Body() any {
	return CancelOrderBody{SessionData: r.sessionData, Order: r.Order}
}

func (r CancelOrderRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*CancelOrderResponse).capabilities)
}

type CancelOrderResponse struct {
	SessionData string `json:"sessionData"`
	Status      string `json:"status"`
}

func (r *CancelOrderResponse) capabilities() (*string, *domain.ResultCode) {
	return nonEmpty(r.SessionData), nil
}

// --- disableToken

const DisabledResultCode = "disabled"

type DisableTokenRequest struct {
	sessionRequest
	StoredPaymentMethodID string
}

func NewDisableTokenRequest(sc *domain.SessionContext, clientKey, storedID string) DisableTokenRequest {
	return DisableTokenRequest{sessionRequest: newSessionRequest(sc, clientKey, OpDisableToken), StoredPaymentMethodID: storedID}
}

type DisableTokenBody struct {
	SessionData           string `json:"sessionData"`
	StoredPaymentMethodID string `json:"storedPaymentMethodId"`
}

func (r DisableTokenRequest) Body() any {
	return DisableTokenBody{SessionData: r.sessionData, StoredPaymentMethodID: r.StoredPaymentMethodID}
}

func (r DisableTokenRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto(body, (*DisableTokenResponse).capabilities)
}

type DisableTokenResponse struct {
	SessionData string `json:"sessionData"`
	ResultCode  string `json:"resultCode"`
}

func (r *DisableTokenResponse) capabilities() (*string, *domain.ResultCode) {
	return nonEmpty(r.SessionData), nil
}
