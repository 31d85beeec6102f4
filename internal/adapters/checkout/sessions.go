package checkout

import (
	"net/http"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// CreateSessionRequest opens a checkout session. It is a merchant server
// call: the returned snapshot is what a client session starts from.
type CreateSessionRequest struct {
	Amount           domain.Amount `json:"amount"`
	CountryCode      string        `json:"countryCode"`
	Reference        string        `json:"reference"`
	ShopperReference string        `json:"shopperReference,omitempty"`
	ShopperLocale    string        `json:"shopperLocale,omitempty"`
}

func (CreateSessionRequest) Path() string                       { return "checkout/v71/sessions" }
func (CreateSessionRequest) Method() string                     { return http.MethodPost }
func (CreateSessionRequest) Headers() map[string]string         { return nil }
func (CreateSessionRequest) QueryParameters() []ports.QueryItem { return nil }
func (r CreateSessionRequest) Body() any                        { return r }

func (CreateSessionRequest) Decode(body []byte) (*ports.Response, error) {
	return decodeInto[CreateSessionResponse](body, nil)
}

type CreateSessionResponse struct {
	ID          string        `json:"id"`
	SessionData string        `json:"sessionData"`
	Amount      domain.Amount `json:"amount"`
	Reference   string        `json:"reference"`
	CountryCode string        `json:"countryCode"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
}

func (r *CreateSessionResponse) Snapshot() domain.SessionSnapshot {
	return domain.SessionSnapshot{ID: r.ID, Data: r.SessionData}
}
