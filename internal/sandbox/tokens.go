package sandbox

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

// SessionClaims is the payload of a sessionData token. Every response
// issues a new token with the next sequence number.
type SessionClaims struct {
	Sequence uint64 `json:"seq"`
	jwt.RegisteredClaims
}

// PaymentClaims is the payload of the paymentData blob handed out with an
// action. It carries what the details call needs to finish the payment.
type PaymentClaims struct {
	Amount            domain.Amount `json:"amount"`
	Method            string        `json:"method"`
	OrderPSPReference string        `json:"order,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the opaque blobs the sandbox hands to clients.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

func (t *TokenIssuer) IssueSessionData(sessionID string, sequence uint64, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		Sequence:         sequence,
		RegisteredClaims: t.registered(sessionID, expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// VerifySessionData checks signature, expiry and that token belongs to sessionID.
func (t *TokenIssuer) VerifySessionData(sessionID, token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.parse(sessionID, token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) IssuePaymentData(sessionID string, claims PaymentClaims, expiresAt time.Time) (string, error) {
	claims.RegisteredClaims = t.registered(sessionID, expiresAt)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) VerifyPaymentData(sessionID, token string) (*PaymentClaims, error) {
	claims := &PaymentClaims{}
	if err := t.parse(sessionID, token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) registered(sessionID string, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(t.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (t *TokenIssuer) parse(sessionID, token string, claims jwt.Claims) error {
	if token == "" {
		return errors.New("token is empty")
	}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(sessionID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	return err
}
