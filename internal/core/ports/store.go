package ports

import (
	"context"
	"errors"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
)

// StoredSession is the sandbox backend's view of a checkout session.
type StoredSession struct {
	ID                   string
	Data                 string
	Amount               domain.Amount
	CountryCode          string
	ShopperReference     string
	ResultCode           *domain.ResultCode
	DisabledStoredTokens []string
	CreatedAt            time.Time
	ExpiresAt            time.Time
}

type StoredOrder struct {
	PSPReference    string
	SessionID       string
	OrderData       string
	Reference       string
	Amount          domain.Amount
	RemainingAmount domain.Amount
	Status          string
	ExpiresAt       time.Time
}

const (
	OrderStatusActive    = "ACTIVE"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusExpired   = "EXPIRED"
	OrderStatusCompleted = "COMPLETED"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStaleSessionData = errors.New("session data is no longer current")
	ErrOrderNotFound    = errors.New("order not found")
)

// SessionStore persists sandbox sessions and orders.
type SessionStore interface {
	CreateSession(ctx context.Context, s *StoredSession) error
	FindSession(ctx context.Context, id string) (*StoredSession, error)
	// RotateSessionData swaps the token only if it still equals expected.
	RotateSessionData(ctx context.Context, id, expected, next string) error
	// UpdateSession saves everything but the session data.
	UpdateSession(ctx context.Context, s *StoredSession) error

	CreateOrder(ctx context.Context, o *StoredOrder) error
	FindOrder(ctx context.Context, pspReference string) (*StoredOrder, error)
	UpdateOrder(ctx context.Context, o *StoredOrder) error
	FindExpiredOrders(ctx context.Context, now time.Time, limit int) ([]*StoredOrder, error)
	// ExpireOrder moves an active order past its expiry to EXPIRED. It
	// reports false when the order was no longer active.
	ExpireOrder(ctx context.Context, pspReference string, now time.Time) (bool, error)
}
