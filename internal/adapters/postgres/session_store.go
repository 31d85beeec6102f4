package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DanielPopoola/checkout-sessions/internal/core/domain"
	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

type SessionStore struct {
	q Executor
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{q: db.Pool}
}

var _ ports.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) CreateSession(ctx context.Context, sess *ports.StoredSession) error {
	query := `INSERT INTO checkout_sessions (
				id, session_data, amount_value, currency, country_code, shopper_reference,
				result_code, disabled_stored_tokens, created_at, updated_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10)`

	_, err := s.q.Exec(ctx, query,
		sess.ID,
		sess.Data,
		sess.Amount.Value,
		sess.Amount.Currency,
		sess.CountryCode,
		sess.ShopperReference,
		resultCodeText(sess.ResultCode),
		tokens(sess.DisabledStoredTokens),
		sess.CreatedAt,
		sess.ExpiresAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("session %s already exists: %w", sess.ID, err)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionStore) FindSession(ctx context.Context, id string) (*ports.StoredSession, error) {
	query := `
			SELECT id, session_data, amount_value, currency, country_code, shopper_reference,
				result_code, disabled_stored_tokens, created_at, expires_at
			FROM checkout_sessions
			WHERE id = $1
			`

	var (
		sess       ports.StoredSession
		resultCode *string
	)
	err := s.q.QueryRow(ctx, query, id).Scan(
		&sess.ID,
		&sess.Data,
		&sess.Amount.Value,
		&sess.Amount.Currency,
		&sess.CountryCode,
		&sess.ShopperReference,
		&resultCode,
		&sess.DisabledStoredTokens,
		&sess.CreatedAt,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if resultCode != nil {
		code := domain.ResultCode(*resultCode)
		sess.ResultCode = &code
	}
	return &sess, nil
}

// RotateSessionData is a compare-and-swap on session_data, so of two
// requests holding the same token only one rotates it.
func (s *SessionStore) RotateSessionData(ctx context.Context, id, expected, next string) error {
	query := `UPDATE checkout_sessions
			SET session_data = $3, updated_at = NOW()
			WHERE id = $1 AND session_data = $2`

	tag, err := s.q.Exec(ctx, query, id, expected, next)
	if err != nil {
		return fmt.Errorf("rotate session data: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checkout_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return ports.ErrSessionNotFound
	}
	return ports.ErrStaleSessionData
}

func (s *SessionStore) UpdateSession(ctx context.Context, sess *ports.StoredSession) error {
	query := `UPDATE checkout_sessions
			SET result_code = $2, disabled_stored_tokens = $3, updated_at = NOW()
			WHERE id = $1`

	tag, err := s.q.Exec(ctx, query, sess.ID, resultCodeText(sess.ResultCode), tokens(sess.DisabledStoredTokens))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) CreateOrder(ctx context.Context, o *ports.StoredOrder) error {
	query := `INSERT INTO partial_payment_orders (
				psp_reference, session_id, order_data, reference, amount_value, remaining_value,
				currency, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.q.Exec(ctx, query,
		o.PSPReference,
		o.SessionID,
		o.OrderData,
		o.Reference,
		o.Amount.Value,
		o.RemainingAmount.Value,
		o.Amount.Currency,
		o.Status,
		o.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

const orderColumns = `psp_reference, session_id, order_data, reference, amount_value, remaining_value,
				currency, status, expires_at`

func (s *SessionStore) FindOrder(ctx context.Context, pspReference string) (*ports.StoredOrder, error) {
	query := `SELECT ` + orderColumns + `
			FROM partial_payment_orders
			WHERE psp_reference = $1`

	o, err := scanOrder(s.q.QueryRow(ctx, query, pspReference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

func (s *SessionStore) UpdateOrder(ctx context.Context, o *ports.StoredOrder) error {
	query := `UPDATE partial_payment_orders
			SET remaining_value = $2, status = $3, updated_at = NOW()
			WHERE psp_reference = $1`

	tag, err := s.q.Exec(ctx, query, o.PSPReference, o.RemainingAmount.Value, o.Status)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrOrderNotFound
	}
	return nil
}

func (s *SessionStore) FindExpiredOrders(ctx context.Context, now time.Time, limit int) ([]*ports.StoredOrder, error) {
	query := `SELECT ` + orderColumns + `
			FROM partial_payment_orders
			WHERE status = 'ACTIVE' AND expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2`

	rows, err := s.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ports.StoredOrder, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired orders: %w", err)
	}
	return orders, nil
}

func (s *SessionStore) ExpireOrder(ctx context.Context, pspReference string, now time.Time) (bool, error) {
	query := `UPDATE partial_payment_orders
			SET status = 'EXPIRED', updated_at = NOW()
			WHERE psp_reference = $1 AND status = 'ACTIVE' AND expires_at <= $2`

	tag, err := s.q.Exec(ctx, query, pspReference, now)
	if err != nil {
		return false, fmt.Errorf("expire order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.Row) (*ports.StoredOrder, error) {
	var o ports.StoredOrder
	err := row.Scan(
		&o.PSPReference,
		&o.SessionID,
		&o.OrderData,
		&o.Reference,
		&o.Amount.Value,
		&o.RemainingAmount.Value,
		&o.Amount.Currency,
		&o.Status,
		&o.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	o.RemainingAmount.Currency = o.Amount.Currency
	return &o, nil
}

func resultCodeText(code *domain.ResultCode) *string {
	if code == nil {
		return nil
	}
	s := string(*code)
	return &s
}

// tokens keeps a nil slice from being written as NULL.
func tokens(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
