package postgres

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/checkout-sessions/internal/core/ports"
)

// MemoryStore is a SessionStore kept in process memory, for tests and
// sandboxes run without a database.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]ports.StoredSession
	orders   map[string]ports.StoredOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]ports.StoredSession),
		orders:   make(map[string]ports.StoredOrder),
	}
}

var _ ports.SessionStore = (*MemoryStore)(nil)

func (m *MemoryStore) CreateSession(_ context.Context, s *ports.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = copySession(*s)
	return nil
}

func (m *MemoryStore) FindSession(_ context.Context, id string) (*ports.StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	out := copySession(s)
	return &out, nil
}

func (m *MemoryStore) RotateSessionData(_ context.Context, id, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ports.ErrSessionNotFound
	}
	if s.Data != expected {
		return ports.ErrStaleSessionData
	}
	s.Data = next
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, s *ports.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[s.ID]
	if !ok {
		return ports.ErrSessionNotFound
	}
	updated := copySession(*s)
	updated.Data = current.Data
	m.sessions[s.ID] = updated
	return nil
}

func (m *MemoryStore) CreateOrder(_ context.Context, o *ports.StoredOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[o.SessionID]; !ok {
		return ports.ErrSessionNotFound
	}
	if _, ok := m.orders[o.PSPReference]; ok {
		return fmt.Errorf("order %s already exists", o.PSPReference)
	}
	m.orders[o.PSPReference] = *o
	return nil
}

func (m *MemoryStore) FindOrder(_ context.Context, pspReference string) (*ports.StoredOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[pspReference]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	return &o, nil
}

func (m *MemoryStore) UpdateOrder(_ context.Context, o *ports.StoredOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.orders[o.PSPReference]
	if !ok {
		return ports.ErrOrderNotFound
	}
	current.RemainingAmount.Value = o.RemainingAmount.Value
	current.Status = o.Status
	m.orders[o.PSPReference] = current
	return nil
}

func (m *MemoryStore) FindExpiredOrders(_ context.Context, now time.Time, limit int) ([]*ports.StoredOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ports.StoredOrder
	for _, o := range m.orders {
		if o.Status == ports.OrderStatusActive && !o.ExpiresAt.After(now) {
			order := o
			out = append(out, &order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ExpireOrder(_ context.Context, pspReference string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[pspReference]
	if !ok || o.Status != ports.OrderStatusActive || o.ExpiresAt.After(now) {
		return false, nil
	}
	o.Status = ports.OrderStatusExpired
	m.orders[pspReference] = o
	return true, nil
}

func copySession(s ports.StoredSession) ports.StoredSession {
	s.DisabledStoredTokens = slices.Clone(s.DisabledStoredTokens)
	if s.ResultCode != nil {
		code := *s.ResultCode
		s.ResultCode = &code
	}
	return s
}
