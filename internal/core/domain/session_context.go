package domain

import (
	"errors"
	"sync"
)

// SessionContext is the mutable state threaded through every session
// request: the session id, the current continuation token and the last
// known result code. Every successful session response rotates the token;
// the previous one is no longer accepted by the backend.
type SessionContext struct {
	identifier string

	mu         sync.RWMutex
	data       string
	resultCode *ResultCode
}

// SessionSnapshot is the server-issued pair a session is started or resumed from.
type SessionSnapshot struct {
	ID   string `json:"id" validate:"required"`
	Data string `json:"sessionData" validate:"required"`
}

func NewSessionContext(snapshot SessionSnapshot) (*SessionContext, error) {
	if snapshot.ID == "" {
		return nil, errors.New("session id is required")
	}
	if snapshot.Data == "" {
		return nil, errors.New("session data is required")
	}
	return &SessionContext{identifier: snapshot.ID, data: snapshot.Data}, nil
}

func (c *SessionContext) Identifier() string {
	return c.identifier
}

func (c *SessionContext) Data() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// ResultCode returns the last result code seen, if any.
func (c *SessionContext) ResultCode() (ResultCode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.resultCode == nil {
		return "", false
	}
	return *c.resultCode, true
}

// UpdateData overwrites the continuation token. Last write wins.
func (c *SessionContext) UpdateData(data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
}

func (c *SessionContext) UpdateResultCode(code ResultCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resultCode = &code
}

func (c *SessionContext) Snapshot() SessionSnapshot {
	return SessionSnapshot{ID: c.identifier, Data: c.Data()}
}
