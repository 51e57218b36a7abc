package auth

import (
	"context"
	"sync"
	"time"

	"tenauth.org/internal/ids"
)

// memStore is an in-memory Store with the same concurrency semantics as the
// PostgreSQL implementation: Consume flips revoked under a single lock, so
// racing refreshes see exactly one true.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*User
	tokens map[string]*RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*User),
		tokens: make(map[string]*RefreshToken),
	}
}

func (m *memStore) Users() UserStore                 { return (*memUserStore)(m) }
func (m *memStore) RefreshTokens() RefreshTokenStore { return (*memTokenStore)(m) }

type memUserStore memStore

func (m *memUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicateUser
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserStore) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func (m *memUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// setActive is a test hook to deactivate an account mid-scenario.
func (m *memStore) setActive(userID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Active = active
	}
}

type memTokenStore memStore

func (m *memTokenStore) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	cp := *tok
	m.tokens[tok.Token] = &cp
	return nil
}

func (m *memTokenStore) FindByToken(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *memTokenStore) Consume(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[token]
	if !ok || tok.Revoked {
		return false, nil
	}
	now := time.Now().UTC()
	tok.Revoked = true
	tok.RevokedAt = &now
	return true, nil
}

func (m *memTokenStore) Revoke(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[token]
	if !ok || tok.UserID != userID || tok.Revoked {
		return nil
	}
	now := time.Now().UTC()
	tok.Revoked = true
	tok.RevokedAt = &now
	return nil
}

func (m *memTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, tok := range m.tokens {
		if tok.UserID == userID && !tok.Revoked {
			tok.Revoked = true
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (m *memTokenStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, tok := range m.tokens {
		if tok.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			n++
		}
	}
	return n, nil
}
