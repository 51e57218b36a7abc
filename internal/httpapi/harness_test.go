package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tenauth.org/internal/auth"
	"tenauth.org/internal/ids"
)

const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// testStore is a minimal in-memory auth.Store for handler tests.
type testStore struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	tokens map[string]*auth.RefreshToken
}

func newTestStore() *testStore {
	return &testStore{
		users:  make(map[string]*auth.User),
		tokens: make(map[string]*auth.RefreshToken),
	}
}

func (s *testStore) Users() auth.UserStore                 { return (*testUserStore)(s) }
func (s *testStore) RefreshTokens() auth.RefreshTokenStore { return (*testTokenStore)(s) }

type testUserStore testStore

func (s *testUserStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrDuplicateUser
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *testUserStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *testUserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *testUserStore) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func (s *testUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type testTokenStore testStore

func (s *testTokenStore) Create(_ context.Context, tok *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	cp := *tok
	s.tokens[tok.Token] = &cp
	return nil
}

func (s *testTokenStore) FindByToken(_ context.Context, token string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *testTokenStore) Consume(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok || tok.Revoked {
		return false, nil
	}
	now := time.Now().UTC()
	tok.Revoked = true
	tok.RevokedAt = &now
	return true, nil
}

func (s *testTokenStore) Revoke(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[token]
	if !ok || tok.UserID != userID || tok.Revoked {
		return nil
	}
	now := time.Now().UTC()
	tok.Revoked = true
	tok.RevokedAt = &now
	return nil
}

func (s *testTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, tok := range s.tokens {
		if tok.UserID == userID && !tok.Revoked {
			tok.Revoked = true
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (s *testTokenStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, tok := range s.tokens {
		if tok.ExpiresAt.Before(before) {
			delete(s.tokens, key)
			n++
		}
	}
	return n, nil
}

func newTestAPI(t *testing.T) (*API, *auth.Service, *auth.TokenIssuer) {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Issuer:        "tenauth-test",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	svc, err := auth.NewService(newTestStore(), issuer)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	api := New(Config{Service: svc, Issuer: issuer, Version: "test"})
	return api, svc, issuer
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

// doGuarded sends a request through the guard chain and mux, skipping the
// outer middleware so tests are not subject to the IP rate limiter.
func doGuarded(api *API, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	api.withGuards(api.mux).ServeHTTP(rec, r)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	res := rec.Result()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// openSession registers a fresh account and returns its session.
func openSession(t *testing.T, svc *auth.Service, email string) *auth.Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: "correct-horse",
		TenantID: "acme",
	}, auth.ClientMeta{UserAgent: "go-test", IP: "192.0.2.10"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return sess
}
