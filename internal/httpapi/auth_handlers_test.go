package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthFlowEndToEnd(t *testing.T) {
	api, _, _ := newTestAPI(t)

	// Register.
	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
		"email":     "flow@example.com",
		"password":  "correct-horse",
		"tenant_id": "acme",
	}))
	rec := doGuarded(api, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d: %s", rec.Code, rec.Body.String())
	}

	access := cookieByName(rec, accessCookieName)
	refresh := cookieByName(rec, refreshCookieName)
	csrf := cookieByName(rec, csrfCookieName)
	if access == nil || refresh == nil || csrf == nil {
		t.Fatal("register did not set all three session cookies")
	}
	if !access.HttpOnly || !refresh.HttpOnly {
		t.Fatal("token cookies must be http-only")
	}
	if csrf.HttpOnly {
		t.Fatal("csrf cookie must be script-readable")
	}
	if refresh.Path != "/auth" {
		t.Fatalf("refresh cookie path = %q, want /auth", refresh.Path)
	}

	var registered struct {
		User struct {
			ID    string   `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.User.Email != "flow@example.com" {
		t.Fatalf("unexpected user: %+v", registered.User)
	}
	if len(registered.User.Roles) != 1 || registered.User.Roles[0] != "USER" {
		t.Fatalf("unexpected roles: %v", registered.User.Roles)
	}

	// Login again.
	req = httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]any{
		"email":    "flow@example.com",
		"password": "correct-horse",
	}))
	rec = doGuarded(api, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d: %s", rec.Code, rec.Body.String())
	}
	refresh = cookieByName(rec, refreshCookieName)
	csrf = cookieByName(rec, csrfCookieName)
	access = cookieByName(rec, accessCookieName)

	// Refresh rotates the token pair.
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refresh.Value})
	rec = doGuarded(api, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d: %s", rec.Code, rec.Body.String())
	}
	rotated := cookieByName(rec, refreshCookieName)
	if rotated == nil || rotated.Value == refresh.Value {
		t.Fatal("refresh did not rotate the refresh token")
	}

	// The consumed token is dead.
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: refresh.Value})
	rec = doGuarded(api, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: status = %d, want 401", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "token_revoked" {
		t.Fatalf("replay: error = %v, want token_revoked", body["error"])
	}

	// Me.
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: access.Value})
	rec = doGuarded(api, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status = %d: %s", rec.Code, rec.Body.String())
	}

	// Logout with the rotated pair.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: accessCookieName, Value: access.Value})
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: rotated.Value})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrf.Value})
	req.Header.Set(csrfHeaderName, csrf.Value)
	rec = doGuarded(api, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status = %d: %s", rec.Code, rec.Body.String())
	}
	cleared := cookieByName(rec, refreshCookieName)
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatal("logout did not clear the refresh cookie")
	}

	// The logged-out refresh token no longer rotates.
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: rotated.Value})
	rec = doGuarded(api, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout refresh: status = %d, want 401", rec.Code)
	}
}

func TestRegisterRejectsBadPayloads(t *testing.T) {
	api, _, _ := newTestAPI(t)

	// Unknown fields are rejected.
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"a@b.c","password":"correct-horse","tenant_id":"acme","surprise":true}`))
	rec := doGuarded(api, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d, want 400", rec.Code)
	}

	// Missing body.
	req = httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	rec = doGuarded(api, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status = %d, want 400", rec.Code)
	}

	// Validation failure from the service.
	req = httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
		"email":     "not-an-email",
		"password":  "correct-horse",
		"tenant_id": "acme",
	}))
	rec = doGuarded(api, req)
	if body := decodeEnvelope(t, rec); rec.Code != http.StatusBadRequest || body["error"] != "invalid_input" {
		t.Fatalf("bad email: status = %d, error = %v", rec.Code, body["error"])
	}
}

func TestRegisterDuplicate(t *testing.T) {
	api, svc, _ := newTestAPI(t)
	openSession(t, svc, "dup@example.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]any{
		"email":     "dup@example.com",
		"password":  "correct-horse",
		"tenant_id": "acme",
	}))
	rec := doGuarded(api, req)
	if body := decodeEnvelope(t, rec); rec.Code != http.StatusBadRequest || body["error"] != "duplicate_user" {
		t.Fatalf("status = %d, error = %v", rec.Code, body["error"])
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api, svc, _ := newTestAPI(t)
	openSession(t, svc, "known@example.com")

	for _, payload := range []map[string]any{
		{"email": "known@example.com", "password": "wrong-password"},
		{"email": "unknown@example.com", "password": "correct-horse"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, payload))
		rec := doGuarded(api, req)
		if body := decodeEnvelope(t, rec); rec.Code != http.StatusUnauthorized || body["error"] != "invalid_credentials" {
			t.Fatalf("payload %v: status = %d, error = %v", payload, rec.Code, body["error"])
		}
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	rec := doGuarded(api, req)
	if body := decodeEnvelope(t, rec); rec.Code != http.StatusUnauthorized || body["error"] != "token_missing" {
		t.Fatalf("status = %d, error = %v", rec.Code, body["error"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPut, "/auth/login", nil)
	rec := doGuarded(api, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q, want POST", allow)
	}
}
