package auth

import "testing"

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("token length %d, want 64 hex chars", len(a))
	}
	b, err := NewCSRFToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if a == b {
		t.Fatal("two tokens should not collide")
	}
}

func TestCSRFTokensMatch(t *testing.T) {
	tok, err := NewCSRFToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if !CSRFTokensMatch(tok, tok) {
		t.Fatal("identical tokens should match")
	}
	if CSRFTokensMatch(tok, tok[:32]) {
		t.Fatal("different lengths should not match")
	}
	other, _ := NewCSRFToken()
	if CSRFTokensMatch(tok, other) {
		t.Fatal("distinct tokens should not match")
	}
}
