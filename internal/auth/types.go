package auth

import "time"

// User represents an account scoped to a tenant.
type User struct {
	ID           string
	TenantID     string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	Roles        []Role
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is a persisted refresh token row. The row, not the token
// signature, is authoritative for validity: a revoked row invalidates a
// still-cryptographically-valid token.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	UserAgent string
	IP        string
	CreatedAt time.Time
}

// ClientMeta carries per-request client attributes onto issued refresh tokens.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// Principal is the request-scoped identity derived from a verified access
// token. It is never persisted.
type Principal struct {
	UserID   string
	Email    string
	TenantID string
	Roles    []Role
}

// HasRole reports whether the principal holds the given role.
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds at least one of the roles.
func (p Principal) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// Session is the result of a successful register, login or refresh: a fresh
// token pair plus the CSRF token that accompanies the cookie set.
type Session struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
}
