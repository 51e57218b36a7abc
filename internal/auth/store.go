package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users() UserStore
	RefreshTokens() RefreshTokenStore
}

// UserStore manages user rows. The auth core only writes auth-relevant
// fields (password hash, last login); the rest of the user lifecycle is
// owned elsewhere.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// RefreshTokenStore is the only mutable shared resource in the core. All
// refresh token mutations go through it.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)

	// Consume atomically revokes the row identified by the token string
	// if and only if it is not yet revoked, and reports whether this call
	// performed the revocation. Two racers on the same token see exactly
	// one true.
	Consume(ctx context.Context, token string) (bool, error)

	// Revoke marks the (userID, token) row revoked. Revoking an already
	// revoked or unknown token is not an error: logout is idempotent.
	Revoke(ctx context.Context, userID, token string) error

	RevokeAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes rows whose expiry precedes the cutoff and
	// returns the number deleted. Used by the out-of-band sweep only.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
