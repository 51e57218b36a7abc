package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountInactive    = errors.New("auth: account inactive")
	ErrDuplicateUser      = errors.New("auth: duplicate user")
	ErrTokenMissing       = errors.New("auth: token missing")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenInvalid       = errors.New("auth: token invalid")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrCSRFMissing        = errors.New("auth: csrf token missing")
	ErrCSRFMismatch       = errors.New("auth: csrf token mismatch")
	ErrNotFound           = errors.New("auth: not found")
	ErrInvalidInput       = errors.New("auth: invalid input")

	// ErrUnavailable marks infrastructure failures (persistence down,
	// deadline exceeded). Callers may retry; security failures above
	// must not be retried automatically.
	ErrUnavailable = errors.New("auth: unavailable")
)
