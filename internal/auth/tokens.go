package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tenauth.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	minSecretLength   = 32
)

// AccessClaims are the claims carried by a stateless access token.
type AccessClaims struct {
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenConfig configures the issuer. Access and refresh tokens are signed
// with distinct secrets so a leaked refresh secret cannot mint access tokens.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenIssuer mints and verifies access and refresh tokens. It has no side
// effects: persisting issued refresh tokens is the caller's responsibility.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenIssuer validates the signing configuration. Weak or shared
// secrets are startup errors.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if len(access) < minSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d characters", minSecretLength)
	}
	if len(refresh) < minSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d characters", minSecretLength)
	}
	if access == refresh {
		return nil, errors.New("access and refresh secrets must differ")
	}
	ti := &TokenIssuer{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
	if ti.accessTTL <= 0 {
		ti.accessTTL = defaultAccessTTL
	}
	if ti.refreshTTL <= 0 {
		ti.refreshTTL = defaultRefreshTTL
	}
	return ti, nil
}

// AccessTTL returns the configured access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration { return ti.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// IssueAccessToken signs a short-lived HS256 token carrying the user's
// identity claims.
func (ti *TokenIssuer) IssueAccessToken(u *User) (string, time.Time, error) {
	now := ti.now().UTC()
	exp := now.Add(ti.accessTTL)
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	claims := AccessClaims{
		Email:    u.Email,
		TenantID: u.TenantID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// IssueRefreshToken mints an opaque refresh token and the row to persist
// alongside it. The row carries the request's client metadata.
func (ti *TokenIssuer) IssueRefreshToken(u *User, meta ClientMeta) (*RefreshToken, error) {
	now := ti.now().UTC()
	exp := now.Add(ti.refreshTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    ti.issuer,
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &RefreshToken{
		ID:        ids.New(),
		Token:     signed,
		UserID:    u.ID,
		ExpiresAt: exp,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		CreatedAt: now,
	}, nil
}

// ParseAccessToken verifies signature and expiry and derives the
// request-scoped principal from the claims.
func (ti *TokenIssuer) ParseAccessToken(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrTokenMissing
	}
	parsed, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return ti.accessSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return ti.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrTokenInvalid
	}
	roles := make([]Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		roles = append(roles, Role(r))
	}
	return Principal{
		UserID:   claims.Subject,
		Email:    claims.Email,
		TenantID: claims.TenantID,
		Roles:    roles,
	}, nil
}

// VerifyRefreshSignature checks that the refresh token string was signed by
// this service and returns its subject. Expiry is deliberately not checked
// here: the persisted row is authoritative and its checks run in the order
// the rotation state machine requires.
func (ti *TokenIssuer) VerifyRefreshSignature(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrTokenMissing
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return ti.refreshSecret, nil
	})
	if err != nil {
		return "", ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
