package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const minPasswordLength = 8

// LoginLimiter throttles failed credential attempts. Optional: the service
// works without one.
type LoginLimiter interface {
	Check(ctx context.Context, identifier, ip string) error
	RecordFailure(ctx context.Context, identifier, ip string) error
	Reset(ctx context.Context, identifier, ip string) error
}

// Service orchestrates registration, login, refresh rotation and logout.
type Service struct {
	store   Store
	issuer  *TokenIssuer
	limiter LoginLimiter
	now     func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLoginLimiter wires a failed-login throttle into the login path.
func WithLoginLimiter(l LoginLimiter) ServiceOption {
	return func(s *Service) error {
		s.limiter = l
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, issuer *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	svc := &Service{
		store:  store,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// infra tags persistence and timeout failures so the boundary never
// conflates them with authentication decisions.
func infra(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
	TenantID  string
}

// Register creates an account and opens its first session.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta ClientMeta) (*Session, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	tenantID := strings.TrimSpace(in.TenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		TenantID:     tenantID,
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		Roles:        []Role{RoleUser},
		Active:       true,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, infra(err)
	}
	return s.openSession(ctx, user, meta)
}

// Login verifies credentials and opens a session. Every credential failure
// maps to the same generic error to prevent account enumeration.
func (s *Service) Login(ctx context.Context, email, password string, meta ClientMeta) (*Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email, meta.IP); err != nil {
			return nil, err
		}
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordLoginFailure(ctx, email, meta.IP)
			return nil, ErrInvalidCredentials
		}
		return nil, infra(err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.recordLoginFailure(ctx, email, meta.IP)
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}
	if s.limiter != nil {
		_ = s.limiter.Reset(ctx, email, meta.IP)
	}

	now := s.now().UTC()
	// Last-login bookkeeping must not block a successful login.
	if err := s.store.Users().UpdateLastLogin(ctx, user.ID, now); err == nil {
		user.LastLoginAt = &now
	}
	return s.openSession(ctx, user, meta)
}

func (s *Service) recordLoginFailure(ctx context.Context, email, ip string) {
	if s.limiter == nil {
		return
	}
	_ = s.limiter.RecordFailure(ctx, email, ip)
}

// Refresh rotates a refresh token: the presented token is consumed
// atomically before a successor pair is issued, so a given token string
// succeeds at most once.
func (s *Service) Refresh(ctx context.Context, rawToken string, meta ClientMeta) (*Session, error) {
	subject, err := s.issuer.VerifyRefreshSignature(rawToken)
	if err != nil {
		return nil, err
	}

	tokens := s.store.RefreshTokens()
	rec, err := tokens.FindByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Absent and revoked are indistinguishable to the client.
			return nil, ErrTokenInvalid
		}
		return nil, infra(err)
	}
	if rec.UserID != subject {
		return nil, ErrTokenInvalid
	}
	if rec.Revoked {
		return nil, ErrTokenRevoked
	}
	if s.now().After(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.store.Users().Find(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, infra(err)
	}
	if !user.Active {
		return nil, ErrAccountInactive
	}

	consumed, err := tokens.Consume(ctx, rawToken)
	if err != nil {
		return nil, infra(err)
	}
	if !consumed {
		// A concurrent refresh won the conditional update.
		return nil, ErrTokenRevoked
	}
	return s.openSession(ctx, user, meta)
}

// Logout revokes the presented refresh token. It succeeds silently when the
// token is already revoked or unknown: clients may log out twice.
func (s *Service) Logout(ctx context.Context, userID, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil
	}
	if err := s.store.RefreshTokens().Revoke(ctx, userID, rawToken); err != nil {
		return infra(err)
	}
	return nil
}

// Me returns the account behind an authenticated principal.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, infra(err)
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *User, meta ClientMeta) (*Session, error) {
	access, accessExp, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefreshToken(user, meta)
	if err != nil {
		return nil, err
	}
	if err := s.store.RefreshTokens().Create(ctx, refresh); err != nil {
		return nil, infra(err)
	}
	csrf, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		CSRFToken:        csrf,
	}, nil
}
