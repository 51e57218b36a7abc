package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tenauth.org/internal/audit"
	"tenauth.org/internal/auth"
	"tenauth.org/internal/obs"
	"tenauth.org/internal/rate"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	TenantID  string `json:"tenant_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Email       string     `json:"email"`
	Username    string     `json:"username,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Roles       []string   `json:"roles"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func toUserResponse(u *auth.User) userResponse {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	return userResponse{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       roles,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func clientMeta(r *http.Request) auth.ClientMeta {
	return auth.ClientMeta{
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	}
}

// writeAuthError maps the auth error taxonomy onto HTTP. Authentication
// failures are all 401, authorization and CSRF are 403, infrastructure is
// 503 and retryable; internals never leak.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid_input", "invalid request")
	case errors.Is(err, auth.ErrDuplicateUser):
		writeError(w, r, http.StatusBadRequest, "duplicate_user", "email or username already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusUnauthorized, "account_inactive", "account is disabled")
	case errors.Is(err, auth.ErrTokenMissing):
		writeError(w, r, http.StatusUnauthorized, "token_missing", "token required")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, r, http.StatusUnauthorized, "token_revoked", "token revoked")
	case errors.Is(err, auth.ErrTokenInvalid):
		writeError(w, r, http.StatusUnauthorized, "token_invalid", "token invalid")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", "insufficient role")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, rate.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many attempts")
	case errors.Is(err, auth.ErrUnavailable), errors.Is(err, rate.ErrRedisUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	session, err := a.svc.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		TenantID:  req.TenantID,
	}, clientMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			obs.ObserveRegistration("duplicate")
		} else {
			obs.ObserveRegistration("error")
		}
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveRegistration("success")
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":   session.User.ID,
		"tenant_id": session.User.TenantID,
	})

	a.setSessionCookies(w, session)
	writeJSON(w, http.StatusCreated, sessionResponse{
		User:      toUserResponse(session.User),
		ExpiresAt: session.AccessExpiresAt,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	session, err := a.svc.Login(r.Context(), req.Email, req.Password, clientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.ObserveLogin("invalid")
		case errors.Is(err, auth.ErrAccountInactive):
			obs.ObserveLogin("inactive")
		case errors.Is(err, rate.ErrRateLimited):
			obs.ObserveLogin("rate_limited")
		default:
			obs.ObserveLogin("error")
		}
		_ = audit.LogEvent(r.Context(), "auth.login.failure", map[string]any{
			"email": req.Email,
		})
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("success")
	_ = audit.LogEvent(r.Context(), "auth.login.success", map[string]any{
		"user_id":   session.User.ID,
		"tenant_id": session.User.TenantID,
	})

	a.setSessionCookies(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(session.User),
		ExpiresAt: session.AccessExpiresAt,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	raw := cookieValue(r, refreshCookieName)
	if raw == "" {
		obs.ObserveRefresh("rejected")
		writeAuthError(w, r, auth.ErrTokenMissing)
		return
	}

	session, err := a.svc.Refresh(r.Context(), raw, clientMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			obs.ObserveRefresh("error")
		} else {
			obs.ObserveRefresh("rejected")
		}
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("success")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": session.User.ID,
	})

	a.setSessionCookies(w, session)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      toUserResponse(session.User),
		ExpiresAt: session.AccessExpiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	if err := a.svc.Logout(r.Context(), principal.UserID, cookieValue(r, refreshCookieName)); err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id": principal.UserID,
	})

	a.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	user, err := a.svc.Me(r.Context(), principal.UserID)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}
