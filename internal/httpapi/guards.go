package httpapi

import (
	"net/http"
	"strings"

	"tenauth.org/internal/auth"
)

// denial short-circuits the guard chain and the handler.
type denial struct {
	status  int
	code    string
	message string
}

// guard inspects a request against its route metadata and either admits it
// (possibly with an enriched context) or denies it.
type guard func(r *http.Request, meta RouteMeta) (*http.Request, *denial)

// withGuards runs the fixed, ordered admission pipeline: authentication,
// authorization, CSRF. The first denial wins; no handler runs after one.
func (a *API) withGuards(next http.Handler) http.Handler {
	guards := []guard{
		a.authenticationGuard,
		a.authorizationGuard,
		a.csrfGuard,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := a.routeMeta(r)
		for _, g := range guards {
			admitted, deny := g(r, meta)
			if deny != nil {
				writeError(w, r, deny.status, deny.code, deny.message)
				return
			}
			r = admitted
		}
		next.ServeHTTP(w, r)
	})
}

// authenticationGuard extracts a token (cookie first, Authorization header
// as fallback), verifies it and populates the request-scoped principal.
func (a *API) authenticationGuard(r *http.Request, meta RouteMeta) (*http.Request, *denial) {
	if meta.Public {
		return r, nil
	}
	token := cookieValue(r, accessCookieName)
	if token == "" {
		token, _ = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		return r, &denial{http.StatusUnauthorized, "unauthenticated", "authentication required"}
	}
	principal, err := a.issuer.ParseAccessToken(token)
	if err != nil {
		switch err {
		case auth.ErrTokenExpired:
			return r, &denial{http.StatusUnauthorized, "token_expired", "access token expired"}
		default:
			return r, &denial{http.StatusUnauthorized, "token_invalid", "access token invalid"}
		}
	}
	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	return r.WithContext(ctx), nil
}

// authorizationGuard admits when the route declares no roles, or when the
// principal holds at least one of them.
func (a *API) authorizationGuard(r *http.Request, meta RouteMeta) (*http.Request, *denial) {
	if len(meta.Roles) == 0 {
		return r, nil
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return r, &denial{http.StatusUnauthorized, "unauthenticated", "authentication required"}
	}
	if !principal.HasAnyRole(meta.Roles...) {
		return r, &denial{http.StatusForbidden, "forbidden", "insufficient role"}
	}
	return r, nil
}

var stateChangingMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// csrfGuard enforces the double-submit pattern on state-changing requests
// to non-public routes: header and cookie must both be present and equal.
func (a *API) csrfGuard(r *http.Request, meta RouteMeta) (*http.Request, *denial) {
	if meta.Public {
		return r, nil
	}
	if _, stateChanging := stateChangingMethods[r.Method]; !stateChanging {
		return r, nil
	}
	header := strings.TrimSpace(r.Header.Get(csrfHeaderName))
	cookie := cookieValue(r, csrfCookieName)
	if header == "" || cookie == "" {
		return r, &denial{http.StatusForbidden, "csrf_token_missing", "csrf token missing"}
	}
	if !auth.CSRFTokensMatch(header, cookie) {
		return r, &denial{http.StatusForbidden, "csrf_token_mismatch", "csrf token mismatch"}
	}
	return r, nil
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
