package httpapi

import (
	"net/http"
	"time"

	"tenauth.org/internal/auth"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-Csrf-Token"
)

// setSessionCookies installs the three session cookies. The CSRF cookie is
// deliberately script-readable: the double-submit pattern needs the client
// to copy it into a request header.
func (a *API) setSessionCookies(w http.ResponseWriter, session *auth.Session) {
	now := time.Now()
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.AccessExpiresAt,
		MaxAge:   int(session.AccessExpiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    session.RefreshToken,
		Path:     "/auth",
		Expires:  session.RefreshExpiresAt,
		MaxAge:   int(session.RefreshExpiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    session.CSRFToken,
		Path:     "/",
		Expires:  session.RefreshExpiresAt,
		MaxAge:   int(session.RefreshExpiresAt.Sub(now).Seconds()),
		HttpOnly: false,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	for _, c := range []struct {
		name     string
		path     string
		httpOnly bool
	}{
		{accessCookieName, "/", true},
		{refreshCookieName, "/auth", true},
		{csrfCookieName, "/", false},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: c.httpOnly,
			Secure:   a.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
