package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"tenauth.org/internal/auth"
	"tenauth.org/internal/obs"
)

const (
	maxBodyBytes    = 1 << 20
	rateLimitBurst  = 20
	rateLimitPerSec = 10
)

// ReadyProbe — простая проверка готовности (ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API surface.
type Config struct {
	Service      *auth.Service
	Issuer       *auth.TokenIssuer
	ReadyProbe   ReadyProbe
	Version      string
	CookieSecure bool
}

// API — HTTP слой.
type API struct {
	mux          *http.ServeMux
	svc          *auth.Service
	issuer       *auth.TokenIssuer
	routes       map[string]RouteMeta
	readyProbe   ReadyProbe
	version      string
	cookieSecure bool
}

func New(cfg Config) *API {
	a := &API{
		mux:          http.NewServeMux(),
		svc:          cfg.Service,
		issuer:       cfg.Issuer,
		routes:       defaultRoutes(),
		readyProbe:   cfg.ReadyProbe,
		version:      cfg.Version,
		cookieSecure: cfg.CookieSecure,
	}

	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/me", a.handleMe)

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully assembled chain. Guards sit innermost so every
// earlier layer (request id, logging, limits) also covers denied requests.
func (a *API) Handler() http.Handler {
	h := a.withGuards(a.mux)
	h = RateLimit(h, rateLimitBurst, rateLimitPerSec)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tenauth-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
