package httpapi

import (
	"net/http"

	"tenauth.org/internal/auth"
)

// RouteMeta declares the admission contract of a route. The registry is
// built once at startup and read-only afterwards: the guard chain never
// derives metadata per request.
type RouteMeta struct {
	Public bool
	Roles  []auth.Role
}

func routeKey(method, path string) string {
	return method + " " + path
}

// defaultRoutes maps (method, path) to admission metadata. Routes absent
// from the registry are treated as private with no role requirement, so an
// unregistered path fails closed rather than open.
func defaultRoutes() map[string]RouteMeta {
	return map[string]RouteMeta{
		routeKey(http.MethodPost, "/auth/register"): {Public: true},
		routeKey(http.MethodPost, "/auth/login"):    {Public: true},
		routeKey(http.MethodPost, "/auth/refresh"):  {Public: true},
		routeKey(http.MethodPost, "/auth/logout"):   {},
		routeKey(http.MethodGet, "/auth/me"):        {},

		routeKey(http.MethodGet, "/healthz"): {Public: true},
		routeKey(http.MethodGet, "/readyz"):  {Public: true},
		routeKey(http.MethodGet, "/metrics"): {Public: true},
	}
}

func (a *API) routeMeta(r *http.Request) RouteMeta {
	if meta, ok := a.routes[routeKey(r.Method, r.URL.Path)]; ok {
		return meta
	}
	return RouteMeta{}
}
