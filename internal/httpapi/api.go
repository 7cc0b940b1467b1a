// Package httpapi exposes the authentication flow over HTTP. Routing,
// cookies and status codes live here; protocol and security decisions
// live in the auth service.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"lazyauth.org/internal/auth"
	"lazyauth.org/internal/obs"
)

const serviceName = "lazyauth-api"

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	auth    *auth.Service
	version string

	rateBurst  int
	ratePerSec int
}

// New wires all routes.
func New(authsvc *auth.Service, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authsvc,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.healthz)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/callback", a.handleCallback)
	a.mux.HandleFunc("/auth/me", a.handleMe)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/status", a.handleStatus)

	a.mux.HandleFunc("/protected", a.handleProtected)

	a.mux.HandleFunc("/", a.home)

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": serviceName,
		"version": a.version,
	})
}

const homePage = `<!DOCTYPE html>
<html>
<head><title>lazyauth</title></head>
<body>
<h1>lazyauth</h1>
<p>OAuth2 authorization-code login service. User data comes straight from the provider; no user database.</p>
<ul>
<li><code>GET /auth/login</code> — initiate the login flow</li>
<li><code>GET /auth/callback</code> — provider callback</li>
<li><code>GET /auth/me</code> — current user profile (requires credential)</li>
<li><code>GET /auth/status</code> — authentication status</li>
<li><code>POST /auth/logout</code> — discard the session cookie</li>
<li><code>GET /protected</code> — example protected endpoint</li>
</ul>
</body>
</html>
`

func (a *API) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(homePage))
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
