package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"lazyauth.org/internal/audit"
	"lazyauth.org/internal/auth"
	"lazyauth.org/internal/identity"
	"lazyauth.org/internal/oauth"
	"lazyauth.org/internal/obs"
	"lazyauth.org/internal/state"
	"lazyauth.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// SessionCookieName is the HTTP-only cookie carrying the session token.
	SessionCookieName = "access_token"
)

type loginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	Message          string `json:"message"`
}

type callbackResponse struct {
	Message string            `json:"message"`
	User    identity.Identity `json:"user"`
	Token   token.Token       `json:"token"`
}

type protectedResponse struct {
	Message       string            `json:"message"`
	User          identity.Identity `json:"user"`
	AccessGranted bool              `json:"access_granted"`
}

type statusResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *identity.Identity `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	start, err := a.auth.StartLogin(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to start login")
		return
	}

	obs.IncLoginStarted()
	_ = audit.LogEvent(r.Context(), "auth.login.started", map[string]any{})

	writeJSON(w, http.StatusOK, loginResponse{
		AuthorizationURL: start.AuthorizationURL,
		State:            start.State,
		Message:          "Redirect user to authorization_url to complete login",
	})
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	q := r.URL.Query()
	code := q.Get("code")
	stateParam := q.Get("state")
	if code == "" || stateParam == "" {
		writeError(w, r, http.StatusBadRequest, "code and state query parameters are required")
		return
	}

	id, sessionToken, err := a.auth.HandleCallback(r.Context(), code, stateParam)
	if err != nil {
		a.callbackError(w, r, err)
		return
	}

	obs.IncCallback("success")
	ctx := identity.ContextWithIdentity(r.Context(), id)
	_ = audit.LogEvent(ctx, "auth.login.completed", map[string]any{
		"provider": id.Provider,
	})

	setSessionCookie(w, sessionToken)
	writeJSON(w, http.StatusOK, callbackResponse{
		Message: "Authentication successful",
		User:    id,
		Token:   sessionToken,
	})
}

// callbackError maps orchestrator failures onto the fixed HTTP
// contract. Internal detail goes to the log, never to the caller.
func (a *API) callbackError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, state.ErrInvalidState):
		obs.IncCallback("invalid_state")
		_ = audit.LogEvent(r.Context(), "auth.callback.rejected", map[string]any{
			"reason": "invalid_state",
		})
		writeError(w, r, http.StatusBadRequest, "Invalid state parameter")
	case errors.Is(err, oauth.ErrExchangeFailed), errors.Is(err, oauth.ErrProfileFetchFailed):
		result := "exchange_failed"
		if errors.Is(err, oauth.ErrProfileFetchFailed) {
			result = "profile_failed"
		}
		obs.IncCallback(result)
		obs.LogRequest(map[string]any{
			"level":      "error",
			"msg":        "provider call failed",
			"request_id": RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "Failed to authenticate with provider")
	default:
		obs.IncCallback("error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	id, err := a.authenticate(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// handleProtected is the worked example of guarding an application
// route with the session credential.
func (a *API) handleProtected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	id, err := a.authenticate(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, protectedResponse{
		Message:       "This is a protected resource",
		User:          id,
		AccessGranted: true,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// Session tokens are self-contained and unrevocable before expiry;
	// logout is instructing the client to discard the credential.
	clearSessionCookie(w)
	ctx := r.Context()
	if id, err := a.authenticate(r); err == nil {
		ctx = identity.ContextWithIdentity(ctx, id)
	}
	_ = audit.LogEvent(ctx, "auth.logout", map[string]any{})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Logged out successfully",
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	id, err := a.authenticate(r)
	if err != nil {
		writeJSON(w, http.StatusOK, statusResponse{Authenticated: false, User: nil})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Authenticated: true, User: &id})
}

// authenticate resolves the session credential from the request and
// verifies it. The Authorization header is tried first, then the
// cookie; a stale header does not shadow a fresh cookie.
func (a *API) authenticate(r *http.Request) (identity.Identity, error) {
	for _, cred := range credentialsFromRequest(r) {
		if id, err := a.auth.Authenticate(cred); err == nil {
			obs.IncTokenVerification(true)
			return id, nil
		}
	}
	obs.IncTokenVerification(false)
	return identity.Identity{}, auth.ErrUnauthenticated
}

// credentialsFromRequest returns the candidate credentials in trust
// order: bearer header, then session cookie.
func credentialsFromRequest(r *http.Request) []string {
	var creds []string
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		if tok := strings.TrimSpace(header[len(bearer):]); tok != "" {
			creds = append(creds, tok)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		creds = append(creds, c.Value)
	}
	return creds
}

func setSessionCookie(w http.ResponseWriter, tok token.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tok.AccessToken,
		Path:     "/",
		MaxAge:   tok.ExpiresIn,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
