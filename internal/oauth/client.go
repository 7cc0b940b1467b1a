// Package oauth talks to the OAuth2 identity provider: it exchanges a
// one-time authorization code for a provider access token and fetches
// the user's profile, normalizing the response into an Identity.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"lazyauth.org/internal/identity"
)

// ProviderName tags identities minted through the generic OAuth2 flow.
const ProviderName = "oauth2"

const defaultTimeout = 10 * time.Second

var (
	// ErrExchangeFailed indicates the code-for-token exchange failed,
	// either at transport level or with a non-2xx provider response.
	ErrExchangeFailed = errors.New("oauth: code exchange failed")
	// ErrProfileFetchFailed indicates the user-info request failed.
	ErrProfileFetchFailed = errors.New("oauth: profile fetch failed")
)

// Endpoints holds the provider URLs. All three are required.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Client drives the two provider calls of the authorization-code flow.
// Both outbound requests share one bounded-timeout HTTP client; provider
// unavailability fails the call instead of hanging it.
type Client struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the outbound HTTP client (useful for tests
// and for custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a provider client for the fixed scope set
// "openid profile email".
func NewClient(clientID, clientSecret, redirectURI string, ep Endpoints, opts ...ClientOption) *Client {
	c := &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   ep.AuthURL,
				TokenURL:  ep.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: ep.UserInfoURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL builds the provider authorization URL carrying the CSRF
// state. Pure construction; no network calls.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// ExchangeCode posts the authorization code to the token endpoint with
// grant_type=authorization_code, the redirect URI and the client
// credentials. The returned provider token is used once to fetch the
// profile and then discarded.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		// The wrapped error keeps the provider response for logs; the
		// HTTP boundary only ever reports a generic failure.
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return tok, nil
}

// FetchProfile requests the user-info endpoint with a bearer header and
// normalizes the JSON response into an Identity. Fallback order is
// load-bearing for compatibility: `id` wins over `sub`, `name` over
// `display_name`.
func (c *Client) FetchProfile(ctx context.Context, tok *oauth2.Token) (identity.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return identity.Identity{}, fmt.Errorf("%w: status %d: %s", ErrProfileFetchFailed, resp.StatusCode, body)
	}

	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err != nil {
		return identity.Identity{}, fmt.Errorf("%w: decode profile: %v", ErrProfileFetchFailed, err)
	}
	return normalizeProfile(profile), nil
}

func normalizeProfile(profile map[string]any) identity.Identity {
	subject := stringField(profile, "id")
	if subject == "" {
		subject = stringField(profile, "sub")
	}
	if subject == "" {
		subject = "unknown"
	}
	name := stringField(profile, "name")
	if name == "" {
		name = stringField(profile, "display_name")
	}
	return identity.Identity{
		Subject:  subject,
		Email:    stringField(profile, "email"),
		Name:     name,
		Provider: ProviderName,
		Raw:      profile,
	}
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
