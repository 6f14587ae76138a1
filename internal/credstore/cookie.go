package credstore

import (
	"net/http"
	"time"
)

// CookieOptions define the attributes of the session token cookie.
type CookieOptions struct {
	// Name of the cookie carrying the token.
	Name string

	// MaxAge bounds the client-side token lifetime.
	MaxAge time.Duration

	// Secure restricts the cookie to HTTPS. Tied to the deployment
	// environment, not hardcoded.
	Secure bool
}

// CookieStore scopes the bearer token to one browser session via an
// HTTP-only cookie. A fresh CookieStore is built for every request, so
// there is no shared mutable state across requests.
type CookieStore struct {
	w      http.ResponseWriter
	opts   CookieOptions
	apiKey string
	token  string
}

// Compile-time check to ensure CookieStore implements Store
var _ Store = (*CookieStore)(nil)

// NewCookieStore creates a per-request store reading the current token
// from r's cookie and writing replacements to w.
func NewCookieStore(w http.ResponseWriter, r *http.Request, opts CookieOptions, apiKey string) *CookieStore {
	s := &CookieStore{w: w, opts: opts, apiKey: apiKey}
	if c, err := r.Cookie(opts.Name); err == nil {
		s.token = c.Value
	}
	return s
}

// Token returns the token carried by the request cookie, or "" if the
// cookie is absent.
func (c *CookieStore) Token() string { return c.token }

// SetToken replaces the session token, emitting the Set-Cookie header
// immediately so the next request in the same session picks it up.
// An empty value expires the cookie.
func (c *CookieStore) SetToken(token string) {
	c.token = token

	cookie := &http.Cookie{
		Name:     c.opts.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(c.w, cookie)
}

// Invalidate is a no-op: the server cannot silently replace a client-held
// token mid-failure, so the cookie's own expiry governs its lifetime.
func (c *CookieStore) Invalidate() {}

// APIKey returns the static API key.
func (c *CookieStore) APIKey() string { return c.apiKey }
