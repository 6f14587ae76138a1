package credstore

import "context"

// Store holds the credentials for one scope. An empty token is a valid
// state, not an error: the API key alone may be enough for the backend.
type Store interface {
	// Token returns the current bearer token, or "" if none is held.
	Token() string

	// SetToken replaces the current token. An empty value clears it.
	SetToken(token string)

	// Invalidate reacts to a failed token recovery. Memory scope drops
	// the token; cookie scope leaves the client-side expiry in place.
	Invalidate()

	// APIKey returns the static API key, or "" if none is configured.
	APIKey() string
}

// KeySource resolves the static API key at startup.
type KeySource interface {
	// APIKey returns the key. Returns error if the source is unreadable;
	// an intentionally absent key is represented by a LiteralKeySource("").
	APIKey(ctx context.Context) (string, error)
}

// OverrideAPIKey returns a view of s whose APIKey is replaced by key.
// Used when a submission carries its own API key overriding the
// configured default. An empty key leaves s untouched.
func OverrideAPIKey(s Store, key string) Store {
	if key == "" {
		return s
	}
	return &overrideStore{Store: s, apiKey: key}
}

type overrideStore struct {
	Store
	apiKey string
}

func (o *overrideStore) APIKey() string { return o.apiKey }
