package credstore

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
)

// LiteralKeySource returns a fixed API key taken from configuration.
// An empty value means no API key is configured, which is valid.
type LiteralKeySource string

// Compile-time check to ensure LiteralKeySource implements KeySource
var _ KeySource = LiteralKeySource("")

// APIKey returns the literal key.
func (l LiteralKeySource) APIKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(l), nil
}

// KeyringKeySource reads the API key from OS-native credential storage
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
// Intended for local development so the key never lands in a dotfile.
type KeyringKeySource struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringKeySource implements KeySource
var _ KeySource = (*KeyringKeySource)(nil)

// NewKeyringKeySource creates a KeyringKeySource for the given service
// and user identifiers.
func NewKeyringKeySource(service, user string) (*KeyringKeySource, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringKeySource{
		service: service,
		user:    user,
	}, nil
}

// APIKey returns the key from the system keyring. Returns error if not
// found or empty.
func (k *KeyringKeySource) APIKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := keyring.Get(k.service, k.user)
	if err != nil {
		return "", err
	}

	if key == "" {
		return "", fmt.Errorf("empty API key in keyring for service %s, user %s", k.service, k.user)
	}

	return key, nil
}

// StoreKey persists the key to the system keyring, overwriting any
// existing value. Used by the `apikey set` command.
func (k *KeyringKeySource) StoreKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.user, key)
}
