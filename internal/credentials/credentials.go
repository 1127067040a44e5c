// Package credentials stores and retrieves the Drive bearer token using the
// OS-native keyring, with fallback to an environment variable and to the
// local key-value store under a fixed key.
package credentials

import (
	"context"
	"os"
	"strings"

	"todokeep/kv"
)

// EnvToken is the environment variable consulted when the keyring holds no
// token. Intended for headless and CI use.
const EnvToken = "TODOKEEP_DRIVE_TOKEN"

const (
	keyringService = "todokeep-drive"
	keyringAccount = "oauth"
)

// Source indicates where a token was retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceStorage     Source = "storage"
	SourceNone        Source = "none"
)

// TokenInfo describes a token lookup result. The token itself is kept out of
// display paths.
type TokenInfo struct {
	Source Source
	Found  bool
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles token cache operations
type Manager struct {
	keyring Keyring
	storage kv.Store
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a token cache backed by the given key-value storage.
// The OS keyring is preferred when available.
func NewManager(storage kv.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		storage: storage,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the cached bearer token. Lookup order: keyring, environment,
// key-value store. found is false when no source holds a token.
func (m *Manager) Token(ctx context.Context) (token string, found bool, err error) {
	info, token, err := m.lookup(ctx)
	if err != nil {
		return "", false, err
	}
	return token, info.Found, nil
}

// Lookup reports where the cached token came from, for status display.
func (m *Manager) Lookup(ctx context.Context) (*TokenInfo, error) {
	info, _, err := m.lookup(ctx)
	return info, err
}

func (m *Manager) lookup(ctx context.Context) (*TokenInfo, string, error) {
	if token, err := m.keyring.Get(keyringService, keyringAccount); err == nil && token != "" {
		return &TokenInfo{Source: SourceKeyring, Found: true}, token, nil
	}

	if token := os.Getenv(EnvToken); token != "" {
		return &TokenInfo{Source: SourceEnvironment, Found: true}, token, nil
	}

	data, ok, err := m.storage.Get(ctx, kv.KeyDriveToken)
	if err != nil {
		return nil, "", err
	}
	if ok && len(data) > 0 {
		return &TokenInfo{Source: SourceStorage, Found: true}, string(data), nil
	}

	return &TokenInfo{Source: SourceNone, Found: false}, "", nil
}

// Save caches a token in the keyring, falling back to the key-value store
// when no keyring is available.
func (m *Manager) Save(ctx context.Context, token string) error {
	if err := m.keyring.Set(keyringService, keyringAccount, token); err == nil {
		return nil
	}
	return m.storage.Set(ctx, kv.KeyDriveToken, []byte(token))
}

// Clear removes the cached token from every source it could live in. The kv
// copy goes first so a keyring failure cannot leave it behind; a keyring
// failure other than not-found is reported, since lookup prefers the keyring
// and a surviving entry would be silently re-adopted. Idempotent: clearing an
// absent token is not an error.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.storage.Delete(ctx, kv.KeyDriveToken); err != nil {
		return err
	}
	if err := m.keyring.Delete(keyringService, keyringAccount); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// isNotFound matches keyring "not found" errors across implementations
func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
