package cli

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// keyringService identifies docadmin's namespace in the OS credential store.
const keyringService = "docadmin"

// ErrNoCredentials is returned when no API key is saved for an endpoint.
var ErrNoCredentials = errors.New("no API key saved for endpoint")

// CredentialStore keeps one API key per admin endpoint.
type CredentialStore interface {
	SaveAPIKey(endpoint, key string) error
	APIKey(endpoint string) (string, error)
	DeleteAPIKey(endpoint string) error
}

// KeyringStore is a CredentialStore backed by a keyring. It is safe for
// concurrent use.
type KeyringStore struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewKeyringStore wraps ring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyring opens the native credential store of the platform: Keychain
// on macOS, Credential Manager on Windows and Secret Service, KWallet or
// pass on Linux.
func OpenKeyring() (*KeyringStore, error) {
	var backends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		backends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
	cfg := keyring.Config{
		ServiceName:     keyringService,
		AllowedBackends: backends,
		PassPrefix:      keyringService,
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = keyringService
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening OS keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func apiKeyItem(endpoint string) string {
	return "api_key:" + endpoint
}

func (s *KeyringStore) SaveAPIKey(endpoint, key string) error {
	if key == "" {
		return errors.New("empty API key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Set(keyring.Item{
		Key:         apiKeyItem(endpoint),
		Data:        []byte(key),
		Label:       "docadmin API key for " + endpoint,
		Description: "docadmin API key",
	})
}

func (s *KeyringStore) APIKey(endpoint string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.ring.Get(apiKeyItem(endpoint))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNoCredentials
	}
	return string(it.Data), nil
}

// DeleteAPIKey removes the key saved for endpoint, or returns
// ErrNoCredentials when there is none. Backends disagree on what Remove
// reports for a missing item, so presence is checked with Get first.
func (s *KeyringStore) DeleteAPIKey(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := apiKeyItem(endpoint)
	if _, err := s.ring.Get(item); errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNoCredentials
	} else if err != nil {
		return err
	}
	return s.ring.Remove(item)
}
