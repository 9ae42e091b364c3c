// Package auth stores account credentials for the login flow. Stores are
// tried in order: the system keychain, an encrypted file, then the
// environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"pinrunner/pkg/login"
)

// Account is one site account's login credentials
type Account struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// Credentials converts the account for the login flow
func (a *Account) Credentials() login.Credentials {
	if a == nil {
		return login.Credentials{}
	}
	return login.Credentials{Identifier: a.Email, Secret: a.Password}
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for the account's email
	Store(account *Account) error

	// Retrieve gets credentials for an email
	Retrieve(email string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes credentials for an email
	Delete(email string) error

	// Exists checks if credentials exist for an email
	Exists(email string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager over the keychain, when one is
// reachable, an encrypted file in the config directory and the environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil || strings.TrimSpace(account.Email) == "" {
		return errors.New("email is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(email string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(email); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrCredentialsNotFound, email)
}

// RetrieveDefault returns the environment's account when set, otherwise
// the most recently stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	latest := accounts[0]
	for _, a := range accounts[1:] {
		if a.LastModified.After(latest.LastModified) {
			latest = a
		}
	}
	return latest, nil
}

// List returns every stored account sorted by email. When stores disagree
// the most recently modified copy wins.
func (m *Manager) List() ([]*Account, error) {
	byEmail := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byEmail[account.Email]; !ok || account.LastModified.After(existing.LastModified) {
				byEmail[account.Email] = account
			}
		}
	}

	result := make([]*Account, 0, len(byEmail))
	for _, account := range byEmail {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

// Delete removes credentials from every store that has them
func (m *Manager) Delete(email string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete(email)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for %s", ErrCredentialsNotFound, email)
}

// DeleteAll removes every listed account, ignoring individual failures
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		_ = m.Delete(account.Email)
	}
	return nil
}

// ConfigDir returns the per-user configuration directory, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "pinrunner")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "pinrunner")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "pinrunner")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "pinrunner")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy safe to print
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Email:        maskEmail(account.Email),
		Password:     maskString(account.Password),
		LastModified: account.LastModified,
	}
}

// maskEmail keeps the first character of the local part and the domain
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return maskString(email)
	}
	return local[:1] + "***@" + domain
}

func maskString(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
