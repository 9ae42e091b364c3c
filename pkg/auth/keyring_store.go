package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pinrunner"
	keyringPrefix  = "account_"
)

// KeyringStore implements CredentialStore using the system keychain.
// The keychain cannot be enumerated, so List is always empty.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unreachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "availability_probe"
	if err := keyring.Set(keyringService, testKey, "probe"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Email == "" {
		return ErrInvalidCredentials
	}
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+account.Email, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(email string) (*Account, error) {
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	data, err := keyring.Get(keyringService, keyringPrefix+email)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

func (k *KeyringStore) List() ([]*Account, error) {
	return []*Account{}, nil
}

func (k *KeyringStore) Delete(email string) error {
	if email == "" {
		return ErrInvalidCredentials
	}
	if err := keyring.Delete(keyringService, keyringPrefix+email); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Exists(email string) bool {
	if email == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+email)
	return err == nil
}
