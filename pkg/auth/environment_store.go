package auth

import (
	"os"
	"time"
)

const (
	envEmail    = "PINRUNNER_EMAIL"
	envPassword = "PINRUNNER_PASSWORD"
)

// EnvironmentStore reads one read-only account from PINRUNNER_EMAIL and
// PINRUNNER_PASSWORD
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account when email is empty or matches
func (e *EnvironmentStore) Retrieve(email string) (*Account, error) {
	envAddr := os.Getenv(envEmail)
	password := os.Getenv(envPassword)
	if envAddr == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if email != "" && email != envAddr {
		return nil, ErrCredentialsNotFound
	}
	return &Account{Email: envAddr, Password: password, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(email string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(email string) bool {
	_, err := e.Retrieve(email)
	return err == nil
}
