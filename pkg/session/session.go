// Package session owns a browsing session and the persistence of its cookies.
//
// A Session is driven by one caller at a time. Operations against the same
// session must be serialized; nothing here locks around navigation.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/fingerprint"
)

// Session is one browsing context with its fingerprint
type Session struct {
	ID      uuid.UUID
	Page    browser.Page
	Profile *fingerprint.Profile
	Created time.Time

	mu            sync.RWMutex
	authenticated bool
}

// New wraps a page. Sessions start unauthenticated until probing proves otherwise.
func New(page browser.Page, profile *fingerprint.Profile) *Session {
	return &Session{
		ID:      uuid.New(),
		Page:    page,
		Profile: profile,
		Created: time.Now(),
	}
}

// Authenticated reports the last known auth state
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// SetAuthenticated records the auth state
func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

// Close closes the page
func (s *Session) Close() error {
	if s.Page == nil {
		return nil
	}
	return s.Page.Close()
}
