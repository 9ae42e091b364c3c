package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/logger"
)

// Source supplies cookies kept outside pinrunner
type Source interface {
	FetchCookies(ctx context.Context) ([]browser.Cookie, error)
}

// Sink receives cookies after a session is saved
type Sink interface {
	StoreCookies(ctx context.Context, cookies []browser.Cookie) error
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]browser.Cookie, error)

func (f SourceFunc) FetchCookies(ctx context.Context) ([]browser.Cookie, error) { return f(ctx) }

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, cookies []browser.Cookie) error

func (f SinkFunc) StoreCookies(ctx context.Context, cookies []browser.Cookie) error {
	return f(ctx, cookies)
}

// Origin names where loaded cookies came from
type Origin string

const (
	OriginExplicit Origin = "explicit"
	OriginExternal Origin = "external"
	OriginLocal    Origin = "local"
	OriginNone     Origin = "none"
)

// Store moves cookies between a session and its sources and sinks
type Store struct {
	path      string
	saveLocal bool
	explicit  []browser.Cookie
	source    Source
	sink      Sink
	now       func() time.Time
	log       logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithCookies supplies cookies that win over every other source
func WithCookies(cookies []browser.Cookie) Option {
	return func(s *Store) { s.explicit = cookies }
}

// WithSource adds an external cookie source
func WithSource(src Source) Option {
	return func(s *Store) { s.source = src }
}

// WithSink adds an external cookie sink
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store from the session config
func NewStore(cfg config.SessionConfig, log logger.Logger, opts ...Option) *Store {
	s := &Store{
		path:      cfg.CookieFile,
		saveLocal: cfg.SaveLocal,
		now:       time.Now,
		log:       logger.Component(log, "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path is the local cache location
func (s *Store) Path() string {
	return s.path
}

// Load applies the highest-priority non-empty cookie set to the session.
// It must run before the first navigation.
func (s *Store) Load(ctx context.Context, sess *Session) (Origin, error) {
	cookies, origin := s.pick(ctx)
	cookies = s.dropExpired(cookies)

	if len(cookies) == 0 {
		s.log.DebugWithFields("starting fresh session", map[string]interface{}{"session": sess.ID.String()})
		return OriginNone, nil
	}

	if err := sess.Page.SetCookies(ctx, cookies); err != nil {
		return origin, errs.Wrap(errs.KindSetupFailure, err, "failed to apply cookies")
	}
	s.log.InfoWithFields("cookies loaded", map[string]interface{}{
		"session": sess.ID.String(),
		"origin":  string(origin),
		"count":   len(cookies),
	})
	return origin, nil
}

func (s *Store) pick(ctx context.Context) ([]browser.Cookie, Origin) {
	if len(s.explicit) > 0 {
		return s.explicit, OriginExplicit
	}

	if s.source != nil {
		cookies, err := s.source.FetchCookies(ctx)
		if err != nil {
			s.log.WithError(err).Warn("external cookie source failed")
		} else if len(cookies) > 0 {
			return cookies, OriginExternal
		}
	}

	if s.path != "" {
		cookies, err := readCookieFile(s.path)
		if err != nil {
			s.log.WithError(err).WarnWithFields("ignoring local cookie cache", map[string]interface{}{"path": s.path})
		} else if len(cookies) > 0 {
			return cookies, OriginLocal
		}
	}

	return nil, OriginNone
}

func (s *Store) dropExpired(cookies []browser.Cookie) []browser.Cookie {
	now := s.now()
	kept := cookies[:0:0]
	for _, c := range cookies {
		if c.Expired(now) {
			continue
		}
		kept = append(kept, c)
	}
	if dropped := len(cookies) - len(kept); dropped > 0 {
		s.log.DebugWithFields("dropped expired cookies", map[string]interface{}{"count": dropped})
	}
	return kept
}

// Get reads the session's current cookies without side effects
func (s *Store) Get(ctx context.Context, sess *Session) ([]browser.Cookie, error) {
	cookies, err := sess.Page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session cookies: %w", err)
	}
	return cookies, nil
}

// Save forwards the current cookies to every enabled sink. Local cache
// failures are logged only; an external sink failure is returned.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	cookies, err := s.Get(ctx, sess)
	if err != nil {
		return err
	}

	if s.saveLocal && s.path != "" {
		if err := writeCookieFile(s.path, cookies); err != nil {
			s.log.WithError(err).WarnWithFields("failed to write local cookie cache", map[string]interface{}{"path": s.path})
		} else {
			s.log.DebugWithFields("cookies saved locally", map[string]interface{}{"path": s.path, "count": len(cookies)})
		}
	}

	if s.sink != nil {
		if err := s.sink.StoreCookies(ctx, cookies); err != nil {
			return fmt.Errorf("failed to store cookies in external sink: %w", err)
		}
	}
	return nil
}

// ReadLocal returns the cached cookies without touching any session
func (s *Store) ReadLocal() ([]browser.Cookie, error) {
	if s.path == "" {
		return nil, nil
	}
	return readCookieFile(s.path)
}

// ClearLocal removes the local cache
func (s *Store) ClearLocal() error {
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}
