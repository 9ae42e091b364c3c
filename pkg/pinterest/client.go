// Package pinterest is the inbound surface: one Client per browser session,
// with a typed method per site operation. Mutating methods return an
// executor.Outcome; listing methods return their records alongside it.
package pinterest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/extract"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/login"
	"pinrunner/pkg/media"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/ratelimit"
	"pinrunner/pkg/session"
	"pinrunner/pkg/stealth"
	"pinrunner/pkg/timing"
)

// Client drives one authenticated-or-not browser session
type Client struct {
	cfg     *config.Config
	urls    urls
	browser *browser.Browser
	sess    *session.Session
	store   *session.Store

	exec     *executor.Executor
	auth     *login.Authenticator
	fetcher  *media.Fetcher
	extract  *extract.Extractor
	timing   *timing.Model
	metrics  *metrics.Recorder
	closers  []func() error
	closeMu  sync.Mutex
	closed   bool
	log      logger.Logger
	storeOps []session.Option
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records outcomes, logins and downloads
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTiming replaces the timing model
func WithTiming(m *timing.Model) Option {
	return func(c *Client) { c.timing = m }
}

// WithFetcher replaces the image fetcher
func WithFetcher(f *media.Fetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithStore replaces the cookie store
func WithStore(s *session.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithStoreOptions adds cookie sources and sinks to the default store
func WithStoreOptions(opts ...session.Option) Option {
	return func(c *Client) { c.storeOps = append(c.storeOps, opts...) }
}

// New launches a browser, builds a stealth session, loads its cookies and
// wires the operation pipeline
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	probe := &Client{}
	for _, opt := range opts {
		opt(probe)
	}
	log := probe.log
	if log == nil {
		log = logger.NewNopLogger()
	}

	b, err := browser.Launch(ctx, cfg.Browser, cfg.Proxy, log)
	if err != nil {
		return nil, err
	}

	sess, err := stealth.NewBuilder(log).Build(ctx, b, stealth.OptionsFromConfig(cfg))
	if err != nil {
		b.Close()
		return nil, err
	}

	var closers []func() error
	if cfg.Session.SQLitePath != "" {
		db, err := session.OpenSQLite(cfg.Session.SQLitePath, cfg.Session.AccountKey)
		if err != nil {
			sess.Close()
			b.Close()
			return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to open cookie database")
		}
		opts = append(opts, WithStoreOptions(session.WithSource(db), session.WithSink(db)))
		closers = append(closers, db.Close)
	}

	c, err := NewWithSession(cfg, sess, opts...)
	if err != nil {
		for _, closeFn := range closers {
			closeFn()
		}
		sess.Close()
		b.Close()
		return nil, err
	}
	c.browser = b
	c.closers = closers

	if _, err := c.store.Load(ctx, sess); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// NewWithSession wires a Client around an existing session. It does not
// load cookies.
func NewWithSession(cfg *config.Config, sess *session.Session, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, sess: sess, urls: newURLs(cfg.Pinterest.BaseURL)}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewNopLogger()
	}
	log := c.log

	if c.timing == nil {
		c.timing = timing.New(cfg.Timing)
	}
	if c.store == nil {
		c.store = session.NewStore(cfg.Session, log, c.storeOps...)
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.ActionsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.ActionsPerMinute, cfg.RateLimit.BurstSize)
	}

	snapshots := diagnostics.NewWriter(cfg.Diagnostics, log)
	exec, err := executor.New(cfg, c.timing, log,
		executor.WithLimiter(limiter),
		executor.WithSnapshots(snapshots),
		executor.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, err
	}
	c.exec = exec

	auth, err := login.New(cfg, c.timing, log, login.WithMetrics(c.metrics), login.WithSnapshots(snapshots))
	if err != nil {
		return nil, err
	}
	c.auth = auth

	if c.fetcher == nil {
		var dl ratelimit.Limiter = ratelimit.Unlimited{}
		if cfg.RateLimit.DownloadsPerMinute > 0 {
			dl = ratelimit.PerMinute(cfg.RateLimit.DownloadsPerMinute, 1)
		}
		c.fetcher = media.New(cfg.Download, log, media.WithLimiter(dl), media.WithMetrics(c.metrics))
	}
	if sess.Profile != nil {
		c.fetcher.UseProfile(sess.Profile.UserAgentOverride())
	}

	c.extract = extract.New(log)
	c.log = logger.Component(log, "pinterest").WithField("session", sess.ID.String())
	return c, nil
}

// Session is the underlying session
func (c *Client) Session() *session.Session {
	return c.sess
}

// Fetcher is the image fetcher bound to this session's fingerprint
func (c *Client) Fetcher() *media.Fetcher {
	return c.fetcher
}

// Login authenticates the session and saves its cookies on success.
// Credentials may be empty when the loaded cookies are expected to suffice.
func (c *Client) Login(ctx context.Context, creds login.Credentials) (login.Result, error) {
	res, err := c.auth.Login(ctx, c.sess, creds)
	if err != nil {
		return res, err
	}
	if err := c.store.Save(ctx, c.sess); err != nil {
		c.log.WithError(err).Warn("failed to save cookies after login")
	}
	return res, nil
}

// Cookies returns the session's current cookies
func (c *Client) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return c.store.Get(ctx, c.sess)
}

// SaveCookies forwards the current cookies to every enabled sink
func (c *Client) SaveCookies(ctx context.Context) error {
	return c.store.Save(ctx, c.sess)
}

// Screenshot writes a PNG of the current page to path
func (c *Client) Screenshot(ctx context.Context, path string) error {
	data, err := c.sess.Page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.Wrap(errs.KindFileSystem, err, "failed to create screenshot directory")
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.Wrap(errs.KindFileSystem, err, "failed to write screenshot")
	}
	c.log.InfoWithFields("screenshot saved", map[string]interface{}{"path": path, "url": c.sess.Page.URL()})
	return nil
}

// Close saves cookies to the sinks, then closes the session and browser.
// It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errList []error
	if err := c.store.Save(ctx, c.sess); err != nil {
		errList = append(errList, fmt.Errorf("failed to save cookies: %w", err))
	}
	if err := c.sess.Close(); err != nil {
		errList = append(errList, fmt.Errorf("failed to close session: %w", err))
	}
	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			errList = append(errList, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	c.log.Debug("client closed")
	return errors.Join(errList...)
}
