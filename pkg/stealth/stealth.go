// Package stealth builds the browsing context a session runs in: one
// fingerprint profile per session, installed on the session's page before
// its first document commits. Dedicated workers started by that page
// inherit the patched navigator; tabs the page opens itself and shared
// workers do not.
package stealth

import (
	"context"

	"github.com/go-rod/stealth"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/fingerprint"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/session"
)

// Opener creates pages; *browser.Browser implements it
type Opener interface {
	NewPage(ctx context.Context, isolated bool) (browser.Page, error)
	Persistent() bool
}

// Options selects the profile for a new context
type Options struct {
	Device       string
	Platform     string
	Locale       string
	Timezone     string
	ProxyCountry string
	Seed         uint64
}

// OptionsFromConfig reads profile options from the browser and proxy config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Platform:     cfg.Browser.Platform,
		Locale:       cfg.Browser.Locale,
		Timezone:     cfg.Browser.Timezone,
		ProxyCountry: cfg.Proxy.Country,
	}
}

// Builder constructs stealth sessions
type Builder struct {
	log logger.Logger
}

// NewBuilder creates a Builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{log: logger.Component(log, "stealth")}
}

// Build opens an isolated context, unless a persistent profile directory is
// in use, and installs a freshly generated profile into it. The returned
// session is unauthenticated.
func (b *Builder) Build(ctx context.Context, opener Opener, opts Options) (*session.Session, error) {
	profile, err := fingerprint.Generate(fingerprint.Options{
		Device:       opts.Device,
		Platform:     opts.Platform,
		Locale:       opts.Locale,
		Timezone:     opts.Timezone,
		ProxyCountry: opts.ProxyCountry,
		Seed:         opts.Seed,
	})
	if err != nil {
		return nil, err
	}

	page, err := opener.NewPage(ctx, !opener.Persistent())
	if err != nil {
		return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to open browsing context")
	}

	if err := Install(ctx, page, profile); err != nil {
		_ = page.Close()
		return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to install stealth profile")
	}

	sess := session.New(page, profile)
	b.log.InfoWithFields("stealth context ready", map[string]interface{}{
		"session":  sess.ID.String(),
		"platform": profile.Platform,
		"chrome":   profile.ChromeMajor,
		"locale":   profile.Locale,
		"timezone": profile.Timezone,
		"viewport": []int{profile.ViewportWidth, profile.ViewportHeight},
	})
	return sess, nil
}

// Install puts the evasion bundle and the profile patch on the page as
// new-document scripts, then applies the matching driver-level overrides.
func Install(ctx context.Context, page browser.Page, profile *fingerprint.Profile) error {
	if err := page.AddInitScript(ctx, stealth.JS); err != nil {
		return err
	}
	if err := page.AddInitScript(ctx, profile.Script()); err != nil {
		return err
	}
	return page.Emulate(ctx, browser.EmulationFor(profile))
}
