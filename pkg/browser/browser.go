// Package browser is the narrow driver surface the rest of pinrunner needs:
// navigate, locate, act, read cookies and install pre-navigation scripts.
//
// The production implementation drives Chromium over CDP with go-rod. Tests
// use the fixture-backed fake in browsertest.
package browser

import (
	"context"
	"time"

	"pinrunner/pkg/fingerprint"
)

// Page is a single browsing tab
type Page interface {
	Navigate(ctx context.Context, url string) error
	// URL is the URL of the committed document
	URL() string
	// WaitNavigation blocks until the page commits a new document or timeout elapses
	WaitNavigation(ctx context.Context, timeout time.Duration) error

	// Query is an immediate, non-waiting lookup of the first match
	Query(ctx context.Context, selector string) (Element, bool, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	ClearCookies(ctx context.Context) error

	Scroll(ctx context.Context, dy float64) error
	PressEnter(ctx context.Context) error

	// AddInitScript runs js in every new document and before any page script
	AddInitScript(ctx context.Context, js string) error
	Emulate(ctx context.Context, em Emulation) error

	Close() error
}

// Element is a handle to a node in the current document
type Element interface {
	Click(ctx context.Context) error
	// Type inserts text at the cursor without clearing existing content
	Type(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	SetFiles(ctx context.Context, paths []string) error
	ScrollIntoView(ctx context.Context) error
}

// Cookie is the persisted cookie record
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
	// Expires is unix seconds; 0 marks a session cookie
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Key identifies a cookie independent of its value
func (c Cookie) Key() string {
	return c.Name + "|" + c.Domain + "|" + c.Path
}

// Expired reports whether a persistent cookie is past its expiry at now
func (c Cookie) Expired(now time.Time) bool {
	return c.Expires > 0 && c.Expires < float64(now.Unix())
}

// Emulation is the driver-level half of a fingerprint profile
type Emulation struct {
	UserAgent         fingerprint.UserAgentOverride
	Width             int
	Height            int
	DeviceScaleFactor float64
	Timezone          string
	Locale            string
}

// EmulationFor derives the emulation settings from a profile
func EmulationFor(p *fingerprint.Profile) Emulation {
	return Emulation{
		UserAgent:         p.UserAgentOverride(),
		Width:             p.ViewportWidth,
		Height:            p.ViewportHeight,
		DeviceScaleFactor: p.DeviceScaleFactor,
		Timezone:          p.Timezone,
		Locale:            p.Locale,
	}
}
