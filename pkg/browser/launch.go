package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/logger"
)

// forbiddenFlags never reach the browser command line. Disabling web
// security breaks nothing the site checks and is itself a visible flag.
var forbiddenFlags = map[string]bool{
	"disable-web-security": true,
}

// Browser is a launched or attached Chromium process
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	// persistent is true when a user data dir is configured; pages then share
	// the default context so the profile's storage is used
	persistent bool
	log        logger.Logger
}

// Launch starts Chromium, or connects to cfg.ControlURL when set.
// Every failure here is a SetupFailure.
func Launch(ctx context.Context, cfg config.BrowserConfig, proxy config.ProxyConfig, log logger.Logger) (*Browser, error) {
	log = logger.Component(log, "browser")

	var (
		wsURL string
		l     *launcher.Launcher
	)
	if cfg.ControlURL != "" {
		wsURL = cfg.ControlURL
		log.InfoWithFields("connecting to remote browser", map[string]interface{}{"url": wsURL})
	} else {
		l = launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")

		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		} else if path, ok := launcher.LookPath(); ok {
			l = l.Bin(path)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		if proxy.Server != "" {
			l = l.Proxy(proxy.Server)
		}
		if cfg.Locale != "" {
			l = l.Set("lang", cfg.Locale)
		}

		for _, f := range sanitizeFlags(cfg.ExtraFlags, log) {
			l = l.Set(flags.Flag(f.name), f.values...)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to launch browser")
		}
		wsURL = u
		log.InfoWithFields("launched local browser", map[string]interface{}{
			"headless": cfg.Headless,
			"proxy":    proxy.Server != "",
		})
	}

	rb := rod.New().Context(ctx).ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		if l != nil {
			l.Cleanup()
		}
		return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to connect to browser")
	}

	if proxy.Username != "" {
		wait := rb.HandleAuth(proxy.Username, proxy.Password)
		go func() {
			if err := wait(); err != nil {
				log.WithError(err).Warn("proxy authentication handler stopped")
			}
		}()
	}

	return &Browser{
		rod:        rb,
		launcher:   l,
		persistent: cfg.UserDataDir != "",
		log:        log,
	}, nil
}

type flag struct {
	name   string
	values []string
}

// sanitizeFlags parses "name" or "name=v1,v2" entries and drops forbidden ones
func sanitizeFlags(raw []string, log logger.Logger) []flag {
	var out []flag
	for _, r := range raw {
		r = strings.TrimLeft(strings.TrimSpace(r), "-")
		if r == "" {
			continue
		}
		name, value, hasValue := strings.Cut(r, "=")
		if forbiddenFlags[name] {
			log.WarnWithFields("dropping forbidden browser flag", map[string]interface{}{"flag": name})
			continue
		}
		f := flag{name: name}
		if hasValue {
			f.values = strings.Split(value, ",")
		}
		out = append(out, f)
	}
	return out
}

// Persistent reports whether pages share a persistent profile directory
func (b *Browser) Persistent() bool {
	return b.persistent
}

// NewPage opens a tab. Isolated tabs get their own incognito context, which
// is disposed when the page closes.
func (b *Browser) NewPage(ctx context.Context, isolated bool) (Page, error) {
	target := b.rod.Context(ctx)
	var owner *rod.Browser
	if isolated {
		inc, err := target.Incognito()
		if err != nil {
			return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to create incognito context")
		}
		target = inc
		owner = inc
	}

	p, err := target.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		if owner != nil {
			_ = owner.Close()
		}
		return nil, errs.Wrap(errs.KindSetupFailure, err, "failed to open page")
	}
	return &rodPage{page: p.Context(context.Background()), owner: owner}, nil
}

// Close shuts the browser down and removes the launcher's temp profile
func (b *Browser) Close() error {
	var err error
	if b.rod != nil {
		err = b.rod.Close()
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	b.log.Debug("browser closed")
	return err
}
