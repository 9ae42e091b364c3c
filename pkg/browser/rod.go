package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	errs "pinrunner/pkg/errors"
)

// rodPage adapts a go-rod page to Page
type rodPage struct {
	page *rod.Page
	// owner is the incognito context created for this page, if any
	owner *rod.Browser
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return errs.Wrap(errs.KindNavigation, err, fmt.Sprintf("failed to navigate to %s", url))
	}
	if err := pg.WaitLoad(); err != nil {
		return errs.Wrap(errs.KindNavigation, err, "page did not finish loading")
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	before := p.URL()
	wait := p.page.Context(ctx).Timeout(timeout).WaitNavigation(proto.PageLifecycleEventNameLoad)
	wait()
	if p.URL() == before {
		return errs.New(errs.KindNavigation, "no navigation within %s", timeout)
	}
	return nil
}

func (p *rodPage) Query(ctx context.Context, selector string) (Element, bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if !has {
		return nil, false, nil
	}
	return &rodElement{el: el}, true, nil
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Cookies returns every cookie in the page's browser context, not only the
// ones scoped to the current URL.
func (p *rodPage) Cookies(ctx context.Context) ([]Cookie, error) {
	res, err := proto.NetworkGetAllCookies{}.Call(p.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	out := make([]Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		expires := float64(c.Expires)
		if c.Session || expires < 0 {
			expires = 0
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (p *rodPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	if err := p.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (p *rodPage) ClearCookies(ctx context.Context) error {
	if err := p.page.Context(ctx).SetCookies(nil); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

func (p *rodPage) Scroll(ctx context.Context, dy float64) error {
	return p.page.Context(ctx).Mouse.Scroll(0, dy, 1)
}

func (p *rodPage) PressEnter(ctx context.Context) error {
	return p.page.Context(ctx).Keyboard.Press(input.Enter)
}

func (p *rodPage) AddInitScript(ctx context.Context, js string) error {
	if _, err := p.page.Context(ctx).EvalOnNewDocument(js); err != nil {
		return fmt.Errorf("failed to add init script: %w", err)
	}
	return nil
}

func (p *rodPage) Emulate(ctx context.Context, em Emulation) error {
	pg := p.page.Context(ctx)
	ua := em.UserAgent

	meta := &proto.EmulationUserAgentMetadata{
		Brands:          brandList(ua.Brands),
		FullVersionList: brandList(ua.FullVersionList),
		FullVersion:     ua.FullVersion,
		Platform:        ua.Platform,
		PlatformVersion: ua.PlatformVersion,
		Architecture:    ua.Architecture,
		Bitness:         ua.Bitness,
		Mobile:          false,
	}
	if err := pg.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:         ua.UserAgent,
		AcceptLanguage:    ua.AcceptLanguage,
		Platform:          ua.Platform,
		UserAgentMetadata: meta,
	}); err != nil {
		return fmt.Errorf("failed to override user agent: %w", err)
	}

	if em.Width > 0 && em.Height > 0 {
		if err := pg.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             em.Width,
			Height:            em.Height,
			DeviceScaleFactor: em.DeviceScaleFactor,
		}); err != nil {
			return fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	if em.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: em.Timezone}).Call(pg); err != nil {
			return fmt.Errorf("failed to set timezone: %w", err)
		}
	}
	if em.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: em.Locale}).Call(pg); err != nil {
			return fmt.Errorf("failed to set locale: %w", err)
		}
	}
	return nil
}

func brandList(pairs [][2]string) []*proto.EmulationUserAgentBrandVersion {
	out := make([]*proto.EmulationUserAgentBrandVersion, 0, len(pairs))
	for _, b := range pairs {
		out = append(out, &proto.EmulationUserAgentBrandVersion{Brand: b[0], Version: b[1]})
	}
	return out
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if p.owner != nil {
		if cerr := p.owner.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// rodElement adapts a go-rod element to Element
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Type(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func (e *rodElement) Clear(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text: %w", err)
	}
	return el.Page().Keyboard.Press(input.Backspace)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) SetFiles(ctx context.Context, paths []string) error {
	return e.el.Context(ctx).SetFiles(paths)
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}
