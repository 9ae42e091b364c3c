// Package browsertest provides a fixture-driven browser.Page.
//
// Pages are plain HTML parsed with goquery. Routes map URLs to fixtures or
// redirects, and click, enter and scroll handlers mutate the document or
// navigate, so multi-step flows run without a browser process.
package browsertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/browser"
	errs "pinrunner/pkg/errors"
)

const blankHTML = "<html><head></head><body></body></html>"

// PNG is what Screenshot returns
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Handler reacts to a user action on the page
type Handler func(p *Page)

type route struct {
	html     string
	redirect string
}

type clickHandler struct {
	selector string
	fn       Handler
}

// Page is an in-memory browser.Page
type Page struct {
	mu sync.Mutex

	routes  map[string]route
	url     string
	doc     *goquery.Document
	pending string

	onClick  []clickHandler
	onEnter  Handler
	onScroll Handler

	clicked     []*goquery.Selection
	visited     []string
	cookies     []browser.Cookie
	initScripts []string
	emulation   *browser.Emulation
	screenshots int
	scrolled    float64
	closed      bool
}

var _ browser.Page = (*Page)(nil)

// New creates an empty page at about:blank
func New() *Page {
	p := &Page{routes: make(map[string]route), url: "about:blank"}
	p.doc = parse(blankHTML)
	return p
}

func parse(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(blankHTML))
	}
	return doc
}

// Route serves html at url
func (p *Page) Route(url, html string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = route{html: html}
	return p
}

// Redirect sends navigations of from to to
func (p *Page) Redirect(from, to string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[from] = route{redirect: to}
	return p
}

// OnClick runs fn when an element matching selector is clicked
func (p *Page) OnClick(selector string, fn Handler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick = append(p.onClick, clickHandler{selector: selector, fn: fn})
	return p
}

// OnEnter runs fn when Enter is pressed
func (p *Page) OnEnter(fn Handler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnter = fn
	return p
}

// OnScroll runs fn after every scroll increment
func (p *Page) OnScroll(fn Handler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onScroll = fn
	return p
}

func (p *Page) resolveLocked(url string) (string, string) {
	for i := 0; i < 10; i++ {
		r, ok := p.routes[url]
		if !ok {
			if base, _, found := strings.Cut(url, "?"); found {
				r, ok = p.routes[base]
			}
		}
		if !ok {
			return url, blankHTML
		}
		if r.redirect == "" {
			return url, r.html
		}
		url = r.redirect
	}
	return url, blankHTML
}

func (p *Page) commitLocked(url string) {
	final, html := p.resolveLocked(url)
	p.url = final
	p.doc = parse(html)
	p.pending = ""
	p.visited = append(p.visited, final)
}

// Goto commits a navigation immediately; handlers use it for submits that
// load a new page
func (p *Page) Goto(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commitLocked(url)
}

// NavigateLater queues a navigation that commits on the next WaitNavigation
func (p *Page) NavigateLater(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = url
}

// SetHTML replaces the document without changing the URL
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = parse(html)
}

// SetAttr sets an attribute on every node matching selector
func (p *Page) SetAttr(selector, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).SetAttr(name, value)
}

// Append adds html as the last child of every node matching selector
func (p *Page) Append(selector, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).AppendHtml(html)
}

// Remove deletes every node matching selector
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find(selector).Remove()
}

// Value returns the value typed into the first node matching selector
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := p.doc.Find(selector).First().Attr("value")
	return v
}

// Files returns the paths set on a file input
func (p *Page) Files(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.doc.Find(selector).First().Attr("data-files")
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, "\n")
}

// Clicks counts clicks on elements matching selector
func (p *Page) Clicks(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.clicked {
		if s.Is(selector) {
			n++
		}
	}
	return n
}

// Visited lists every committed URL in order
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// InitScripts lists installed pre-navigation scripts
func (p *Page) InitScripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.initScripts...)
}

// Emulation returns the applied emulation settings, if any
func (p *Page) Emulation() (browser.Emulation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.emulation == nil {
		return browser.Emulation{}, false
	}
	return *p.emulation, true
}

// Screenshots counts captured screenshots
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

// Scrolled is the total vertical scroll distance
func (p *Page) Scrolled() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolled
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errs.New(errs.KindNavigation, "page is closed")
	}
	p.commitLocked(url)
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// WaitNavigation commits a queued navigation, or fails as a timeout would
func (p *Page) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == "" {
		return errs.New(errs.KindNavigation, "no navigation within %s", timeout)
	}
	p.commitLocked(p.pending)
	return nil
}

func (p *Page) Query(ctx context.Context, selector string) (browser.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return &Element{page: p, sel: sel}, true, nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []browser.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	return append([]byte(nil), PNG...), nil
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range cookies {
		replaced := false
		for i := range p.cookies {
			if p.cookies[i].Key() == c.Key() {
				p.cookies[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			p.cookies = append(p.cookies, c)
		}
	}
	return nil
}

func (p *Page) ClearCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = nil
	return nil
}

func (p *Page) Scroll(ctx context.Context, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.scrolled += dy
	fn := p.onScroll
	p.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return nil
}

func (p *Page) PressEnter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	fn := p.onEnter
	p.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return nil
}

func (p *Page) AddInitScript(ctx context.Context, js string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initScripts = append(p.initScripts, js)
	return nil
}

func (p *Page) Emulate(ctx context.Context, em browser.Emulation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emulation = &em
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Element is a goquery selection bound to its page
type Element struct {
	page *Page
	sel  *goquery.Selection
}

var _ browser.Element = (*Element)(nil)

// Click records the click and fires every matching handler in registration order
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	e.page.clicked = append(e.page.clicked, e.sel)
	var fire []Handler
	for _, h := range e.page.onClick {
		if e.sel.Is(h.selector) {
			fire = append(fire, h.fn)
		}
	}
	e.page.mu.Unlock()

	for _, fn := range fire {
		fn(e.page)
	}
	return nil
}

func (e *Element) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	v, _ := e.sel.Attr("value")
	e.sel.SetAttr("value", v+text)
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel.SetAttr("value", "")
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel.SetAttr("data-files", strings.Join(paths, "\n"))
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}
