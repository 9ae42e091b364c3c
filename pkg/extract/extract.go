// Package extract reads pins, boards, users and profiles out of rendered
// HTML with goquery.
//
// Every field is read through an ordered list of strategies and the first
// non-empty result wins. A strategy that panics on malformed markup is
// skipped, so one broken field never costs the rest of the record.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/logger"
	"pinrunner/pkg/models"
)

// Parse builds a document from rendered HTML. pageURL, when set, is used to
// resolve relative links.
func Parse(html, pageURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			doc.Url = u
		}
	}
	return doc, nil
}

// Extractor reads records from documents. The zero value is usable and
// discards its log.
type Extractor struct {
	log logger.Logger
}

// New creates an Extractor that logs recovered field failures to log
func New(log logger.Logger) *Extractor {
	return &Extractor{log: logger.Component(log, "extract")}
}

var std = &Extractor{}

// Pins reads up to max pins from doc with a silent Extractor; max <= 0 means all
func Pins(doc *goquery.Document, max int) []models.Pin { return std.Pins(doc, max) }

// Boards reads up to max boards from doc with a silent Extractor
func Boards(doc *goquery.Document, max int) []models.Board { return std.Boards(doc, max) }

// Users reads up to max user cards from doc with a silent Extractor
func Users(doc *goquery.Document, max int) []models.User { return std.Users(doc, max) }

// Closeup reads a closeup page's pin with a silent Extractor
func Closeup(doc *goquery.Document) models.Pin { return std.Closeup(doc) }

// Profile reads a profile header from doc with a silent Extractor
func Profile(doc *goquery.Document) models.UserProfile { return std.Profile(doc) }

// strategy reads one candidate value for a field
type strategy func(s *goquery.Selection) string

// first returns the first non-empty strategy result. A panicking strategy
// counts as empty.
func (x *Extractor) first(field string, s *goquery.Selection, strategies ...strategy) string {
	for i, fn := range strategies {
		if v := x.try(field, i, s, fn); v != "" {
			return v
		}
	}
	return ""
}

func (x *Extractor) try(field string, idx int, s *goquery.Selection, fn strategy) (v string) {
	defer func() {
		if p := recover(); p != nil {
			v = ""
			if x.log != nil {
				x.log.WarnWithFields("field strategy panicked", map[string]interface{}{
					"field":    field,
					"strategy": idx,
					"panic":    fmt.Sprint(p),
				})
			}
		}
	}()
	return strings.TrimSpace(fn(s))
}

// record runs fill for one record and recovers anything it missed, keeping
// the fields already set
func (x *Extractor) record(kind string, fill func()) {
	defer func() {
		if p := recover(); p != nil && x.log != nil {
			x.log.WarnWithFields("record partially extracted", map[string]interface{}{
				"record": kind,
				"panic":  fmt.Sprint(p),
			})
		}
	}()
	fill()
}

// text reads the text of the first node matching selector
func text(selector string) strategy {
	return func(s *goquery.Selection) string {
		return collapse(s.Find(selector).First().Text())
	}
}

// attr reads attribute name of the first node matching selector; an empty
// selector reads from the record root
func attr(selector, name string) strategy {
	return func(s *goquery.Selection) string {
		target := s
		if selector != "" {
			target = s.Find(selector).First()
		}
		v, _ := target.Attr(name)
		return v
	}
}

// present reports whether any of selectors match s or a descendant
func present(s *goquery.Selection, selectors ...string) bool {
	for _, sel := range selectors {
		if s.Find(sel).Length() > 0 || s.Is(sel) {
			return true
		}
	}
	return false
}

var spaces = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// absolute resolves href against the document URL
func absolute(doc *goquery.Document, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || doc == nil || doc.Url == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return doc.Url.ResolveReference(ref).String()
}

// srcsetLargest picks the last (widest) candidate of a srcset attribute
func srcsetLargest(srcset string) string {
	parts := strings.Split(srcset, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		fields := strings.Fields(parts[i])
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// firstPathSegment returns the first path segment of a link
func firstPathSegment(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	seg, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	return seg
}

func limit(n, max int) bool {
	return max > 0 && n >= max
}
