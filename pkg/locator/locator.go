// Package locator resolves a logical UI target from an ordered list of
// candidate CSS selectors, and provides the shared first-match-wins helper
// used for every prioritized fallback.
package locator

import (
	"context"
	"errors"
	"time"

	"pinrunner/pkg/browser"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/timing"
)

// PollInterval is how often Resolve re-checks the candidates
var PollInterval = 100 * time.Millisecond

// Set is an ordered list of candidates for one logical target, most stable first
type Set struct {
	Name       string
	Candidates []string
}

// New builds a selector set
func New(name string, candidates ...string) Set {
	return Set{Name: name, Candidates: candidates}
}

// Present does a single non-waiting check and returns the first candidate found
func (s Set) Present(ctx context.Context, page browser.Page) (browser.Element, string, bool) {
	for _, c := range s.Candidates {
		el, ok, err := page.Query(ctx, c)
		if err != nil || !ok {
			continue
		}
		return el, c, true
	}
	return nil, "", false
}

// Resolve waits up to timeout for any candidate to appear. Candidates are
// checked in rank order on every poll, so a higher-ranked candidate that
// appears later still wins over a lower-ranked one checked in the same pass.
func (s Set) Resolve(ctx context.Context, page browser.Page, timeout time.Duration) (browser.Element, string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if el, sel, ok := s.Present(ctx, page); ok {
			return el, sel, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if !time.Now().Before(deadline) {
			return nil, "", s.NotFound()
		}
		wait := PollInterval
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		if err := timing.Hesitate(ctx, wait); err != nil {
			return nil, "", err
		}
	}
}

// NotFound is the ElementNotFound error naming this set
func (s Set) NotFound() *errs.Error {
	e := errs.New(errs.KindElementNotFound, "%s did not appear", s.Name)
	e.Selectors = append([]string(nil), s.Candidates...)
	return e
}

// Join concatenates sets into one with the first set's name
func Join(name string, sets ...Set) Set {
	out := Set{Name: name}
	for _, s := range sets {
		out.Candidates = append(out.Candidates, s.Candidates...)
	}
	return out
}

// ErrNoMatch is returned by FirstMatch when every candidate missed
var ErrNoMatch = errors.New("no candidate matched")

// Candidate is one option in a prioritized fallback. Try reports ok=false to
// pass to the next candidate; a non-nil error also passes but is remembered.
type Candidate[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, bool, error)
}

// FirstMatch evaluates candidates in order and returns the first hit with its
// index. When all miss it returns ErrNoMatch joined with any candidate errors.
func FirstMatch[T any](ctx context.Context, candidates []Candidate[T]) (T, int, error) {
	var zero T
	var failures []error
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, -1, err
		}
		v, ok, err := c.Try(ctx)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if ok {
			return v, i, nil
		}
	}
	return zero, -1, errors.Join(append([]error{ErrNoMatch}, failures...)...)
}

// Poll re-runs FirstMatch until a candidate hits or timeout elapses
func Poll[T any](ctx context.Context, timeout time.Duration, candidates []Candidate[T]) (T, int, error) {
	deadline := time.Now().Add(timeout)
	for {
		v, i, err := FirstMatch(ctx, candidates)
		if err == nil {
			return v, i, nil
		}
		if ctx.Err() != nil {
			return v, -1, ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return v, -1, err
		}
		wait := PollInterval
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		if err := timing.Hesitate(ctx, wait); err != nil {
			return v, -1, err
		}
	}
}

// Selector is a Candidate that hits when the set is present on page
func Selector(page browser.Page, s Set) Candidate[browser.Element] {
	return Candidate[browser.Element]{
		Name: s.Name,
		Try: func(ctx context.Context) (browser.Element, bool, error) {
			el, _, ok := s.Present(ctx, page)
			return el, ok, nil
		},
	}
}
