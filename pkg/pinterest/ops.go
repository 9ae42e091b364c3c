package pinterest

import (
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/extract"
	"pinrunner/pkg/locator"
)

// budget bounds a whole operation: the navigation, one wait plus the worst
// action pause per step, the confirmation, and the typing of every text
func (c *Client) budget(wait time.Duration, steps int, typed ...string) time.Duration {
	t := c.cfg.Timing
	d := c.cfg.Timeouts.Navigation + time.Duration(steps+1)*(wait+t.ActionMax)
	perKey := t.KeyMax + time.Duration(t.PauseChance*float64(t.PauseMax))
	for _, s := range typed {
		d += time.Duration(utf8.RuneCountInString(s)) * perKey
	}
	return d
}

// listingBudget adds the scroll passes to a read-only operation's bound
func (c *Client) listingBudget(steps int) time.Duration {
	t := c.cfg.Timing
	return c.budget(c.cfg.Timeouts.Element, steps) + time.Duration(t.ScrollPasses)*(t.ScrollPassMax+c.cfg.Timeouts.Element)
}

// toggle is an idempotent follow-style action: when the state marker is
// already present nothing is clicked, otherwise action is clicked and the
// marker is the confirmation
func (c *Client) toggle(name, url string, action, state locator.Set, validate func() error) *executor.Operation {
	wait := c.cfg.Timeouts.Toggle
	return &executor.Operation{
		Name:        name,
		URL:         url,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, 1),
		Validate:    validate,
		Steps: []executor.Step{
			executor.Do("click "+action.Name, func(r *executor.Run) error {
				if _, _, ok := state.Present(r.Context(), r.Page); ok {
					r.Log().InfoWithFields("already in requested state", map[string]interface{}{"marker": state.Name})
					return nil
				}
				el, err := r.Resolve(action)
				if err != nil {
					return err
				}
				return r.Click(el)
			}),
		},
		Confirm: executor.MarkerAppears(state),
	}
}

// document parses the live page for the extraction layer
func document(r *executor.Run) (*goquery.Document, error) {
	html, err := r.Page.HTML(r.Context())
	if err != nil {
		return nil, errs.Wrap(errs.KindParsing, err, "failed to read page HTML")
	}
	doc, err := extract.Parse(html, r.Page.URL())
	if err != nil {
		return nil, errs.Wrap(errs.KindParsing, err, "failed to parse page HTML")
	}
	return doc, nil
}

// collect reads records after each lazy-load pass and merges them by key.
// Listings virtualize their grids, so records seen early may be gone from
// the DOM by the last pass. A max of zero or less means no cap.
func collect[T any](r *executor.Run, max int, read func(*goquery.Document) []T, key func(T) string) ([]T, error) {
	seen := make(map[string]bool)
	var out []T
	passes := r.Passes()
	for pass := 0; ; pass++ {
		doc, err := document(r)
		if err != nil {
			return out, err
		}
		for _, rec := range read(doc) {
			// keyless records cannot be matched across passes, so only
			// the first pass contributes them
			k := key(rec)
			if k == "" && pass > 0 || k != "" && seen[k] {
				continue
			}
			if k != "" {
				seen[k] = true
			}
			out = append(out, rec)
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}
		if pass >= passes {
			break
		}
		if err := r.ScrollLoad(1); err != nil {
			return out, err
		}
	}
	r.Log().DebugWithFields("listing collected", map[string]interface{}{"records": len(out), "passes": passes})
	return out, nil
}
