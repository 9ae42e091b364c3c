package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pinrunner/pkg/browser"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/locator"
)

// Operation describes one site action as data. Execute runs it through the
// validate, navigate, steps, confirm and cleanup pipeline.
type Operation struct {
	Name string
	URL  string
	// Mutating operations wait on the rate limiter
	Mutating    bool
	RequireAuth bool
	// Timeout bounds the whole operation; zero means no overall bound
	Timeout time.Duration
	// Wait bounds each element lookup and the confirmation; zero uses the configured element timeout
	Wait     time.Duration
	Validate func() error
	Steps    []Step
	Confirm  *Confirm
	// Cleanup runs after every attempt, including failed and panicking ones
	Cleanup func(ctx context.Context) error
}

// Step is one locate-and-act unit
type Step struct {
	Name     string
	Optional bool
	Do       func(r *Run) error
}

// Leg is one branch of a Choose step
type Leg struct {
	Name  string
	Steps []Step
}

// Click locates set and clicks it
func Click(set locator.Set) Step {
	return Step{
		Name: "click " + set.Name,
		Do: func(r *Run) error {
			el, err := r.Resolve(set)
			if err != nil {
				return err
			}
			return r.Click(el)
		},
	}
}

// Fill locates set, clears it and types text with human cadence
func Fill(set locator.Set, text string) Step {
	return Step{
		Name: "fill " + set.Name,
		Do: func(r *Run) error {
			el, err := r.Resolve(set)
			if err != nil {
				return err
			}
			return r.Fill(el, text)
		},
	}
}

// Upload sets the file returned by path on the input located by set. The
// path is read when the step runs so earlier steps can stage the file.
func Upload(set locator.Set, path func() string) Step {
	return Step{
		Name: "upload " + set.Name,
		Do: func(r *Run) error {
			el, err := r.Resolve(set)
			if err != nil {
				return err
			}
			if err := r.Pause(); err != nil {
				return err
			}
			return el.SetFiles(r.Context(), []string{path()})
		},
	}
}

// Do wraps a custom action
func Do(name string, fn func(r *Run) error) Step {
	return Step{Name: name, Do: fn}
}

// Optional marks a step whose failure is recorded in the path instead of
// failing the operation
func Optional(s Step) Step {
	s.Optional = true
	return s
}

// Choose tries legs in order and keeps the first that completes. Every leg
// but the last gets the short optional bound, so a missing requested target
// falls back to the default quickly. The leg taken is recorded as name:leg.
func Choose(name string, legs ...Leg) Step {
	return Step{
		Name: name,
		Do: func(r *Run) error {
			candidates := make([]locator.Candidate[string], 0, len(legs))
			for i, leg := range legs {
				last := i == len(legs)-1
				candidates = append(candidates, locator.Candidate[string]{
					Name: leg.Name,
					Try: func(ctx context.Context) (string, bool, error) {
						if err := r.runSteps(leg.Steps, !last); err != nil {
							r.log.WithError(err).DebugWithFields("leg did not complete", map[string]interface{}{
								"step": name,
								"leg":  leg.Name,
							})
							return "", false, err
						}
						return leg.Name, true, nil
					},
				})
			}

			taken, idx, err := locator.FirstMatch(r.Context(), candidates)
			if err != nil {
				if e, ok := errs.As(err); ok {
					return e
				}
				return errs.Wrap(errs.KindElementNotFound, err, fmt.Sprintf("no leg of %s completed", name))
			}
			r.record(name + ":" + taken)
			if idx > 0 {
				r.exec.metrics.Fallback(r.op.Name, name+":"+taken)
				r.log.InfoWithFields("fell back to alternate leg", map[string]interface{}{
					"step": name,
					"leg":  taken,
				})
			}
			return nil
		},
	}
}

// Confirm is the observable signal that an operation took effect
type Confirm struct {
	Name  string
	Probe func(r *Run) (bool, error)
}

// URLMatches confirms once the page URL matches re
func URLMatches(re *regexp.Regexp) *Confirm {
	return &Confirm{
		Name: "url matches " + re.String(),
		Probe: func(r *Run) (bool, error) {
			return re.MatchString(r.Page.URL()), nil
		},
	}
}

// URLLeaves confirms once the page is no longer at url
func URLLeaves(url string) *Confirm {
	want := strings.TrimRight(url, "/")
	return &Confirm{
		Name: "url leaves " + url,
		Probe: func(r *Run) (bool, error) {
			return strings.TrimRight(r.Page.URL(), "/") != want, nil
		},
	}
}

// MarkerAppears confirms once any candidate of set is present
func MarkerAppears(set locator.Set) *Confirm {
	return &Confirm{
		Name: set.Name + " appears",
		Probe: func(r *Run) (bool, error) {
			_, _, ok := set.Present(r.Context(), r.Page)
			return ok, nil
		},
	}
}

// AttributeEquals confirms once the element located by set has attr=value
func AttributeEquals(set locator.Set, attr, value string) *Confirm {
	return &Confirm{
		Name: fmt.Sprintf("%s[%s=%s]", set.Name, attr, value),
		Probe: func(r *Run) (bool, error) {
			el, _, ok := set.Present(r.Context(), r.Page)
			if !ok {
				return false, nil
			}
			got, has, err := el.Attribute(r.Context(), attr)
			if err != nil {
				return false, err
			}
			return has && got == value, nil
		},
	}
}

// TextAppears confirms once an element of set contains text
func TextAppears(set locator.Set, text string) *Confirm {
	want := strings.TrimSpace(text)
	return &Confirm{
		Name: set.Name + " contains text",
		Probe: func(r *Run) (bool, error) {
			for _, c := range set.Candidates {
				els, err := r.Page.QueryAll(r.Context(), c)
				if err != nil {
					continue
				}
				for _, el := range els {
					if got, err := el.Text(r.Context()); err == nil && strings.Contains(got, want) {
						return true, nil
					}
				}
			}
			return false, nil
		},
	}
}

// Custom confirms with an arbitrary probe
func Custom(name string, probe func(r *Run) (bool, error)) *Confirm {
	return &Confirm{Name: name, Probe: probe}
}

// elementText reads text, returning "" on error
func elementText(ctx context.Context, el browser.Element) string {
	t, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}
