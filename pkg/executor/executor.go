// Package executor runs every site operation through one pipeline:
// validate, navigate, locate and act, confirm, clean up. Failures come back
// as an Outcome, never as a panic or a bare error.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/locator"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/ratelimit"
	"pinrunner/pkg/session"
	"pinrunner/pkg/timing"
)

// scrollDistance is the nominal travel of one lazy-load pass in pixels
const scrollDistance = 1200

// Executor runs operations against a session. It does no locking: callers
// serialize operations per session.
type Executor struct {
	timing    *timing.Model
	timeouts  config.TimeoutConfig
	loginRe   *regexp.Regexp
	limiter   ratelimit.Limiter
	snapshots *diagnostics.Writer
	metrics   *metrics.Recorder
	log       logger.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithLimiter paces mutating operations
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

// WithSnapshots captures diagnostics on failed and unconfirmed outcomes
func WithSnapshots(w *diagnostics.Writer) Option {
	return func(e *Executor) { e.snapshots = w }
}

// WithMetrics records outcomes
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an executor
func New(cfg *config.Config, model *timing.Model, log logger.Logger, opts ...Option) (*Executor, error) {
	loginRe, err := regexp.Compile(cfg.Pinterest.LoginPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid login pattern: %w", err)
	}
	e := &Executor{
		timing:   model,
		timeouts: cfg.Timeouts,
		loginRe:  loginRe,
		limiter:  ratelimit.Unlimited{},
		log:      logger.Component(log, "executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Timing exposes the model for callers that pace work between operations
func (e *Executor) Timing() *timing.Model {
	return e.timing
}

// OnLoginSurface reports whether url belongs to the login flow
func (e *Executor) OnLoginSurface(url string) bool {
	return e.loginRe.MatchString(url)
}

// Execute runs op against sess
func (e *Executor) Execute(ctx context.Context, sess *session.Session, op *Operation) (out Outcome) {
	start := time.Now()
	out.Operation = op.Name
	log := e.log.WithFields(map[string]interface{}{
		"operation": op.Name,
		"session":   sess.ID.String(),
	})

	defer func() {
		out.Duration = time.Since(start)
		e.metrics.Operation(op.Name, string(out.Status), out.Duration)

		fields := map[string]interface{}{
			"status":      string(out.Status),
			"duration_ms": out.Duration.Milliseconds(),
		}
		if len(out.Path) > 0 {
			fields["path"] = out.Path
		}
		if out.ID != "" {
			fields["id"] = out.ID
		}
		switch out.Status {
		case StatusSuccess:
			log.InfoWithFields("operation finished", fields)
		default:
			if out.Err != nil {
				fields["kind"] = string(out.Err.Kind)
				log = log.WithError(out.Err)
			}
			log.WarnWithFields("operation finished", fields)
		}
	}()

	if op.Validate != nil {
		if err := op.Validate(); err != nil {
			out.Status = StatusRejected
			out.Err = classify(err, errs.KindValidation).WithOp(op.Name)
			return out
		}
	}
	if op.RequireAuth && !sess.Authenticated() {
		out.Status = StatusRejected
		out.Err = errs.New(errs.KindValidation, "session is not authenticated").WithOp(op.Name)
		return out
	}

	runCtx := ctx
	if op.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, op.Timeout)
		defer cancel()
	}

	run := &Run{
		ctx:     runCtx,
		Session: sess,
		Page:    sess.Page,
		exec:    e,
		op:      op,
		log:     log,
		bound:   e.waitFor(op),
	}

	status, err := e.attempt(run)
	out.Status = status
	out.Path = run.path
	out.ID = run.id
	if err != nil {
		out.Err = err.WithOp(op.Name)
	}

	if status == StatusFailed || status == StatusUnconfirmed {
		// snapshot even when the operation's own deadline has passed
		snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		snap, serr := e.snapshots.Capture(snapCtx, sess.Page, op.Name)
		cancel()
		if serr != nil {
			log.WithError(serr).Warn("diagnostic snapshot incomplete")
		}
		out.Snapshot = snap
	}

	e.cleanup(ctx, run, log)
	return out
}

func (e *Executor) waitFor(op *Operation) time.Duration {
	if op.Wait > 0 {
		return op.Wait
	}
	return e.timeouts.Element
}

func (e *Executor) confirmWait(op *Operation) time.Duration {
	if op.Wait > 0 {
		return op.Wait
	}
	return e.timeouts.Confirm
}

// attempt runs rate limiting, navigation, steps and confirmation. Panics in
// steps become failed outcomes.
func (e *Executor) attempt(r *Run) (status Status, failure *errs.Error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.ErrorWithFields("recovered panic in operation", map[string]interface{}{
				"panic": fmt.Sprint(p),
				"stack": string(debug.Stack()),
			})
			status = StatusFailed
			failure = errs.New(errs.KindUnknown, "panic: %v", p)
		}
	}()

	if r.op.Mutating {
		if err := e.limiter.Wait(r.ctx); err != nil {
			return StatusFailed, errs.Wrap(errs.KindRateLimit, err, "rate limit wait aborted")
		}
	}

	if r.op.URL != "" {
		if err := r.Page.Navigate(r.ctx, r.op.URL); err != nil {
			return StatusFailed, classify(err, errs.KindNavigation)
		}
		if e.OnLoginSurface(r.Page.URL()) {
			return StatusFailed, e.authExpired(r)
		}
	}

	if err := r.runSteps(r.op.Steps, false); err != nil {
		if e.OnLoginSurface(r.Page.URL()) {
			return StatusFailed, e.authExpired(r)
		}
		return StatusFailed, classify(err, errs.KindUnknown)
	}

	// a redirect to login satisfies URL-based confirms, so it is ruled out
	// before any signal counts
	if e.OnLoginSurface(r.Page.URL()) {
		return StatusFailed, e.authExpired(r)
	}
	if r.op.Confirm == nil {
		return StatusSuccess, nil
	}
	confirmed, _, err := locator.Poll(r.ctx, e.confirmWait(r.op), []locator.Candidate[bool]{{
		Name: r.op.Confirm.Name,
		Try: func(context.Context) (bool, bool, error) {
			// ends the poll early; the check below reports it
			if e.OnLoginSurface(r.Page.URL()) {
				return false, true, nil
			}
			ok, err := r.op.Confirm.Probe(r)
			return ok, ok, err
		},
	}})
	if e.OnLoginSurface(r.Page.URL()) {
		return StatusFailed, e.authExpired(r)
	}
	if err != nil || !confirmed {
		return StatusUnconfirmed, errs.New(errs.KindUnconfirmedOutcome, "%s not observed", r.op.Confirm.Name)
	}
	return StatusSuccess, nil
}

func (e *Executor) authExpired(r *Run) *errs.Error {
	r.Session.SetAuthenticated(false)
	return errs.New(errs.KindAuthExpired, "redirected to login at %s", r.Page.URL())
}

func (e *Executor) cleanup(ctx context.Context, r *Run, log logger.Logger) {
	cctx := context.WithoutCancel(ctx)
	fns := r.cleanups
	if r.op.Cleanup != nil {
		fns = append(fns, r.op.Cleanup)
	}
	for i := len(fns) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.ErrorWithFields("cleanup panicked", map[string]interface{}{"panic": fmt.Sprint(p)})
				}
			}()
			if err := fns[i](cctx); err != nil {
				log.WithError(err).Warn("cleanup failed")
			}
		}()
	}
}

func classify(err error, fallback errs.Kind) *errs.Error {
	if e, ok := errs.As(err); ok {
		return e
	}
	return errs.Wrap(fallback, err, "")
}

// Run is the state of one Execute call, handed to every step
type Run struct {
	ctx     context.Context
	Session *session.Session
	Page    browser.Page

	exec  *Executor
	op    *Operation
	log   logger.Logger
	bound time.Duration

	path     []string
	id       string
	cleanups []func(ctx context.Context) error
}

// Context is the operation's context
func (r *Run) Context() context.Context {
	return r.ctx
}

// Log is the operation's logger
func (r *Run) Log() logger.Logger {
	return r.log
}

// SetID records what the operation produced
func (r *Run) SetID(id string) {
	r.id = id
}

// Defer registers a cleanup that runs after the operation, in reverse order
func (r *Run) Defer(fn func(ctx context.Context) error) {
	r.cleanups = append(r.cleanups, fn)
}

func (r *Run) record(entry string) {
	r.path = append(r.path, entry)
}

// Resolve locates set within the current step's bound
func (r *Run) Resolve(set locator.Set) (browser.Element, error) {
	el, sel, err := set.Resolve(r.ctx, r.Page, r.bound)
	if err != nil {
		return nil, err
	}
	r.log.DebugWithFields("located element", map[string]interface{}{"target": set.Name, "selector": sel})
	return el, nil
}

// Pause is the jittered wait that precedes every action
func (r *Run) Pause() error {
	return r.exec.timing.ActionPause(r.ctx)
}

// Click scrolls el into view and clicks it after a pause
func (r *Run) Click(el browser.Element) error {
	if err := el.ScrollIntoView(r.ctx); err != nil {
		r.log.WithError(err).Debug("scroll into view failed")
	}
	if err := r.Pause(); err != nil {
		return err
	}
	return el.Click(r.ctx)
}

// Fill focuses el, clears it and types text with human cadence
func (r *Run) Fill(el browser.Element, text string) error {
	if err := r.Click(el); err != nil {
		return err
	}
	if err := el.Clear(r.ctx); err != nil {
		return err
	}
	return r.exec.timing.TypeWithCadence(r.ctx, el, text)
}

// ClickText clicks the first element of set whose text equals text,
// ignoring case and surrounding space. It waits within the step bound.
func (r *Run) ClickText(set locator.Set, text string) error {
	want := strings.ToLower(strings.TrimSpace(text))
	var candidates []locator.Candidate[browser.Element]
	for _, sel := range set.Candidates {
		candidates = append(candidates, locator.Candidate[browser.Element]{
			Name: sel,
			Try: func(ctx context.Context) (browser.Element, bool, error) {
				els, err := r.Page.QueryAll(ctx, sel)
				if err != nil {
					return nil, false, err
				}
				for _, el := range els {
					if strings.ToLower(elementText(ctx, el)) == want {
						return el, true, nil
					}
				}
				return nil, false, nil
			},
		})
	}
	el, _, err := locator.Poll(r.ctx, r.bound, candidates)
	if err != nil {
		nf := errs.New(errs.KindElementNotFound, "%s named %q did not appear", set.Name, text)
		nf.Selectors = set.Candidates
		return nf
	}
	return r.Click(el)
}

// ScrollLoad makes a fixed number of organic scroll passes to trigger lazy
// loading. It never scrolls to the end of a listing.
func (r *Run) ScrollLoad(passes int) error {
	for i := 0; i < passes; i++ {
		if err := r.exec.timing.OrganicScroll(r.ctx, r.Page, scrollDistance); err != nil {
			return err
		}
		if err := r.exec.timing.ScrollPass(r.ctx); err != nil {
			return err
		}
	}
	return nil
}

// Passes is the configured number of lazy-load passes
func (r *Run) Passes() int {
	return r.exec.timing.Passes()
}

// runSteps runs steps in order. short applies the optional bound to every
// step, which Choose uses for non-final legs.
func (r *Run) runSteps(steps []Step, short bool) error {
	saved := r.bound
	defer func() { r.bound = saved }()

	for _, s := range steps {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		r.bound = saved
		if s.Optional || short {
			r.bound = r.exec.timeouts.Optional
		}

		err := s.Do(r)
		if err == nil {
			continue
		}
		if s.Optional && r.ctx.Err() == nil {
			r.record("skip:" + s.Name)
			r.log.WithError(err).InfoWithFields("optional step skipped", map[string]interface{}{"step": s.Name})
			continue
		}
		return err
	}
	return nil
}
