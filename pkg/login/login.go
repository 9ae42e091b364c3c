// Package login drives the site's sign-in form as an explicit state machine.
//
// The form shape is detected structurally: a page with both identifier and
// secret fields is a traditional form, a page with only the identifier is a
// two-step form. Challenges that need a human (one-time codes, magic links)
// end the machine in UnsupportedChallenge instead of being guessed at.
package login

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/locator"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/session"
	"pinrunner/pkg/timing"
)

// Selectors are the structural markers of the login surface
type Selectors struct {
	Identifier  locator.Set
	Secret      locator.Set
	Submit      locator.Set
	OneTimeCode locator.Set
	MagicLink   locator.Set
	ErrorNodes  locator.Set
}

// DefaultSelectors match the site's current login markup
func DefaultSelectors() Selectors {
	return Selectors{
		Identifier: locator.New("identifier field",
			"input#email",
			"input[name='id']",
			"input[type='email']",
			"input[autocomplete='username']",
		),
		Secret: locator.New("password field",
			"input#password",
			"input[name='password']",
			"input[type='password']",
		),
		Submit: locator.New("submit button",
			"button[type='submit']",
			"[data-test-id='registerFormSubmitButton']",
			"div[data-test-id='login-button'] button",
		),
		OneTimeCode: locator.New("one-time code field",
			"input[autocomplete='one-time-code']",
			"input[name='code']",
			"input[name='verificationCode']",
		),
		MagicLink: locator.New("magic link notice",
			"[data-test-id='magic-link-sent']",
			"[data-test-id='email-login-link-sent']",
		),
		ErrorNodes: locator.New("login error",
			"[data-test-id='login-error']",
			"#email-error",
			"#password-error",
			"form [role='alert']",
		),
	}
}

// Authenticator runs the login state machine
type Authenticator struct {
	loginURL  string
	loginRe   *regexp.Regexp
	homeRe    *regexp.Regexp
	timeouts  config.TimeoutConfig
	timing    *timing.Model
	selectors Selectors
	metrics   *metrics.Recorder
	snapshots *diagnostics.Writer
	log       logger.Logger
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithSelectors overrides the login markers
func WithSelectors(s Selectors) Option {
	return func(a *Authenticator) { a.selectors = s }
}

// WithMetrics counts terminal states
func WithMetrics(m *metrics.Recorder) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// WithSnapshots captures the page whenever a login ends unauthenticated
func WithSnapshots(w *diagnostics.Writer) Option {
	return func(a *Authenticator) { a.snapshots = w }
}

// New creates an Authenticator for cfg's site
func New(cfg *config.Config, model *timing.Model, log logger.Logger, opts ...Option) (*Authenticator, error) {
	loginRe, err := regexp.Compile(cfg.Pinterest.LoginPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid login pattern: %w", err)
	}
	homeRe, err := regexp.Compile(cfg.Pinterest.HomePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid home pattern: %w", err)
	}
	a := &Authenticator{
		loginURL:  cfg.LoginURL(),
		loginRe:   loginRe,
		homeRe:    homeRe,
		timeouts:  cfg.Timeouts,
		timing:    model,
		selectors: DefaultSelectors(),
		log:       logger.Component(log, "login"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// machine is the state of one Login call
type machine struct {
	*Authenticator
	ctx    context.Context
	sess   *session.Session
	page   browser.Page
	creds  Credentials
	result Result
	log    logger.Logger
}

func (m *machine) enter(s State) {
	m.result.State = s
	m.result.Trace = append(m.result.Trace, s)
	m.log.DebugWithFields("login state", map[string]interface{}{"state": string(s)})
}

// fail ends the machine in Failed and returns err
func (m *machine) fail(err *errs.Error) error {
	m.result.Message = err.Message
	m.enter(StateFailed)
	return err.WithOp("login")
}

// Login authenticates sess. Each transition is attempted once. On Success and
// AlreadyAuthenticated the session is marked authenticated and the error is
// nil; every other terminal state comes with a typed error.
func (a *Authenticator) Login(ctx context.Context, sess *session.Session, creds Credentials) (Result, error) {
	m := &machine{
		Authenticator: a,
		ctx:           ctx,
		sess:          sess,
		page:          sess.Page,
		creds:         creds,
		log:           a.log.WithField("session", sess.ID.String()),
	}
	m.enter(StateUnknown)

	err := m.run()

	if m.result.Authenticated() {
		sess.SetAuthenticated(true)
	} else {
		m.snapshot()
	}
	a.metrics.Login(string(m.result.State))

	fields := map[string]interface{}{
		"state": string(m.result.State),
		"trace": m.result.String(),
	}
	if m.result.Flow != FlowNone {
		fields["flow"] = string(m.result.Flow)
	}
	if m.result.Challenge != ChallengeNone {
		fields["challenge"] = string(m.result.Challenge)
	}
	if m.result.Snapshot != nil {
		fields["snapshot"] = m.result.Snapshot.ID
	}
	if err != nil {
		m.log.WithError(err).WarnWithFields("login did not complete", fields)
	} else {
		m.log.InfoWithFields("login finished", fields)
	}
	return m.result, err
}

// snapshot records the page a failed login stopped on
func (m *machine) snapshot() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 15*time.Second)
	defer cancel()
	snap, err := m.snapshots.Capture(ctx, m.page, "login")
	if err != nil {
		m.log.WithError(err).Warn("diagnostic snapshot incomplete")
	}
	m.result.Snapshot = snap
}

func (m *machine) run() error {
	m.enter(StateProbing)
	if err := m.page.Navigate(m.ctx, m.loginURL); err != nil {
		return m.fail(errs.Wrap(errs.KindNavigation, err, "failed to open login page"))
	}
	if m.homeRe.MatchString(m.page.URL()) {
		m.enter(StateAlreadyAuthenticated)
		return nil
	}

	if _, _, err := m.selectors.Identifier.Resolve(m.ctx, m.page, m.timeouts.Login); err != nil {
		if e, ok := errs.As(err); ok {
			return m.fail(e)
		}
		return m.fail(errs.Wrap(errs.KindElementNotFound, err, "login form did not appear"))
	}
	m.enter(StateFormDetected)

	if m.creds.Empty() {
		return m.fail(errs.New(errs.KindValidation, "login form requires an identifier and a password"))
	}

	m.enter(StateFormResolving)
	if _, _, ok := m.selectors.Secret.Present(m.ctx, m.page); ok {
		return m.traditional()
	}
	return m.twoStep()
}

// traditional fills both fields of a single form and submits once
func (m *machine) traditional() error {
	m.enter(StateTraditionalFlow)
	m.result.Flow = FlowTraditional
	if err := m.fill(m.selectors.Identifier, m.creds.Identifier); err != nil {
		return m.fail(classify(err))
	}
	if err := m.fill(m.selectors.Secret, m.creds.Secret); err != nil {
		return m.fail(classify(err))
	}
	if err := m.submit(); err != nil {
		return m.fail(classify(err))
	}
	return m.verify()
}

type nextStep int

const (
	nextSecret nextStep = iota
	nextLeft
	nextOneTimeCode
	nextMagicLink
	nextError
)

// twoStep submits the identifier, then lets the first signal to appear
// decide the branch
func (m *machine) twoStep() error {
	m.enter(StateTwoStepFlow)
	m.result.Flow = FlowTwoStep
	if err := m.fill(m.selectors.Identifier, m.creds.Identifier); err != nil {
		return m.fail(classify(err))
	}
	if err := m.submit(); err != nil {
		return m.fail(classify(err))
	}

	marker := func(set locator.Set, step nextStep) locator.Candidate[nextStep] {
		return locator.Candidate[nextStep]{
			Name: set.Name,
			Try: func(ctx context.Context) (nextStep, bool, error) {
				_, _, ok := set.Present(ctx, m.page)
				return step, ok, nil
			},
		}
	}
	next, _, err := locator.Poll(m.ctx, m.timeouts.Login, []locator.Candidate[nextStep]{
		marker(m.selectors.Secret, nextSecret),
		{
			Name: "left login surface",
			Try: func(context.Context) (nextStep, bool, error) {
				return nextLeft, !m.onLoginSurface(), nil
			},
		},
		marker(m.selectors.OneTimeCode, nextOneTimeCode),
		marker(m.selectors.MagicLink, nextMagicLink),
		marker(m.selectors.ErrorNodes, nextError),
	})
	if err != nil {
		if m.ctx.Err() != nil {
			return m.fail(errs.Wrap(errs.KindNavigation, m.ctx.Err(), "login interrupted"))
		}
		return m.fail(errs.New(errs.KindElementNotFound, "no next step appeared after the identifier was submitted"))
	}

	switch next {
	case nextSecret:
		m.enter(StateTraditionalFlow)
		if err := m.fill(m.selectors.Secret, m.creds.Secret); err != nil {
			return m.fail(classify(err))
		}
		if err := m.submit(); err != nil {
			return m.fail(classify(err))
		}
		return m.verify()
	case nextLeft:
		return m.landed()
	case nextOneTimeCode:
		return m.challenge(ChallengeOneTimeCode)
	case nextMagicLink:
		return m.challenge(ChallengeMagicLink)
	default:
		return m.fail(errs.New(errs.KindAuthFailed, "%s", m.errorText()))
	}
}

// verify decides the outcome after the secret was submitted
func (m *machine) verify() error {
	if !m.onLoginSurface() {
		m.enter(StateSuccess)
		return nil
	}
	if text := m.errorText(); text != "" {
		return m.fail(errs.New(errs.KindAuthFailed, "%s", text))
	}

	if err := m.page.WaitNavigation(m.ctx, m.timeouts.Login); err != nil {
		m.log.WithError(err).Debug("no navigation after submit")
	}
	if !m.onLoginSurface() {
		m.enter(StateSuccess)
		return nil
	}

	if _, _, ok := m.selectors.OneTimeCode.Present(m.ctx, m.page); ok {
		return m.challenge(ChallengeOneTimeCode)
	}
	if _, _, ok := m.selectors.MagicLink.Present(m.ctx, m.page); ok {
		return m.challenge(ChallengeMagicLink)
	}
	if text := m.errorText(); text != "" {
		return m.fail(errs.New(errs.KindAuthFailed, "%s", text))
	}
	return m.fail(errs.New(errs.KindAuthFailed, "still on the login page after submitting"))
}

// landed accepts a page that left the login surface only when it is the
// authenticated home; one more navigation is allowed for redirect chains
func (m *machine) landed() error {
	if m.homeRe.MatchString(m.page.URL()) {
		m.enter(StateSuccess)
		return nil
	}
	if err := m.page.WaitNavigation(m.ctx, m.timeouts.Login); err != nil {
		m.log.WithError(err).Debug("no navigation after leaving login")
	}
	if m.homeRe.MatchString(m.page.URL()) {
		m.enter(StateSuccess)
		return nil
	}
	return m.fail(errs.New(errs.KindAuthFailed, "login left for %s instead of the home feed", m.page.URL()))
}

func (m *machine) challenge(c Challenge) error {
	m.result.Challenge = c
	m.result.Message = fmt.Sprintf("login requires a %s", strings.ReplaceAll(string(c), "_", " "))
	m.enter(StateUnsupportedChallenge)
	return errs.New(errs.KindUnsupportedChallenge, "%s", m.result.Message).WithOp("login")
}

func (m *machine) onLoginSurface() bool {
	return m.loginRe.MatchString(m.page.URL())
}

// errorText joins the text of every visible error node
func (m *machine) errorText() string {
	var texts []string
	seen := make(map[string]bool)
	for _, sel := range m.selectors.ErrorNodes.Candidates {
		els, err := m.page.QueryAll(m.ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			t, err := el.Text(m.ctx)
			t = strings.TrimSpace(t)
			if err != nil || t == "" || seen[t] {
				continue
			}
			seen[t] = true
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "; ")
}

func (m *machine) fill(set locator.Set, text string) error {
	el, _, err := set.Resolve(m.ctx, m.page, m.timeouts.Element)
	if err != nil {
		return err
	}
	if err := m.timing.ActionPause(m.ctx); err != nil {
		return err
	}
	if err := el.Click(m.ctx); err != nil {
		return fmt.Errorf("failed to focus %s: %w", set.Name, err)
	}
	if err := el.Clear(m.ctx); err != nil {
		return fmt.Errorf("failed to clear %s: %w", set.Name, err)
	}
	return m.timing.TypeWithCadence(m.ctx, el, text)
}

// submit clicks the submit button, or presses Enter when there is none
func (m *machine) submit() error {
	if err := m.timing.ActionPause(m.ctx); err != nil {
		return err
	}
	el, _, err := m.selectors.Submit.Resolve(m.ctx, m.page, m.timeouts.Optional)
	if err != nil {
		m.log.Debug("no submit button, pressing enter")
		return m.page.PressEnter(m.ctx)
	}
	return el.Click(m.ctx)
}

func classify(err error) *errs.Error {
	if e, ok := errs.As(err); ok {
		return e
	}
	return errs.Wrap(errs.KindUnknown, err, "")
}
