package login

import (
	"strings"

	"pinrunner/pkg/diagnostics"
)

// State is a node of the login state machine
type State string

const (
	StateUnknown              State = "unknown"
	StateProbing              State = "probing"
	StateAlreadyAuthenticated State = "already_authenticated"
	StateFormDetected         State = "form_detected"
	StateFormResolving        State = "form_resolving"
	StateTraditionalFlow      State = "traditional_flow"
	StateTwoStepFlow          State = "two_step_flow"
	StateSuccess              State = "success"
	StateFailed               State = "failed"
	StateUnsupportedChallenge State = "unsupported_challenge"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	switch s {
	case StateAlreadyAuthenticated, StateSuccess, StateFailed, StateUnsupportedChallenge:
		return true
	}
	return false
}

// Flow is the form shape that was driven
type Flow string

const (
	FlowNone        Flow = ""
	FlowTraditional Flow = "traditional"
	FlowTwoStep     Flow = "two_step"
)

// Challenge names a verification step that cannot be automated
type Challenge string

const (
	ChallengeNone        Challenge = ""
	ChallengeOneTimeCode Challenge = "one_time_code"
	ChallengeMagicLink   Challenge = "magic_link"
)

// Result is the outcome of one login attempt
type Result struct {
	State     State
	Trace     []State
	Flow      Flow
	Message   string
	Challenge Challenge
	Snapshot  *diagnostics.Snapshot
}

// Authenticated is true for Success and AlreadyAuthenticated
func (r Result) Authenticated() bool {
	return r.State == StateSuccess || r.State == StateAlreadyAuthenticated
}

// Visited reports whether s appears in the trace
func (r Result) Visited(s State) bool {
	for _, t := range r.Trace {
		if t == s {
			return true
		}
	}
	return false
}

// String renders the trace as a → separated path
func (r Result) String() string {
	parts := make([]string, len(r.Trace))
	for i, s := range r.Trace {
		parts[i] = string(s)
	}
	return strings.Join(parts, " → ")
}

// Credentials are the identifier and secret typed into the form
type Credentials struct {
	Identifier string
	Secret     string
}

// Empty is true when either half is missing
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Identifier) == "" || c.Secret == ""
}
