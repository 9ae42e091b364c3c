package executor

import (
	"time"

	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
)

// Status is the tri-state result of an operation, plus Unconfirmed for
// actions that ran without a visible success signal
type Status string

const (
	StatusSuccess     Status = "success"
	StatusUnconfirmed Status = "unconfirmed"
	StatusFailed      Status = "failed"
	// StatusRejected is a precondition failure raised before any navigation
	StatusRejected Status = "rejected"
)

// Outcome is what every operation returns
type Outcome struct {
	Operation string
	Status    Status
	// ID identifies what the operation produced, such as a created pin's URL
	ID string
	// Path lists the fallback legs taken and optional steps skipped
	Path     []string
	Err      *errs.Error
	Snapshot *diagnostics.Snapshot
	Duration time.Duration
}

// OK is true only for a confirmed success
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Error returns the classified error, or nil on success
func (o Outcome) Error() error {
	if o.Err == nil {
		return nil
	}
	return o.Err
}
