package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
)

func TestPrinterWithoutTerminalHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Success("done")
	p.Error("failed to save", assert.AnError)
	p.Info("user", "ana")

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "done\n")
	assert.Contains(t, out, "failed to save: "+assert.AnError.Error())
	assert.Contains(t, out, "user: ana")
}

func TestPrinterOutcome(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Outcome(executor.Outcome{
		Operation: "delete_pin",
		Status:    executor.StatusUnconfirmed,
		Path:      []string{"delete:menu", "skip:click delete confirmation"},
		Err:       errs.New(errs.KindUnconfirmedOutcome, "no success signal"),
		Snapshot:  &diagnostics.Snapshot{Screenshot: "/tmp/d.png"},
		Duration:  1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "[UNCONFIRMED] delete_pin 1.5s")
	assert.Contains(t, out, "delete:menu > skip:click delete confirmation")
	assert.Contains(t, out, "no success signal")
	assert.Contains(t, out, "snapshot: /tmp/d.png")
}

func TestProgress(t *testing.T) {
	pr := NewProgress(4)
	now := pr.start
	pr.now = func() time.Time { return now }

	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 0/4", pr.Bar())
	assert.Zero(t, pr.Rate())

	pr.Saved = 1
	pr.Skipped = 1
	assert.Equal(t, "[██████████░░░░░░░░░░] 2/4", pr.Bar())

	now = now.Add(30 * time.Second)
	assert.Equal(t, 2.0, pr.Rate())

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	pr.Failed = 2
	p.Progress(pr)
	assert.Contains(t, buf.String(), "saved:1 skipped:1 failed:2\n")
}
