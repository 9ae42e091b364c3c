// Package ui prints command results to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"pinrunner/pkg/executor"
)

// Logo is printed by the root command's help
const Logo = `
  ┌─┐┬┌┐┌┬─┐┬ ┬┌┐┌┌┐┌┌─┐┬─┐
  ├─┘││││├┬┘│ │││││││├┤ ├┬┘
  ┴  ┴┘└┘┴└─└─┘┘└┘┘└┘└─┘┴└─
`

// Printer writes colored status lines. Colors are dropped when the output
// is not a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter wraps w, enabling color when w is a terminal
func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{out: w, color: color}
}

// Stdout is a Printer over os.Stdout
func Stdout() *Printer {
	return NewPrinter(os.Stdout)
}

func (p *Printer) paint(code, text string) string {
	if !p.color {
		return text
	}
	return "\033[" + code + "m" + text + "\033[0m"
}

func (p *Printer) Cyan(s string) string    { return p.paint("36", s) }
func (p *Printer) Yellow(s string) string  { return p.paint("33", s) }
func (p *Printer) Red(s string) string     { return p.paint("31", s) }
func (p *Printer) Green(s string) string   { return p.paint("32", s) }
func (p *Printer) Magenta(s string) string { return p.paint("35", s) }
func (p *Printer) Dim(s string) string     { return p.paint("2", s) }

// Logo prints the banner
func (p *Printer) Logo() {
	fmt.Fprint(p.out, p.Cyan(Logo))
}

// Error prints an error line, appending err when given
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.Red(msg))
}

// Success prints a success line
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.Green(msg))
}

// Warning prints a warning line
func (p *Printer) Warning(msg string) {
	fmt.Fprintln(p.out, p.Yellow(msg))
}

// Info prints a label and value
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.Cyan(label), p.Yellow(value))
}

// Outcome prints one operation outcome
func (p *Printer) Outcome(o executor.Outcome) {
	var status string
	switch o.Status {
	case executor.StatusSuccess:
		status = p.Green("[" + strings.ToUpper(string(o.Status)) + "]")
	case executor.StatusUnconfirmed:
		status = p.Yellow("[" + strings.ToUpper(string(o.Status)) + "]")
	default:
		status = p.Red("[" + strings.ToUpper(string(o.Status)) + "]")
	}

	fmt.Fprintf(p.out, "%s %s %s\n", status, o.Operation, p.Dim(o.Duration.Round(time.Millisecond).String()))
	if o.ID != "" {
		p.Info("  id", o.ID)
	}
	if len(o.Path) > 0 {
		p.Info("  path", strings.Join(o.Path, " > "))
	}
	if o.Err != nil {
		fmt.Fprintln(p.out, "  "+p.Red(o.Err.Error()))
	}
	if o.Snapshot != nil {
		p.Info("  snapshot", o.Snapshot.Screenshot)
	}
}
