package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	progressFull  = "█"
	progressEmpty = "░"
	progressWidth = 20
)

// Progress tracks a download run of known size
type Progress struct {
	Total   int
	Saved   int
	Skipped int
	Failed  int
	start   time.Time
	now     func() time.Time
}

// NewProgress starts tracking total items
func NewProgress(total int) *Progress {
	return &Progress{Total: total, start: time.Now(), now: time.Now}
}

// Done is the number of finished items
func (p *Progress) Done() int {
	return p.Saved + p.Skipped + p.Failed
}

// Bar renders the completion bar
func (p *Progress) Bar() string {
	filled := 0
	if p.Total > 0 {
		filled = p.Done() * progressWidth / p.Total
	}
	if filled > progressWidth {
		filled = progressWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(progressFull, filled),
		strings.Repeat(progressEmpty, progressWidth-filled),
		p.Done(), p.Total)
}

// Rate is saved images per minute
func (p *Progress) Rate() float64 {
	elapsed := p.now().Sub(p.start).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.Saved) / elapsed
}

// Progress redraws the progress line in place
func (p *Printer) Progress(pr *Progress) {
	fmt.Fprintf(p.out, "\r%s %s saved:%d skipped:%d failed:%d",
		p.Green("[DOWNLOADING]"), p.Bar(pr), pr.Saved, pr.Skipped, pr.Failed)
	if pr.Done() >= pr.Total {
		fmt.Fprintln(p.out)
	}
}

// Bar colors the progress bar
func (p *Printer) Bar(pr *Progress) string {
	return p.Yellow(pr.Bar())
}
