// Package diagnostics captures page snapshots when an operation fails or
// cannot be confirmed, so the failure can be inspected without re-running it.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"pinrunner/pkg/browser"
	"pinrunner/pkg/config"
	"pinrunner/pkg/logger"
)

// Snapshot locates the files written for one capture
type Snapshot struct {
	Operation  string    `json:"operation"`
	Taken      time.Time `json:"taken"`
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Screenshot string    `json:"screenshot,omitempty"`
	HTML       string    `json:"html,omitempty"`
}

// Writer persists snapshots under a directory
type Writer struct {
	dir     string
	enabled bool
	now     func() time.Time
	log     logger.Logger
}

// NewWriter creates a snapshot writer
func NewWriter(cfg config.DiagnosticsConfig, log logger.Logger) *Writer {
	return &Writer{
		dir:     cfg.Directory,
		enabled: cfg.Enabled && cfg.Directory != "",
		now:     time.Now,
		log:     logger.Component(log, "diagnostics"),
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Capture saves a screenshot and the rendered HTML of page. Partial captures
// are kept: a failed screenshot still leaves the HTML behind.
func (w *Writer) Capture(ctx context.Context, page browser.Page, operation string) (*Snapshot, error) {
	if w == nil || !w.enabled {
		return nil, nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	taken := w.now().UTC()
	id := uuid.NewString()[:8]
	base := fmt.Sprintf("%s_%s_%s", unsafeChars.ReplaceAllString(operation, "_"), taken.Format("20060102T150405.000Z"), id)
	snap := &Snapshot{Operation: operation, Taken: taken, ID: id, URL: page.URL()}

	var errs []error
	if png, err := page.Screenshot(ctx); err != nil {
		errs = append(errs, err)
	} else {
		path := filepath.Join(w.dir, base+".png")
		if err := writeAtomic(path, png); err != nil {
			errs = append(errs, err)
		} else {
			snap.Screenshot = path
		}
	}

	if html, err := page.HTML(ctx); err != nil {
		errs = append(errs, err)
	} else {
		path := filepath.Join(w.dir, base+".html")
		if err := writeAtomic(path, []byte(html)); err != nil {
			errs = append(errs, err)
		} else {
			snap.HTML = path
		}
	}

	err := errors.Join(errs...)
	if snap.Screenshot == "" && snap.HTML == "" {
		return nil, err
	}
	w.log.InfoWithFields("diagnostic snapshot captured", map[string]interface{}{
		"operation":  operation,
		"screenshot": snap.Screenshot,
		"html":       snap.HTML,
		"url":        snap.URL,
	})
	return snap, err
}

func writeAtomic(path string, data []byte) error {
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}
