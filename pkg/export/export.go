// Package export writes scraped records as JSON documents.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pinrunner/pkg/models"
)

// Kind names the record type held by a document
type Kind string

const (
	KindPins    Kind = "pins"
	KindBoards  Kind = "boards"
	KindUsers   Kind = "users"
	KindProfile Kind = "profile"
	KindPin     Kind = "pin"
)

// Document is the on-disk envelope
type Document struct {
	Kind        Kind            `json:"kind"`
	Source      string          `json:"source,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Count       int             `json:"count"`
	Records     json.RawMessage `json:"records"`
}

// New wraps records of kind. Count is the slice length, or 1 for a single record.
func New(kind Kind, source string, records interface{}) (*Document, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return &Document{
		Kind:        kind,
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Count:       count(records),
		Records:     raw,
	}, nil
}

// FromSearch wraps the records for a search result's scope
func FromSearch(result models.SearchResult) (*Document, error) {
	source := fmt.Sprintf("search:%s:%s", result.Scope, result.Query)
	switch result.Scope {
	case models.ScopeBoards:
		return New(KindBoards, source, result.Boards)
	case models.ScopeUsers:
		return New(KindUsers, source, result.Users)
	default:
		return New(KindPins, source, result.Pins)
	}
}

func count(records interface{}) int {
	switch r := records.(type) {
	case []models.Pin:
		return len(r)
	case []models.Board:
		return len(r)
	case []models.User:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// Encode writes doc as indented JSON
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// Write saves doc to path, replacing any existing file atomically
func Write(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Read loads a document from path
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &doc, nil
}

// Pins decodes the records of a pin listing or single pin document
func (d *Document) Pins() ([]models.Pin, error) {
	switch d.Kind {
	case KindPins:
		var pins []models.Pin
		if err := json.Unmarshal(d.Records, &pins); err != nil {
			return nil, fmt.Errorf("failed to decode pins: %w", err)
		}
		return pins, nil
	case KindPin:
		var pin models.Pin
		if err := json.Unmarshal(d.Records, &pin); err != nil {
			return nil, fmt.Errorf("failed to decode pin: %w", err)
		}
		return []models.Pin{pin}, nil
	}
	return nil, fmt.Errorf("export holds %s, not pins", d.Kind)
}

// Sidecar is the metadata written next to a downloaded image
type Sidecar struct {
	Pin          models.Pin `json:"pin"`
	FileSize     int64      `json:"file_size,omitempty"`
	DownloadedAt time.Time  `json:"downloaded_at"`
}

// SidecarPath is imagePath with .json appended
func SidecarPath(imagePath string) string {
	return imagePath + ".json"
}

// WriteSidecar records pin metadata beside the image at imagePath
func WriteSidecar(imagePath string, pin models.Pin, size int64) error {
	data, err := json.MarshalIndent(Sidecar{Pin: pin, FileSize: size, DownloadedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(SidecarPath(imagePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// ReadSidecar loads the metadata for the image at imagePath
func ReadSidecar(imagePath string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &s, nil
}

// CleanOrphanedSidecars removes sidecars whose image is gone and returns
// how many were removed
func CleanOrphanedSidecars(dir string) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" || len(path) <= len(".json") {
			return nil
		}
		image := path[:len(path)-len(".json")]
		if filepath.Ext(image) == "" {
			return nil
		}
		if _, err := os.Stat(image); errors.Is(err, os.ErrNotExist) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove orphaned metadata %s: %w", path, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
