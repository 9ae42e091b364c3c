// Package storage writes downloaded pin images to an output directory, one
// file per pin ID, and remembers what is already on disk so repeated runs
// skip finished pins.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// imageExts are the extensions recognized when scanning an existing directory
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".img": true,
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Manager handles image files and duplicate detection
type Manager struct {
	outputDir string
	saved     map[string]string // pin ID -> file path
	mu        sync.RWMutex
}

// NewManager creates the output directory if needed and indexes the images
// already in it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{outputDir: outputDir, saved: make(map[string]string)}
	if err := m.scan(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

func (m *Manager) scan() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || !imageExts[ext] {
			continue
		}
		m.saved[strings.TrimSuffix(name, filepath.Ext(name))] = filepath.Join(m.outputDir, name)
	}
	return nil
}

// IsSaved reports whether an image for pinID is on disk
func (m *Manager) IsSaved(pinID string) bool {
	_, ok := m.Path(pinID)
	return ok
}

// Path returns the saved file for pinID. A file removed behind the
// manager's back is forgotten.
func (m *Manager) Path(pinID string) (string, bool) {
	key := fileKey(pinID)
	m.mu.RLock()
	path, ok := m.saved[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		m.mu.Lock()
		delete(m.saved, key)
		m.mu.Unlock()
		return "", false
	}
	return path, true
}

// SaveImage writes data as <pinID><ext> through a temp file and rename, so
// a crash never leaves a partial image under the final name
func (m *Manager) SaveImage(pinID, ext string, data []byte) (string, error) {
	key := fileKey(pinID)
	if key == "" {
		return "", fmt.Errorf("invalid pin ID %q", pinID)
	}
	if ext == "" || !strings.HasPrefix(ext, ".") {
		ext = ".img"
	}
	filename := filepath.Join(m.outputDir, key+strings.ToLower(ext))

	tmp, err := os.CreateTemp(m.outputDir, "."+key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[key] = filename
	m.mu.Unlock()
	return filename, nil
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Count returns the number of indexed images
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// fileKey keeps pin IDs safe as file names
func fileKey(pinID string) string {
	return strings.Trim(unsafeName.ReplaceAllString(pinID, "_"), "_")
}
