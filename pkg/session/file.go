package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pinrunner/pkg/browser"
)

// readCookieFile loads the local cache. A missing file is a fresh session,
// not an error.
func readCookieFile(path string) ([]browser.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	return cookies, nil
}

// writeCookieFile replaces the local cache atomically
func writeCookieFile(path string, cookies []browser.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cookie file: %w", err)
	}
	tempPath := file.Name()

	if cookies == nil {
		cookies = []browser.Cookie{}
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cookies); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync cookie file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cookie file: %w", err)
	}

	if err := os.Chmod(tempPath, 0600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to restrict cookie file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}
	return nil
}
