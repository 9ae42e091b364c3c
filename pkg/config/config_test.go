package config

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.pinterest.com", cfg.Pinterest.BaseURL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.ActionMin)
	assert.Equal(t, 2000*time.Millisecond, cfg.Timing.ActionMax)
	assert.Equal(t, 3, cfg.Timing.ScrollPasses)
	assert.True(t, cfg.Session.SaveLocal)
	assert.Greater(t, cfg.Timeouts.Comment, cfg.Timeouts.Toggle)
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)

	require.NoError(t, cfg.Validate())
}

func TestDefaultPatterns(t *testing.T) {
	cfg := DefaultConfig()
	login := regexp.MustCompile(cfg.Pinterest.LoginPattern)
	home := regexp.MustCompile(cfg.Pinterest.HomePattern)

	tests := []struct {
		url     string
		isLogin bool
		isHome  bool
	}{
		{"https://www.pinterest.com/login/", true, false},
		{"https://www.pinterest.com/login/?referrer=home_page", true, false},
		{"https://www.pinterest.com/", false, true},
		{"https://www.pinterest.com/homefeed/", false, true},
		{"https://de.pinterest.de/", false, true},
		{"https://www.pinterest.com/pin/12345/", false, false},
		{"https://www.pinterest.com/someone/loginideas/", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.isLogin, login.MatchString(tt.url), "login pattern")
			assert.Equal(t, tt.isHome, home.MatchString(tt.url), "home pattern")
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PINRUNNER_USERNAME", "maker")
	t.Setenv("PINRUNNER_HEADLESS", "false")
	t.Setenv("PINRUNNER_ACTIONS_PER_MINUTE", "7")
	t.Setenv("PINRUNNER_PROXY_SERVER", "http://10.0.0.1:8080")
	t.Setenv("PINRUNNER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "maker", cfg.Pinterest.Username)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 7, cfg.RateLimit.ActionsPerMinute)
	assert.Equal(t, "http://10.0.0.1:8080", cfg.Proxy.Server)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("PINRUNNER_HEADLESS", "sometimes")
	t.Setenv("PINRUNNER_RETRIES", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PINRUNNER_HEADLESS")
	assert.Contains(t, err.Error(), "PINRUNNER_RETRIES")
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Pinterest.Username = "boards4days"
	cfg.Browser.Locale = "de-DE"
	cfg.Browser.Timezone = "Europe/Berlin"
	cfg.Proxy.Country = "DE"
	cfg.Timeouts.Comment = 20 * time.Second
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "boards4days", loaded.Pinterest.Username)
	assert.Equal(t, "Europe/Berlin", loaded.Browser.Timezone)
	assert.Equal(t, 20*time.Second, loaded.Timeouts.Comment)
	assert.NoError(t, loaded.Validate())
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Pinterest.BaseURL = "pinterest.com" },
			wantErr: "base URL must be absolute",
		},
		{
			name:    "broken login pattern",
			mutate:  func(c *Config) { c.Pinterest.LoginPattern = "(" },
			wantErr: "invalid login pattern",
		},
		{
			name:    "disable web security flag",
			mutate:  func(c *Config) { c.Browser.ExtraFlags = []string{"--disable-web-security"} },
			wantErr: "disable-web-security",
		},
		{
			name: "inverted action range",
			mutate: func(c *Config) {
				c.Timing.ActionMin = 3 * time.Second
				c.Timing.ActionMax = time.Second
			},
			wantErr: "timing action range",
		},
		{
			name:    "too many downloads",
			mutate:  func(c *Config) { c.Download.ConcurrentDownloads = 50 },
			wantErr: "concurrent downloads",
		},
		{
			name: "timezone outside proxy country",
			mutate: func(c *Config) {
				c.Proxy.Server = "http://proxy:1"
				c.Proxy.Country = "FR"
				c.Browser.Locale = "fr-FR"
				c.Browser.Timezone = "America/Chicago"
			},
			wantErr: "timezone",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\npinterest:\n  username: fromfile\n"), 0600))

	t.Setenv("PINRUNNER_USERNAME", "fromenv")

	cfg, err := Load(path, map[string]interface{}{"log-level": "error"})
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Pinterest.Username)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"headless":     false,
		"retries":      4,
		"metrics-addr": ":9109",
		"cookie-file":  "/tmp/c.json",
	})

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, ":9109", cfg.Metrics.ListenAddr)
	assert.Equal(t, "/tmp/c.json", cfg.Session.CookieFile)
}

func TestLoginURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pinterest.BaseURL = "https://www.pinterest.com/"
	assert.Equal(t, "https://www.pinterest.com/login/", cfg.LoginURL())
}
