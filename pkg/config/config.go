package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pinrunner/pkg/fingerprint"
)

const envPrefix = "PINRUNNER_"

// Config holds all configuration options for pinrunner
type Config struct {
	Pinterest   PinterestConfig   `yaml:"pinterest" json:"pinterest"`
	Browser     BrowserConfig     `yaml:"browser" json:"browser"`
	Proxy       ProxyConfig       `yaml:"proxy" json:"proxy"`
	Session     SessionConfig     `yaml:"session" json:"session"`
	Timing      TimingConfig      `yaml:"timing" json:"timing"`
	Timeouts    TimeoutConfig     `yaml:"timeouts" json:"timeouts"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Retry       RetryConfig       `yaml:"retry" json:"retry"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Download    DownloadConfig    `yaml:"download" json:"download"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// PinterestConfig describes the target site
type PinterestConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	LoginPath string `yaml:"login_path" json:"login_path"`
	// Username is the account's handle, needed for profile-scoped pages
	Username string `yaml:"username" json:"username"`
	// LoginPattern matches URLs that are part of the login surface
	LoginPattern string `yaml:"login_pattern" json:"login_pattern"`
	// HomePattern matches the authenticated landing page
	HomePattern string `yaml:"home_pattern" json:"home_pattern"`
}

// BrowserConfig controls how the browser process is launched
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`
	// Bin is an explicit Chromium binary; empty lets the launcher resolve one
	Bin string `yaml:"bin" json:"bin"`
	// ControlURL connects to an already running browser instead of launching
	ControlURL  string   `yaml:"control_url" json:"control_url"`
	UserDataDir string   `yaml:"user_data_dir" json:"user_data_dir"`
	ExtraFlags  []string `yaml:"extra_flags" json:"extra_flags"`
	Platform    string   `yaml:"platform" json:"platform"`
	Locale      string   `yaml:"locale" json:"locale"`
	Timezone    string   `yaml:"timezone" json:"timezone"`
}

// ProxyConfig is the optional network egress
type ProxyConfig struct {
	Server   string `yaml:"server" json:"server"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	// Country is the ISO code of the egress location, used for geo consistency checks
	Country string `yaml:"country" json:"country"`
}

// SessionConfig controls cookie persistence
type SessionConfig struct {
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`
	SaveLocal  bool   `yaml:"save_local" json:"save_local"`
	// SQLitePath enables the sqlite cookie source and sink when set
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	AccountKey string `yaml:"account_key" json:"account_key"`
}

// TimingConfig bounds every randomized wait
type TimingConfig struct {
	ActionMin     time.Duration `yaml:"action_min" json:"action_min"`
	ActionMax     time.Duration `yaml:"action_max" json:"action_max"`
	KeyMin        time.Duration `yaml:"key_min" json:"key_min"`
	KeyMax        time.Duration `yaml:"key_max" json:"key_max"`
	PauseChance   float64       `yaml:"pause_chance" json:"pause_chance"`
	PauseMin      time.Duration `yaml:"pause_min" json:"pause_min"`
	PauseMax      time.Duration `yaml:"pause_max" json:"pause_max"`
	ScrollStepMin int           `yaml:"scroll_step_min" json:"scroll_step_min"`
	ScrollStepMax int           `yaml:"scroll_step_max" json:"scroll_step_max"`
	ScrollPassMin time.Duration `yaml:"scroll_pass_min" json:"scroll_pass_min"`
	ScrollPassMax time.Duration `yaml:"scroll_pass_max" json:"scroll_pass_max"`
	// ScrollPasses is how many lazy-load scrolls a listing gets
	ScrollPasses int `yaml:"scroll_passes" json:"scroll_passes"`
}

// TimeoutConfig holds per-operation bounded waits
type TimeoutConfig struct {
	Navigation time.Duration `yaml:"navigation" json:"navigation"`
	Element    time.Duration `yaml:"element" json:"element"`
	Toggle     time.Duration `yaml:"toggle" json:"toggle"`
	Comment    time.Duration `yaml:"comment" json:"comment"`
	CreatePin  time.Duration `yaml:"create_pin" json:"create_pin"`
	Confirm    time.Duration `yaml:"confirm" json:"confirm"`
	Optional   time.Duration `yaml:"optional" json:"optional"`
	Login      time.Duration `yaml:"login" json:"login"`
}

// RateLimitConfig paces mutating actions
type RateLimitConfig struct {
	ActionsPerMinute int `yaml:"actions_per_minute" json:"actions_per_minute"`
	BurstSize        int `yaml:"burst_size" json:"burst_size"`
	// DownloadsPerMinute paces the image download pool
	DownloadsPerMinute int `yaml:"downloads_per_minute" json:"downloads_per_minute"`
}

// RetryConfig holds caller-level retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// DiagnosticsConfig controls failure snapshots
type DiagnosticsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Directory string `yaml:"directory" json:"directory"`
}

// DownloadConfig holds image download settings
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	OutputDirectory     string        `yaml:"output_directory" json:"output_directory"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json"
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pinterest: PinterestConfig{
			BaseURL:      "https://www.pinterest.com",
			LoginPath:    "/login/",
			LoginPattern: `/login(/|\?|$)`,
			HomePattern:  `^https?://[^/]*pinterest\.[a-z.]+/?(homefeed/?)?(\?.*)?$`,
		},
		Browser: BrowserConfig{
			Headless: true,
			Locale:   "en-US",
			Timezone: "America/New_York",
		},
		Session: SessionConfig{
			CookieFile: "./.pinrunner/cookies.json",
			SaveLocal:  true,
			AccountKey: "default",
		},
		Timing: TimingConfig{
			ActionMin:     500 * time.Millisecond,
			ActionMax:     2000 * time.Millisecond,
			KeyMin:        50 * time.Millisecond,
			KeyMax:        180 * time.Millisecond,
			PauseChance:   0.05,
			PauseMin:      300 * time.Millisecond,
			PauseMax:      900 * time.Millisecond,
			ScrollStepMin: 80,
			ScrollStepMax: 240,
			ScrollPassMin: 800 * time.Millisecond,
			ScrollPassMax: 2000 * time.Millisecond,
			ScrollPasses:  3,
		},
		Timeouts: TimeoutConfig{
			Navigation: 30 * time.Second,
			Element:    10 * time.Second,
			Toggle:     5 * time.Second,
			Comment:    15 * time.Second,
			CreatePin:  30 * time.Second,
			Confirm:    8 * time.Second,
			Optional:   4 * time.Second,
			Login:      15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			ActionsPerMinute:   20,
			BurstSize:          5,
			DownloadsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   2 * time.Second,
			MaxDelay:    60 * time.Second,
			Multiplier:  2.0,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:   true,
			Directory: "./.pinrunner/diagnostics",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
			OutputDirectory:     "./downloads",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Pinterest.BaseURL, "BASE_URL")
	setString(&c.Pinterest.Username, "USERNAME")
	setString(&c.Browser.Bin, "BROWSER_BIN")
	setString(&c.Browser.ControlURL, "BROWSER_URL")
	setString(&c.Browser.UserDataDir, "USER_DATA_DIR")
	setString(&c.Browser.Platform, "PLATFORM")
	setString(&c.Browser.Locale, "LOCALE")
	setString(&c.Browser.Timezone, "TIMEZONE")
	setString(&c.Proxy.Server, "PROXY_SERVER")
	setString(&c.Proxy.Username, "PROXY_USERNAME")
	setString(&c.Proxy.Password, "PROXY_PASSWORD")
	setString(&c.Proxy.Country, "PROXY_COUNTRY")
	setString(&c.Session.CookieFile, "COOKIE_FILE")
	setString(&c.Session.SQLitePath, "SQLITE_PATH")
	setString(&c.Session.AccountKey, "ACCOUNT_KEY")
	setString(&c.Diagnostics.Directory, "DIAGNOSTICS_DIR")
	setString(&c.Download.OutputDirectory, "OUTPUT_DIR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Metrics.ListenAddr, "METRICS_ADDR")

	if v := os.Getenv(envPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHEADLESS: %w", envPrefix, err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv(envPrefix + "ACTIONS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sACTIONS_PER_MINUTE: %w", envPrefix, err))
		} else if n > 0 {
			c.RateLimit.ActionsPerMinute = n
		}
	}
	if v := os.Getenv(envPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENT_DOWNLOADS: %w", envPrefix, err))
		} else if n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv(envPrefix + "RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRETRIES: %w", envPrefix, err))
		} else if n > 0 {
			c.Retry.MaxAttempts = n
		}
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".pinrunner.yaml",
		".pinrunner.yml",
		filepath.Join(home, ".config", "pinrunner", "config.yaml"),
		filepath.Join(home, ".pinrunner.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !strings.HasPrefix(c.Pinterest.BaseURL, "http://") && !strings.HasPrefix(c.Pinterest.BaseURL, "https://") {
		errs = append(errs, errors.New("pinterest base URL must be absolute"))
	}
	if _, err := regexp.Compile(c.Pinterest.LoginPattern); err != nil || c.Pinterest.LoginPattern == "" {
		errs = append(errs, fmt.Errorf("invalid login pattern: %q", c.Pinterest.LoginPattern))
	}
	if _, err := regexp.Compile(c.Pinterest.HomePattern); err != nil || c.Pinterest.HomePattern == "" {
		errs = append(errs, fmt.Errorf("invalid home pattern: %q", c.Pinterest.HomePattern))
	}

	for _, f := range c.Browser.ExtraFlags {
		if strings.Contains(strings.TrimLeft(f, "-"), "disable-web-security") {
			errs = append(errs, errors.New("browser flag disable-web-security is not allowed"))
		}
	}
	if c.Proxy.Username != "" && c.Proxy.Server == "" {
		errs = append(errs, errors.New("proxy credentials given without a proxy server"))
	}

	t := c.Timing
	if t.ActionMin < 0 || t.ActionMax < t.ActionMin {
		errs = append(errs, errors.New("timing action range is invalid"))
	}
	if t.KeyMin < 0 || t.KeyMax < t.KeyMin {
		errs = append(errs, errors.New("timing keystroke range is invalid"))
	}
	if t.PauseChance < 0 || t.PauseChance > 1 {
		errs = append(errs, errors.New("timing pause chance must be between 0 and 1"))
	}
	if t.ScrollStepMin <= 0 || t.ScrollStepMax < t.ScrollStepMin {
		errs = append(errs, errors.New("timing scroll step range is invalid"))
	}
	if t.ScrollPasses < 0 || t.ScrollPasses > 20 {
		errs = append(errs, errors.New("scroll passes must be between 0 and 20"))
	}

	if c.Timeouts.Element <= 0 || c.Timeouts.Navigation <= 0 || c.Timeouts.Confirm <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	if c.RateLimit.ActionsPerMinute <= 0 {
		errs = append(errs, errors.New("actions per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Download.ConcurrentDownloads <= 0 || c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	if err := fingerprint.CheckGeo(c.Browser.Locale, c.Browser.Timezone, c.Proxy.Country); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.ListenAddr = addr
	}
	if retries, ok := flags["retries"].(int); ok && retries > 0 {
		c.Retry.MaxAttempts = retries
	}
	if proxy, ok := flags["proxy"].(string); ok && proxy != "" {
		c.Proxy.Server = proxy
	}
	if cookies, ok := flags["cookie-file"].(string); ok && cookies != "" {
		c.Session.CookieFile = cookies
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Download.OutputDirectory = output
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pinrunner.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoginURL returns the absolute login URL
func (c *Config) LoginURL() string {
	return strings.TrimRight(c.Pinterest.BaseURL, "/") + c.Pinterest.LoginPath
}
