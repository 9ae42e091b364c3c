// Package media downloads pin images over plain HTTP with the same
// user agent and language as the browser session.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/fingerprint"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/ratelimit"
	"pinrunner/pkg/retry"
)

// defaultMaxSize caps a single image when the config leaves it unset
const defaultMaxSize = 32 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
}

// Image is one downloaded image
type Image struct {
	URL         string
	ContentType string
	Data        []byte
}

// Ext is the file extension for the image's content type, falling back to
// the URL's extension
func (i Image) Ext() string {
	if ext, ok := imageExtensions[i.ContentType]; ok {
		return ext
	}
	if ext := path.Ext(strings.SplitN(i.URL, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	return ".img"
}

// Fetcher downloads images with retries
type Fetcher struct {
	client  *http.Client
	mu      sync.RWMutex
	headers map[string]string
	maxSize int64
	retry   *retry.Config
	limiter ratelimit.Limiter
	metrics *metrics.Recorder
	tempDir string
	log     logger.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetry replaces the retry policy
func WithRetry(cfg *retry.Config) Option {
	return func(f *Fetcher) { f.retry = cfg }
}

// WithLimiter paces requests
func WithLimiter(l ratelimit.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithMetrics counts downloads by result
func WithMetrics(m *metrics.Recorder) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithTempDir sets where staged files go
func WithTempDir(dir string) Option {
	return func(f *Fetcher) { f.tempDir = dir }
}

// New creates a Fetcher from the download config
func New(cfg config.DownloadConfig, log logger.Logger, opts ...Option) *Fetcher {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	log = logger.Component(log, "media")

	f := &Fetcher{
		client: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"Accept":         "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Sec-Fetch-Dest": "image",
			"Sec-Fetch-Mode": "no-cors",
			"Sec-Fetch-Site": "cross-site",
		},
		maxSize: maxSize,
		retry: &retry.Config{
			MaxAttempts: 3,
			KindBackoff: retry.NewKindBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		limiter: ratelimit.Unlimited{},
		log:     log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetHeader sets a request header
func (f *Fetcher) SetHeader(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers[key] = value
}

// UseProfile sends the browser profile's user agent and languages
func (f *Fetcher) UseProfile(ua fingerprint.UserAgentOverride) {
	f.SetHeader("User-Agent", ua.UserAgent)
	if ua.AcceptLanguage != "" {
		f.SetHeader("Accept-Language", ua.AcceptLanguage)
	}
}

// Fetch downloads url, retrying transient failures
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	img, err := retry.DoWithResult(ctx, func() (*Image, error) {
		return f.fetchOnce(ctx, url)
	}, f.retry)
	if err != nil {
		f.metrics.Download("failed")
		return nil, err
	}
	f.metrics.Download("fetched")
	return img, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*Image, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid image URL")
	}
	f.mu.RLock()
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	f.mu.RUnlock()

	start := time.Now()
	f.log.DebugWithFields("fetching image", map[string]interface{}{"url": url})

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.ErrorWithFields("image request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, errs.Wrap(errs.KindNetwork, err, "image request failed")
	}
	defer resp.Body.Close()

	if err := f.checkStatus(resp); err != nil {
		return nil, err
	}

	contentType := strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0])
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		return nil, errs.New(errs.KindValidation, "not an image: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "failed to read image body")
	}
	if int64(len(data)) > f.maxSize {
		return nil, errs.New(errs.KindValidation, "image exceeds %d bytes", f.maxSize)
	}

	f.log.DebugWithFields("image fetched", map[string]interface{}{
		"url":         url,
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &Image{URL: url, ContentType: contentType, Data: data}, nil
}

func (f *Fetcher) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	kind := errs.KindForStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}
	if errs.IsRetryableStatusCode(resp.StatusCode) {
		f.log.WarnWithFields("image request returned retryable status", fields)
	} else {
		f.log.ErrorWithFields("image request rejected", fields)
	}
	e := errs.New(kind, "unexpected status %d", resp.StatusCode)
	e.Code = resp.StatusCode
	return e
}

// Stage downloads url to a temporary file. The returned cleanup removes it
// and is safe to call more than once.
func (f *Fetcher) Stage(ctx context.Context, url string) (string, func() error, error) {
	img, err := f.Fetch(ctx, url)
	if err != nil {
		return "", nil, err
	}

	file, err := os.CreateTemp(f.tempDir, "pin-*"+img.Ext())
	if err != nil {
		return "", nil, errs.Wrap(errs.KindFileSystem, err, "failed to create staging file")
	}
	name := file.Name()
	if _, err := file.Write(img.Data); err != nil {
		file.Close()
		os.Remove(name)
		return "", nil, errs.Wrap(errs.KindFileSystem, err, "failed to write staging file")
	}
	if err := file.Close(); err != nil {
		os.Remove(name)
		return "", nil, errs.Wrap(errs.KindFileSystem, err, "failed to close staging file")
	}

	f.log.DebugWithFields("image staged", map[string]interface{}{"url": url, "path": name})
	cleanup := func() error {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove staged image: %w", err)
		}
		return nil
	}
	return name, cleanup, nil
}
