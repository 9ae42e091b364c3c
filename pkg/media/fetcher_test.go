package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/fingerprint"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/retry"
)

var jpeg = []byte("\xff\xd8\xff\xe0fakejpeg")

func newFetcher(t *testing.T, opts ...Option) (*Fetcher, *logger.TestLogger) {
	t.Helper()
	tl := logger.NewTestLogger()
	fast := &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
	}
	opts = append([]Option{WithRetry(fast), WithTempDir(t.TempDir())}, opts...)
	return New(config.DownloadConfig{DownloadTimeout: 5 * time.Second, MaxFileSize: 1024}, tl, opts...), tl
}

func TestFetchSendsProfileHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	}))
	defer srv.Close()

	f, _ := newFetcher(t)
	f.UseProfile(fingerprint.UserAgentOverride{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0.0.0",
		AcceptLanguage: "de-DE,de;q=0.9",
	})

	img, err := f.Fetch(context.Background(), srv.URL+"/originals/ab/cd.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, ".jpg", img.Ext())
	assert.Equal(t, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0.0.0", gotUA)
	assert.Equal(t, "de-DE,de;q=0.9", gotLang)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	f, tl := newFetcher(t)
	img, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, ".png", img.Ext())
	assert.True(t, tl.HasMessage("image request returned retryable status"))
}

func TestFetchClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    errs.Kind
		calls   int32
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			kind:    errs.KindNotFound,
			calls:   1,
		},
		{
			name: "not an image",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html></html>"))
			},
			kind:  errs.KindValidation,
			calls: 1,
		},
		{
			name: "too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				w.Write([]byte(strings.Repeat("x", 2048)))
			},
			kind:  errs.KindValidation,
			calls: 1,
		},
		{
			name:    "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			kind:    errs.KindRateLimit,
			calls:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			f, _ := newFetcher(t)
			_, err := f.Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestStageAndCleanup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webp"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f, _ := newFetcher(t, WithTempDir(dir))

	path, cleanup, err := f.Stage(context.Background(), srv.URL+"/i.webp")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".webp", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webp", string(data))

	require.NoError(t, cleanup())
	assert.NoFileExists(t, path)
	assert.NoError(t, cleanup(), "second cleanup is a no-op")
}

func TestExtFallsBackToURL(t *testing.T) {
	assert.Equal(t, ".jpeg", Image{URL: "https://x.test/a/B.JPEG?w=236"}.Ext())
	assert.Equal(t, ".img", Image{URL: "https://x.test/a/b"}.Ext())
}
