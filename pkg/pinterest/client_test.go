package pinterest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/browser/browsertest"
	"pinrunner/pkg/config"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/locator"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/media"
	"pinrunner/pkg/models"
	"pinrunner/pkg/session"
	"pinrunner/pkg/timing"
)

func TestMain(m *testing.M) {
	locator.PollInterval = time.Millisecond
	os.Exit(m.Run())
}

const (
	base    = "https://www.pinterest.com"
	homeURL = base + "/"
	pinURL  = base + "/pin/123/"
)

type harness struct {
	client   *Client
	page     *browsertest.Page
	sess     *session.Session
	log      *logger.TestLogger
	stageDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pinterest.Username = "maker"
	cfg.Timeouts = config.TimeoutConfig{
		Navigation: time.Second,
		Element:    20 * time.Millisecond,
		Toggle:     20 * time.Millisecond,
		Comment:    20 * time.Millisecond,
		CreatePin:  30 * time.Millisecond,
		Confirm:    20 * time.Millisecond,
		Optional:   10 * time.Millisecond,
		Login:      20 * time.Millisecond,
	}
	cfg.RateLimit.ActionsPerMinute = 0
	cfg.Diagnostics = config.DiagnosticsConfig{Enabled: true, Directory: t.TempDir()}
	cfg.Session.CookieFile = filepath.Join(t.TempDir(), "cookies.json")
	cfg.Session.SaveLocal = false

	h := &harness{
		page:     browsertest.New().Route(homeURL, `<html><body><div data-test-id="homefeed"></div></body></html>`),
		log:      logger.NewTestLogger(),
		stageDir: t.TempDir(),
	}
	h.sess = session.New(h.page, nil)
	h.sess.SetAuthenticated(true)

	fetcher := media.New(cfg.Download, h.log, media.WithTempDir(h.stageDir))
	c, err := NewWithSession(cfg, h.sess,
		WithLogger(h.log),
		WithTiming(timing.Instant(cfg.Timing)),
		WithFetcher(fetcher),
	)
	require.NoError(t, err)
	h.client = c
	return h
}

func TestExpiredSessionRedirectFailsWithAuthExpired(t *testing.T) {
	h := newHarness(t)
	h.page.Route(base+"/login/", `<form><input id="email"></form>`).Redirect(pinURL, base+"/login/?next=/pin/123/")

	out := h.client.LikePin(context.Background(), "123")

	assert.Equal(t, executor.StatusFailed, out.Status)
	require.NotNil(t, out.Err)
	assert.Equal(t, errs.KindAuthExpired, out.Err.Kind)
	assert.False(t, h.sess.Authenticated())
}

func TestUnauthenticatedMutationIsRejected(t *testing.T) {
	h := newHarness(t)
	h.sess.SetAuthenticated(false)

	out := h.client.FollowUser(context.Background(), "bakerjo")

	assert.Equal(t, executor.StatusRejected, out.Status)
	assert.Empty(t, h.page.Visited())
}

func TestInvalidReferenceIsRejected(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		run  func() executor.Outcome
	}{
		{"pin", func() executor.Outcome { return h.client.LikePin(context.Background(), "not a pin") }},
		{"board", func() executor.Outcome { return h.client.FollowBoard(context.Background(), "only-one-part") }},
		{"user", func() executor.Outcome { return h.client.FollowUser(context.Background(), "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.run()
			assert.Equal(t, executor.StatusRejected, out.Status)
			require.NotNil(t, out.Err)
			assert.Equal(t, errs.KindValidation, out.Err.Kind)
		})
	}
	assert.Empty(t, h.page.Visited())
}

func TestScreenshotWritesFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.page.Navigate(context.Background(), homeURL))

	path := filepath.Join(t.TempDir(), "shots", "home.png")
	require.NoError(t, h.client.Screenshot(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG, data)
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.Close(context.Background()))
	require.NoError(t, h.client.Close(context.Background()))
	assert.True(t, h.page.Closed())
}

func TestURLBuilders(t *testing.T) {
	u := newURLs(base + "/")

	pin, err := u.pin("https://www.pinterest.com/pin/98765/?utm=x")
	require.NoError(t, err)
	assert.Equal(t, base+"/pin/98765/", pin)

	pin, err = u.pin("98765")
	require.NoError(t, err)
	assert.Equal(t, base+"/pin/98765/", pin)

	_, err = u.pin("../etc")
	assert.Error(t, err)

	profile, err := u.profile("@bakerjo")
	require.NoError(t, err)
	assert.Equal(t, base+"/bakerjo/", profile)

	profile, err = u.profile("https://www.pinterest.com/bakerjo/_created/")
	require.NoError(t, err)
	assert.Equal(t, base+"/bakerjo/", profile)

	board, err := u.board("bakerjo/bread")
	require.NoError(t, err)
	assert.Equal(t, base+"/bakerjo/bread/", board)

	board, err = u.board("https://www.pinterest.com/bakerjo/bread/")
	require.NoError(t, err)
	assert.Equal(t, base+"/bakerjo/bread/", board)

	_, err = u.board("bakerjo/bread/sourdough")
	assert.Error(t, err)

	assert.Equal(t, base+"/search/boards/?q=sour+dough&rs=typed", u.search("sour dough", models.ScopeBoards))
	assert.Equal(t, base+"/maker/_saved/", u.boardCreation("maker"))
	assert.Equal(t, homeURL, u.boardCreation(""))
	assert.Equal(t, base+"/pin/1/", u.absolute("/pin/1/"))
	assert.Equal(t, "summer-recipes-2024", slug("  Summer Recipes: 2024! "))
}
