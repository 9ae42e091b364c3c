package executor

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/browser/browsertest"
	"pinrunner/pkg/config"
	"pinrunner/pkg/diagnostics"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/locator"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/session"
	"pinrunner/pkg/timing"
)

func TestMain(m *testing.M) {
	locator.PollInterval = time.Millisecond
	os.Exit(m.Run())
}

const pinURL = "https://www.pinterest.com/pin/123/"

const pinHTML = `<html><body>
	<div data-test-id="closeup-body">
		<button data-test-id="like-button" aria-pressed="false">Like</button>
		<button data-test-id="more-options">…</button>
		<div data-test-id="board-dropdown-select-button">Quick saves</div>
		<button data-test-id="save-button">Save</button>
	</div>
</body></html>`

var (
	likeButton = locator.New("like button", "[data-test-id='like-button']")
	saveButton = locator.New("save button", "[data-test-id='save-button']")
	missing    = locator.New("missing thing", "#nope", "[data-test-id='nope']")
)

type counter struct{ waits int }

func (c *counter) Allow() bool                    { return true }
func (c *counter) Wait(ctx context.Context) error { c.waits++; return ctx.Err() }
func (c *counter) Reset()                         {}

type harness struct {
	exec    *Executor
	page    *browsertest.Page
	sess    *session.Session
	log     *logger.TestLogger
	limiter *counter
	reg     *prometheus.Registry
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timeouts.Element = 20 * time.Millisecond
	cfg.Timeouts.Confirm = 20 * time.Millisecond
	cfg.Timeouts.Optional = 10 * time.Millisecond

	h := &harness{
		page:    browsertest.New().Route(pinURL, pinHTML),
		log:     logger.NewTestLogger(),
		limiter: &counter{},
		reg:     prometheus.NewRegistry(),
		dir:     t.TempDir(),
	}
	exec, err := New(cfg, timing.Instant(cfg.Timing), h.log,
		WithLimiter(h.limiter),
		WithSnapshots(diagnostics.NewWriter(config.DiagnosticsConfig{Enabled: true, Directory: h.dir}, h.log)),
		WithMetrics(metrics.New(h.reg)),
	)
	require.NoError(t, err)
	h.exec = exec
	h.sess = session.New(h.page, nil)
	h.sess.SetAuthenticated(true)
	return h
}

func TestSuccessWithAttributeConfirm(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick("[data-test-id='like-button']", func(p *browsertest.Page) {
		p.SetAttr("[data-test-id='like-button']", "aria-pressed", "true")
	})

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:        "like_pin",
		URL:         pinURL,
		Mutating:    true,
		RequireAuth: true,
		Steps:       []Step{Click(likeButton)},
		Confirm:     AttributeEquals(likeButton, "aria-pressed", "true"),
	})

	assert.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.OK())
	assert.NoError(t, out.Error())
	assert.Nil(t, out.Snapshot)
	assert.Equal(t, 1, h.limiter.waits)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='like-button']"))
	assert.True(t, h.log.HasMessage("operation finished"))
}

func TestMissingConfirmationIsUnconfirmed(t *testing.T) {
	h := newHarness(t)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:     "like_pin",
		URL:      pinURL,
		Mutating: true,
		Steps:    []Step{Click(likeButton)},
		Confirm:  AttributeEquals(likeButton, "aria-pressed", "true"),
	})

	assert.Equal(t, StatusUnconfirmed, out.Status)
	assert.False(t, out.OK())
	require.NotNil(t, out.Err)
	assert.Equal(t, errs.KindUnconfirmedOutcome, out.Err.Kind)
	assert.Equal(t, "like_pin", out.Err.Op)
	require.NotNil(t, out.Snapshot)
	assert.FileExists(t, out.Snapshot.Screenshot)
	assert.FileExists(t, out.Snapshot.HTML)
}

func TestValidationRejectsBeforeNavigation(t *testing.T) {
	h := newHarness(t)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:     "comment",
		URL:      pinURL,
		Validate: func() error { return errors.New("comment text is required") },
	})

	assert.Equal(t, StatusRejected, out.Status)
	assert.Equal(t, errs.KindValidation, out.Err.Kind)
	assert.Empty(t, h.page.Visited())
	assert.Nil(t, out.Snapshot)
	assert.Zero(t, h.limiter.waits)
}

func TestUnauthenticatedSessionIsRejected(t *testing.T) {
	h := newHarness(t)
	h.sess.SetAuthenticated(false)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:        "repin",
		URL:         pinURL,
		RequireAuth: true,
	})

	assert.Equal(t, StatusRejected, out.Status)
	assert.Equal(t, errs.KindValidation, out.Err.Kind)
	assert.Empty(t, h.page.Visited())
}

func TestLoginRedirectIsAuthExpired(t *testing.T) {
	h := newHarness(t)
	h.page.Redirect("https://www.pinterest.com/pin/999/", "https://www.pinterest.com/login/?next=%2Fpin%2F999%2F")

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:  "like_pin",
		URL:   "https://www.pinterest.com/pin/999/",
		Steps: []Step{Click(likeButton)},
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, errs.KindAuthExpired, out.Err.Kind)
	assert.False(t, h.sess.Authenticated())
	assert.Zero(t, h.page.Clicks("button"), "no selectors are probed after an auth redirect")
}

func TestRedirectToLoginAfterActionIsAuthExpired(t *testing.T) {
	h := newHarness(t)
	loginNext := "https://www.pinterest.com/login/?next=/pin/123/"
	h.page.Route(loginNext, `<form><input id="email"></form>`)
	h.page.OnClick("[data-test-id='save-button']", func(p *browsertest.Page) {
		p.Goto(loginNext)
	})

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:     "delete_pin",
		URL:      pinURL,
		Mutating: true,
		Steps:    []Step{Click(saveButton)},
		Confirm:  URLLeaves(pinURL),
	})

	assert.Equal(t, StatusFailed, out.Status, "leaving the pin for the login page is not a confirmed delete")
	require.NotNil(t, out.Err)
	assert.Equal(t, errs.KindAuthExpired, out.Err.Kind)
	assert.False(t, h.sess.Authenticated())
	assert.NotNil(t, out.Snapshot)
}

func TestRedirectToLoginWithoutConfirmIsAuthExpired(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick("[data-test-id='like-button']", func(p *browsertest.Page) {
		p.Goto("https://www.pinterest.com/login/")
	})

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:  "like_pin",
		URL:   pinURL,
		Steps: []Step{Click(likeButton)},
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, errs.KindAuthExpired, out.Err.Kind)
}

func TestElementNotFoundNamesSelectors(t *testing.T) {
	h := newHarness(t)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:  "follow_board",
		URL:   pinURL,
		Steps: []Step{Click(missing)},
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, errs.KindElementNotFound, out.Err.Kind)
	assert.Equal(t, []string{"#nope", "[data-test-id='nope']"}, out.Err.Selectors)
	require.NotNil(t, out.Snapshot)
}

func TestPanicInStepIsRecoveredAndCleanupRuns(t *testing.T) {
	h := newHarness(t)
	cleaned := 0

	var out Outcome
	require.NotPanics(t, func() {
		out = h.exec.Execute(context.Background(), h.sess, &Operation{
			Name: "create_pin",
			URL:  pinURL,
			Steps: []Step{
				Do("stage", func(r *Run) error {
					r.Defer(func(context.Context) error { cleaned++; return nil })
					return nil
				}),
				Do("explode", func(r *Run) error {
					var m map[string]int
					m["x"] = 1
					return nil
				}),
			},
			Cleanup: func(context.Context) error { cleaned++; return errors.New("already gone") },
		})
	})

	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Err.Error(), "panic")
	assert.Equal(t, 2, cleaned)
	assert.True(t, h.log.HasMessage("cleanup failed"))
	assert.True(t, h.log.HasMessage("recovered panic in operation"))
}

func TestChooseFallsBackToDefaultLeg(t *testing.T) {
	h := newHarness(t)
	boardOption := locator.New("board option", "[data-test-id='board-row']")

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name: "repin",
		URL:  pinURL,
		Steps: []Step{
			Choose("board",
				Leg{Name: "named", Steps: []Step{
					Click(locator.New("board dropdown", "[data-test-id='board-dropdown-select-button']")),
					Do("pick board", func(r *Run) error { return r.ClickText(boardOption, "Recipes") }),
				}},
				Leg{Name: "default", Steps: []Step{Click(saveButton)}},
			),
		},
	})

	require.Equal(t, StatusSuccess, out.Status, "%v", out.Err)
	assert.Equal(t, []string{"board:default"}, out.Path)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='save-button']"))
	assert.True(t, h.log.HasMessage("fell back to alternate leg"))
}

func TestChooseTakesRequestedLeg(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick("[data-test-id='board-dropdown-select-button']", func(p *browsertest.Page) {
		p.Append("body", `<div data-test-id="board-row"> Recipes </div><div data-test-id="board-row">Travel</div>`)
	})
	boardOption := locator.New("board option", "[data-test-id='board-row']")

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name: "repin",
		URL:  pinURL,
		Steps: []Step{
			Choose("board",
				Leg{Name: "named", Steps: []Step{
					Click(locator.New("board dropdown", "[data-test-id='board-dropdown-select-button']")),
					Do("pick board", func(r *Run) error { return r.ClickText(boardOption, "recipes") }),
				}},
				Leg{Name: "default", Steps: []Step{Click(saveButton)}},
			),
		},
	})

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"board:named"}, out.Path)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='board-row']"))
	assert.Zero(t, h.page.Clicks("[data-test-id='save-button']"))
}

func TestOptionalStepSkipIsRecorded(t *testing.T) {
	h := newHarness(t)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:    "delete_pin",
		URL:     pinURL,
		Steps:   []Step{Click(locator.New("options", "[data-test-id='more-options']")), Optional(Click(missing))},
		Confirm: URLLeaves(pinURL),
	})

	assert.Equal(t, StatusUnconfirmed, out.Status)
	assert.Equal(t, []string{"skip:click missing thing"}, out.Path)
	assert.NotNil(t, out.Snapshot)
}

func TestFillTypesWithCadence(t *testing.T) {
	h := newHarness(t)
	h.page.Route("https://www.pinterest.com/search/", `<input name="searchBoxInput" value="old">`)

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:    "search",
		URL:     "https://www.pinterest.com/search/",
		Steps:   []Step{Fill(locator.New("search box", "input[name='searchBoxInput']"), "cats")},
		Confirm: URLMatches(regexp.MustCompile(`/search/`)),
	})

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "cats", h.page.Value("input[name='searchBoxInput']"))
}

func TestScrollLoadIsBounded(t *testing.T) {
	h := newHarness(t)
	passes := 0

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name: "board_pins",
		URL:  pinURL,
		Steps: []Step{Do("scroll", func(r *Run) error {
			passes = r.Passes()
			return r.ScrollLoad(passes)
		})},
	})

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 3, passes)
	assert.Equal(t, float64(3*scrollDistance), h.page.Scrolled())
}

func TestTextAppearsConfirm(t *testing.T) {
	h := newHarness(t)
	h.page.OnClick("[data-test-id='save-button']", func(p *browsertest.Page) {
		p.Append("body", `<div data-test-id="comment-text">so good!</div>`)
	})

	out := h.exec.Execute(context.Background(), h.sess, &Operation{
		Name:    "comment",
		URL:     pinURL,
		Steps:   []Step{Click(saveButton)},
		Confirm: TextAppears(locator.New("comment", "[data-test-id='comment-text']"), "so good!"),
	})
	assert.Equal(t, StatusSuccess, out.Status)
}
