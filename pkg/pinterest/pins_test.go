package pinterest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/browser/browsertest"
	errs "pinrunner/pkg/errors"
	"pinrunner/pkg/executor"
)

const closeupHTML = `<html><head>
	<meta property="og:image" content="https://i.example.test/originals/12/3.jpg">
</head><body><div data-test-id="closeup-body">
	<div data-test-id="closeup-title"><h1>Rye sourdough</h1></div>
	<button data-test-id="like-button" aria-pressed="false">React</button>
	<button data-test-id="more-options">More</button>
	<button data-test-id="board-dropdown-select-button">Quick saves</button>
	<button data-test-id="save-button">Save</button>
	<div data-test-id="comments"></div>
</div></body></html>`

const builderURL = base + "/pin-creation-tool/"

const builderHTML = `<html><body><form>
	<input type="file" accept="image/*" data-test-id="media-upload-input">
	<input name="title">
	<textarea name="description"></textarea>
	<input name="link">
	<button data-test-id="board-dropdown-select-button">Quick saves</button>
	<div data-test-id="publish-button"><span>Publish</span></div>
</form></body></html>`

func TestLikeClicksAndConfirms(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='like-button']", func(p *browsertest.Page) {
		p.SetAttr("[data-test-id='like-button']", "aria-pressed", "true")
	})

	out := h.client.LikePin(context.Background(), pinURL)

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='like-button']"))
	assert.Nil(t, out.Snapshot)
}

func TestLikeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, strings.Replace(closeupHTML, `aria-pressed="false"`, `aria-pressed="true"`, 1))

	out := h.client.LikePin(context.Background(), "123")

	assert.True(t, out.OK())
	assert.Zero(t, h.page.Clicks("[data-test-id='like-button']"))
	assert.True(t, h.log.HasMessage("already in requested state"))

	out = h.client.UnlikePin(context.Background(), "123")
	assert.Equal(t, executor.StatusUnconfirmed, out.Status, "nothing flips the button back")
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='like-button']"))
}

func TestDeleteWithoutDialogIsUnconfirmed(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='more-options']", func(p *browsertest.Page) {
		p.Append("body", `<div role="menu"><button data-test-id="delete-pin-button">Delete</button></div>`)
	})

	out := h.client.DeletePin(context.Background(), "123")

	assert.Equal(t, executor.StatusUnconfirmed, out.Status)
	require.NotNil(t, out.Err)
	assert.Equal(t, errs.KindUnconfirmedOutcome, out.Err.Kind)
	assert.Equal(t, []string{"delete:menu", "skip:click delete confirmation"}, out.Path)
	require.NotNil(t, out.Snapshot)
	assert.FileExists(t, out.Snapshot.Screenshot)
	assert.FileExists(t, out.Snapshot.HTML)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='delete-pin-button']"))
}

func TestDeleteWithConfirmationDialog(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='more-options']", func(p *browsertest.Page) {
		p.Append("body", `<div role="menu"><button data-test-id="delete-pin-button">Delete</button></div>`)
	})
	h.page.OnClick("[data-test-id='delete-pin-button']", func(p *browsertest.Page) {
		p.Append("body", `<div role="dialog"><button data-test-id="delete-pin-confirm">Delete</button></div>`)
	})
	h.page.OnClick("[data-test-id='delete-pin-confirm']", func(p *browsertest.Page) {
		p.Goto(homeURL)
	})

	out := h.client.DeletePin(context.Background(), "123")

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"delete:menu"}, out.Path)
}

func TestDeleteThroughEditForm(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='more-options']", func(p *browsertest.Page) {
		p.Append("body", `<div role="menu"><button data-test-id="edit-pin">Edit Pin</button></div>`)
	})
	h.page.OnClick("[data-test-id='edit-pin']", func(p *browsertest.Page) {
		p.Append("body", `<form><button data-test-id="edit-pin-delete">Delete</button></form>`)
	})
	h.page.OnClick("[data-test-id='edit-pin-delete']", func(p *browsertest.Page) {
		p.Goto(homeURL)
	})

	out := h.client.DeletePin(context.Background(), "123")

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"delete:edit form", "skip:click delete confirmation"}, out.Path)
}

func TestRepinNamedBoard(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='board-dropdown-select-button']", func(p *browsertest.Page) {
		p.Append("body", `<div role="listbox">
			<div data-test-id="board-row">Quick saves</div>
			<div data-test-id="board-row">Bread</div>
		</div>`)
	})
	h.page.OnClick("[data-test-id='save-button']", func(p *browsertest.Page) {
		p.Append("body", `<div data-test-id="toast-saved">Saved to Bread</div>`)
	})

	out := h.client.Repin(context.Background(), RepinInput{Pin: "123", Board: " bread "})

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"board:named"}, out.Path)
	assert.Equal(t, 1, h.page.Clicks("[data-test-id='board-row']"))
}

func TestRepinFallsBackToDefaultBoard(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)
	h.page.OnClick("[data-test-id='board-dropdown-select-button']", func(p *browsertest.Page) {
		p.Append("body", `<div role="listbox"><div data-test-id="board-row">Quick saves</div></div>`)
	})
	h.page.OnClick("[data-test-id='save-button']", func(p *browsertest.Page) {
		p.Append("body", `<div data-test-id="toast-saved">Saved</div>`)
	})

	out := h.client.Repin(context.Background(), RepinInput{Pin: "123", Board: "Nonexistent"})

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"board:default"}, out.Path)
	assert.Zero(t, h.page.Clicks("[data-test-id='board-row']"))
	assert.True(t, h.log.HasMessage("fell back to alternate leg"))
}

func TestCommentFallsBackToEnter(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, strings.Replace(closeupHTML,
		`<div data-test-id="comments"></div>`,
		`<div data-test-id="comments"><textarea name="comment"></textarea></div>`, 1))
	h.page.OnEnter(func(p *browsertest.Page) {
		text := p.Value("textarea[name='comment']")
		p.Append("[data-test-id='comments']", `<p data-test-id="comment-text">`+text+`</p>`)
	})

	out := h.client.Comment(context.Background(), "123", "Great crumb")

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"skip:click comment section toggle", "submit:enter"}, out.Path)
}

func TestCommentValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		text string
	}{
		{"empty", "   "},
		{"too long", strings.Repeat("é", maxComment+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := h.client.Comment(context.Background(), "123", tt.text)
			assert.Equal(t, executor.StatusRejected, out.Status)
			assert.Equal(t, errs.KindValidation, out.Err.Kind)
		})
	}
	assert.Empty(t, h.page.Visited())
}

func TestCreatePinFromRemoteImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("\xff\xd8\xff\xe0jpeg"))
	}))
	defer srv.Close()

	h := newHarness(t)
	h.page.Route(builderURL, builderHTML).Route(base+"/pin/999/", closeupHTML)

	var staged, typedTitle string
	h.page.OnClick("[data-test-id='publish-button']", func(p *browsertest.Page) {
		staged = p.Files("input[type='file']")[0]
		typedTitle = p.Value("input[name='title']")
		p.Goto(base + "/pin/999/")
	})

	out := h.client.CreatePin(context.Background(), PinInput{
		ImageURL: srv.URL + "/loaf.jpg",
		Title:    "Rye loaf",
		Link:     "https://bakery.example.test/rye",
	})

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, base+"/pin/999/", out.ID)
	assert.Equal(t, "Rye loaf", typedTitle)
	assert.Equal(t, h.stageDir, filepath.Dir(staged))
	assert.NoFileExists(t, staged, "staged image is removed after the operation")
}

func TestCreatePinFromPublishedLink(t *testing.T) {
	h := newHarness(t)
	h.page.Route(builderURL, builderHTML)
	h.page.OnClick("[data-test-id='publish-button']", func(p *browsertest.Page) {
		p.Append("body", `<div data-test-id="seeItNow"><a href="/pin/777/">See it now</a></div>`)
	})

	img := filepath.Join(t.TempDir(), "loaf.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0644))

	out := h.client.CreatePin(context.Background(), PinInput{ImagePath: img, Board: "Missing board"})

	assert.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, base+"/pin/777/", out.ID)
	assert.Equal(t, []string{"board:default"}, out.Path)
	assert.Equal(t, []string{img}, h.page.Files("input[type='file']"))
	assert.FileExists(t, img, "local images are left alone")
}

func TestCreatePinValidation(t *testing.T) {
	h := newHarness(t)
	img := filepath.Join(t.TempDir(), "loaf.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0644))

	tests := []struct {
		name string
		in   PinInput
	}{
		{"no image", PinInput{Title: "x"}},
		{"two images", PinInput{ImagePath: img, ImageURL: "https://i.example.test/a.jpg"}},
		{"missing file", PinInput{ImagePath: filepath.Join(t.TempDir(), "nope.png")}},
		{"directory", PinInput{ImagePath: t.TempDir()}},
		{"bad image url", PinInput{ImageURL: "ftp://i.example.test/a.jpg"}},
		{"long title", PinInput{ImagePath: img, Title: strings.Repeat("t", maxTitle+1)}},
		{"bad link", PinInput{ImagePath: img, Link: "javascript:alert(1)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := h.client.CreatePin(context.Background(), tt.in)
			assert.Equal(t, executor.StatusRejected, out.Status)
			assert.Equal(t, errs.KindValidation, out.Err.Kind)
		})
	}
	assert.Empty(t, h.page.Visited())
}

func TestGetPinReadsCloseup(t *testing.T) {
	h := newHarness(t)
	h.page.Route(pinURL, closeupHTML)

	pin, out := h.client.GetPin(context.Background(), "123")

	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, "123", pin.ID)
	assert.Equal(t, "Rye sourdough", pin.Title)
	assert.Equal(t, "https://i.example.test/originals/12/3.jpg", pin.ImageURL)
	assert.Equal(t, pinURL, out.ID)
}
