package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/models"
)

func TestWriteAndReadPins(t *testing.T) {
	pins := []models.Pin{
		{ID: "1", URL: "https://www.pinterest.com/pin/1/", Title: "Sourdough"},
		{ID: "2", URL: "https://www.pinterest.com/pin/2/", Sponsored: true},
	}
	doc, err := New(KindPins, "board:ana/bread", pins)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Count)
	assert.False(t, doc.GeneratedAt.IsZero())

	path := filepath.Join(t.TempDir(), "nested", "pins.json")
	require.NoError(t, Write(path, doc))

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, KindPins, loaded.Kind)
	assert.Equal(t, "board:ana/bread", loaded.Source)

	got, err := loaded.Pins()
	require.NoError(t, err)
	assert.Equal(t, pins, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSinglePinDocument(t *testing.T) {
	doc, err := New(KindPin, "pin:9", models.Pin{ID: "9"})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Count)

	pins, err := doc.Pins()
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, "9", pins[0].ID)
}

func TestPinsRejectsOtherKinds(t *testing.T) {
	doc, err := New(KindBoards, "", []models.Board{{Name: "Bread"}})
	require.NoError(t, err)
	_, err = doc.Pins()
	assert.ErrorContains(t, err, "boards")
}

func TestFromSearch(t *testing.T) {
	tests := []struct {
		name  string
		in    models.SearchResult
		kind  Kind
		count int
	}{
		{"pins", models.SearchResult{Query: "bread", Scope: models.ScopePins, Pins: []models.Pin{{ID: "1"}}}, KindPins, 1},
		{"boards", models.SearchResult{Query: "bread", Scope: models.ScopeBoards, Boards: []models.Board{{Name: "a"}, {Name: "b"}}}, KindBoards, 2},
		{"users", models.SearchResult{Query: "bread", Scope: models.ScopeUsers}, KindUsers, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := FromSearch(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, doc.Kind)
			assert.Equal(t, tt.count, doc.Count)
			assert.Equal(t, "search:"+string(tt.in.Scope)+":bread", doc.Source)
		})
	}
}

func TestEncode(t *testing.T) {
	doc, err := New(KindProfile, "user:ana", models.UserProfile{Username: "ana", Followers: 12300})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "profile", raw["kind"])
	records := raw["records"].(map[string]interface{})
	assert.Equal(t, "ana", records["username"])
}

func TestSidecars(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "42.jpg")
	require.NoError(t, os.WriteFile(image, []byte("jpeg"), 0644))

	require.NoError(t, WriteSidecar(image, models.Pin{ID: "42", Title: "Rye"}, 4))
	side, err := ReadSidecar(image)
	require.NoError(t, err)
	assert.Equal(t, "Rye", side.Pin.Title)
	assert.Equal(t, int64(4), side.FileSize)

	orphan := filepath.Join(dir, "43.png")
	require.NoError(t, WriteSidecar(orphan, models.Pin{ID: "43"}, 0))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pins.json"), []byte("{}"), 0644))

	removed, err := CleanOrphanedSidecars(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, SidecarPath(image))
	assert.NoFileExists(t, SidecarPath(orphan))
	assert.FileExists(t, filepath.Join(dir, "pins.json"))
}
