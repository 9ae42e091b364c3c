package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinKey(t *testing.T) {
	tests := []struct {
		name string
		pin  Pin
		want string
	}{
		{"id wins", Pin{ID: "7", URL: "https://www.pinterest.com/pin/7/", ImageURL: "a.jpg"}, "7"},
		{"url without id", Pin{URL: "https://ads.example.test/x", ImageURL: "a.jpg"}, "https://ads.example.test/x"},
		{"image only", Pin{ImageURL: "a.jpg"}, "a.jpg"},
		{"nothing", Pin{Title: "untitled"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pin.Key())
		})
	}
}

func TestPinStorageID(t *testing.T) {
	assert.Equal(t, "42", Pin{ID: "42"}.StorageID())

	ad := Pin{ImageURL: "https://i.example.test/ad.jpg"}
	id := ad.StorageID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, ad.StorageID(), "stable across calls")
	assert.NotEqual(t, id, Pin{ImageURL: "https://i.example.test/other.jpg"}.StorageID())

	assert.Empty(t, Pin{Title: "only a title"}.StorageID())
	assert.True(t, Pin{}.IsZero())
	assert.False(t, ad.IsZero())
}
