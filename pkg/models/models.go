// Package models holds the records extracted from rendered pages.
// Fields that could not be read stay at their zero value.
package models

import "github.com/google/uuid"

// Pin is one pin card or closeup
type Pin struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	AltText     string `json:"alt_text,omitempty"`
	Link        string `json:"link,omitempty"`
	Pinner      string `json:"pinner,omitempty"`
	Saves       int64  `json:"saves,omitempty"`
	Sponsored   bool   `json:"sponsored"`
	Video       bool   `json:"video"`
}

// Key identifies a pin for de-duplication: the ID when the card had one,
// otherwise its URL or image. Empty when none of them were read.
func (p Pin) Key() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.URL != "":
		return p.URL
	default:
		return p.ImageURL
	}
}

// StorageID names the pin's files on disk. Pins without an ID get a name
// derived from their key so repeated downloads land on the same file.
func (p Pin) StorageID() string {
	if p.ID != "" {
		return p.ID
	}
	if k := p.Key(); k != "" {
		return "x" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(k)).String()[:18]
	}
	return ""
}

// IsZero reports whether nothing at all was read for the pin
func (p Pin) IsZero() bool { return p == Pin{} }

// Board is one board card
type Board struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Owner    string `json:"owner,omitempty"`
	Cover    string `json:"cover,omitempty"`
	PinCount int64  `json:"pin_count,omitempty"`
	Secret   bool   `json:"secret"`
}

// User is one user card from a search listing
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	URL         string `json:"url"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Followers   int64  `json:"followers,omitempty"`
}

// UserProfile is the header of a profile page
type UserProfile struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	About        string `json:"about,omitempty"`
	Website      string `json:"website,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Followers    int64  `json:"followers,omitempty"`
	Following    int64  `json:"following,omitempty"`
	MonthlyViews int64  `json:"monthly_views,omitempty"`
	Verified     bool   `json:"verified"`
}

// Scope selects what a search lists
type Scope string

const (
	ScopePins   Scope = "pins"
	ScopeBoards Scope = "boards"
	ScopeUsers  Scope = "users"
)

// Valid reports whether s is a known scope
func (s Scope) Valid() bool {
	switch s {
	case ScopePins, ScopeBoards, ScopeUsers:
		return true
	}
	return false
}

// SearchResult is one search listing; only the slice for Scope is filled
type SearchResult struct {
	Query  string  `json:"query"`
	Scope  Scope   `json:"scope"`
	Pins   []Pin   `json:"pins,omitempty"`
	Boards []Board `json:"boards,omitempty"`
	Users  []User  `json:"users,omitempty"`
}

// Len is the number of records for the result's scope
func (r SearchResult) Len() int {
	switch r.Scope {
	case ScopeBoards:
		return len(r.Boards)
	case ScopeUsers:
		return len(r.Users)
	default:
		return len(r.Pins)
	}
}
