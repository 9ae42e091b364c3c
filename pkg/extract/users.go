package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/models"
)

const userCard = "[data-test-id='user-rep'], [data-test-id='search-user-rep'], div[data-test-id='userCard']"

var userDisplayName = []strategy{
	text("[data-test-id='user-rep-name']"),
	text("[data-test-id='user-name']"),
	attr("img", "alt"),
}

var userFollowers = []strategy{
	text("[data-test-id='user-follower-count']"),
	text("[data-test-id='user-rep-followers']"),
}

// Users reads up to max user cards
func (x *Extractor) Users(doc *goquery.Document, max int) []models.User {
	var users []models.User
	seen := make(map[string]bool)

	doc.Find(userCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		var u models.User
		x.record("user", func() {
			href := x.first("url", card, attr("a[href]", "href"))
			u.Username = firstPathSegment(href)
			if u.Username == "" {
				return
			}
			u.URL = absolute(doc, href)
			u.DisplayName = x.first("display_name", card, userDisplayName...)
			u.AvatarURL = x.first("avatar", card, attr("img", "src"))
			if n, ok := ParseCount(x.first("followers", card, userFollowers...)); ok {
				u.Followers = n
			}
		})
		if u.Username == "" || seen[u.Username] {
			return true
		}
		seen[u.Username] = true
		users = append(users, u)
		return !limit(len(users), max)
	})
	return users
}

var profileUsername = []strategy{
	func(s *goquery.Selection) string {
		return strings.TrimPrefix(collapse(s.Find("[data-test-id='profile-username']").First().Text()), "@")
	},
	func(s *goquery.Selection) string {
		v, _ := s.Find("meta[property='og:url']").First().Attr("content")
		return firstPathSegment(v)
	},
}

var profileDisplayName = []strategy{
	text("[data-test-id='profile-name'] h1"),
	text("[data-test-id='profile-name']"),
	text("h1"),
	attr("meta[property='og:title']", "content"),
}

var profileAbout = []strategy{
	text("[data-test-id='profile-about']"),
	text("[data-test-id='main-user-description-text']"),
	attr("meta[name='description']", "content"),
}

var profileWebsite = []strategy{
	attr("[data-test-id='profile-website'] a", "href"),
	text("[data-test-id='profile-website']"),
}

var profileAvatar = []strategy{
	attr("[data-test-id='profile-avatar'] img", "src"),
	attr("[data-test-id='gestalt-avatar-svg'] img", "src"),
	attr("meta[property='og:image']", "content"),
}

var profileFollowers = []strategy{
	text("[data-test-id='profile-followers-count']"),
	text("[data-test-id='follower-count']"),
}

var profileFollowing = []strategy{
	text("[data-test-id='profile-following-count']"),
	text("[data-test-id='following-count']"),
}

var profileViews = []strategy{
	text("[data-test-id='profile-monthly-views']"),
	text("[data-test-id='monthly-views']"),
}

var verifiedMarkers = []string{
	"[data-test-id='verified-badge']",
	"[data-test-id='profile-verified-badge']",
}

// Profile reads the profile header. When the username node is missing the
// first segment of the document URL is used.
func (x *Extractor) Profile(doc *goquery.Document) models.UserProfile {
	var p models.UserProfile
	root := doc.Selection
	x.record("profile", func() {
		p.Username = x.first("username", root, profileUsername...)
		if p.Username == "" && doc.Url != nil {
			p.Username = firstPathSegment(doc.Url.String())
		}
		p.DisplayName = x.first("display_name", root, profileDisplayName...)
		p.About = x.first("about", root, profileAbout...)
		p.Website = x.first("website", root, profileWebsite...)
		p.AvatarURL = x.first("avatar", root, profileAvatar...)
		if n, ok := ParseCount(x.first("followers", root, profileFollowers...)); ok {
			p.Followers = n
		}
		if n, ok := ParseCount(x.first("following", root, profileFollowing...)); ok {
			p.Following = n
		}
		if n, ok := ParseCount(x.first("monthly_views", root, profileViews...)); ok {
			p.MonthlyViews = n
		}
		p.Verified = present(root, verifiedMarkers...)
	})
	return p
}
