package pinterest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"pinrunner/pkg/models"
)

var (
	pinRefPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	pinURLPattern = regexp.MustCompile(`/pin/([A-Za-z0-9_-]+)/?`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

// urls builds absolute site URLs
type urls struct {
	base string
}

func newURLs(base string) urls {
	return urls{base: strings.TrimRight(base, "/")}
}

func (u urls) home() string {
	return u.base + "/"
}

// pin accepts a pin ID or a full pin URL
func (u urls) pin(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if m := pinURLPattern.FindStringSubmatch(ref); m != nil {
		return u.base + "/pin/" + m[1] + "/", nil
	}
	if !pinRefPattern.MatchString(ref) {
		return "", fmt.Errorf("invalid pin reference %q", ref)
	}
	return u.base + "/pin/" + ref + "/", nil
}

// profile accepts a username, with or without a leading @, or a profile URL
func (u urls) profile(ref string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), "@")
	if strings.Contains(name, "://") {
		parsed, err := url.Parse(name)
		if err != nil {
			return "", fmt.Errorf("invalid profile URL %q: %w", ref, err)
		}
		name, _, _ = strings.Cut(strings.Trim(parsed.Path, "/"), "/")
	}
	if name == "" || strings.ContainsAny(name, "/?# ") {
		return "", fmt.Errorf("invalid username %q", ref)
	}
	return u.base + "/" + name + "/", nil
}

// board accepts "user/board" or a full board URL
func (u urls) board(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	path := ref
	if strings.Contains(ref, "://") {
		parsed, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid board URL %q: %w", ref, err)
		}
		path = parsed.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("board must be user/board or a board URL, got %q", ref)
	}
	return u.base + "/" + parts[0] + "/" + parts[1] + "/", nil
}

func (u urls) pinBuilder() string {
	return u.base + "/pin-creation-tool/"
}

// boardCreation is where the create menu lives; the saved tab of the
// account's profile when the username is known
func (u urls) boardCreation(username string) string {
	if username == "" {
		return u.home()
	}
	return u.base + "/" + username + "/_saved/"
}

func (u urls) search(query string, scope models.Scope) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("rs", "typed")
	return u.base + "/search/" + string(scope) + "/?" + q.Encode()
}

// absolute resolves a site-relative href
func (u urls) absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return u.base + href
	}
	return href
}

// slug is the path segment the site derives from a board name
func slug(name string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
