package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/models"
)

// pinCard matches one pin in a grid or a closeup
const pinCard = "[data-test-id='pin'], [data-test-id='pinWrapper'], div[data-grid-item='true']"

var pinIDPattern = regexp.MustCompile(`/pin/([A-Za-z0-9_-]+)`)

// aria-labels on pin links carry fixed wording around the title
var ariaBoilerplate = []string{" pin page", "Pin page", "Pin card", " - Pin"}

// alt text prefixes added by the site's image captioning
var altBoilerplate = []string{"This may contain: ", "This contains: "}

var (
	sponsoredMarkers = []string{
		"[data-test-id='oneTapPromotedPin']",
		"[data-test-id='pinrep-promoted']",
		"[data-test-id='promoted-pin-indicator']",
		"[data-test-id='sponsored-pin']",
	}
	videoMarkers = []string{
		"video",
		"[data-test-id='pinrep-video']",
		"[data-test-id='video-duration']",
		"[data-test-id='PinTypeIdentifier']",
	}
)

func stripAny(s string, patterns []string, prefix bool) string {
	for _, p := range patterns {
		if prefix {
			s = strings.TrimPrefix(s, p)
		} else {
			s = strings.TrimSuffix(s, p)
		}
	}
	return strings.TrimSpace(s)
}

var pinTitle = []strategy{
	text("[data-test-id='pinTitle']"),
	text("[data-test-id='pin-title']"),
	text("[data-test-id='closeup-title'] h1"),
	func(s *goquery.Selection) string {
		label, _ := s.Find("a[href*='/pin/']").First().Attr("aria-label")
		return stripAny(label, ariaBoilerplate, false)
	},
	func(s *goquery.Selection) string {
		alt, _ := s.Find("img").First().Attr("alt")
		return stripAny(alt, altBoilerplate, true)
	},
}

var pinDescription = []strategy{
	text("[data-test-id='pinDescription']"),
	text("[data-test-id='truncated-description']"),
	text("[data-test-id='closeup-description']"),
}

var pinImage = []strategy{
	func(s *goquery.Selection) string {
		v, _ := s.Find("img").First().Attr("srcset")
		return srcsetLargest(v)
	},
	attr("img", "src"),
	attr("video", "poster"),
}

var pinLink = []strategy{
	attr("[data-test-id='pin-closeup-link'] a", "href"),
	attr("a[rel~='nofollow'][target='_blank']", "href"),
}

var pinPinner = []strategy{
	func(s *goquery.Selection) string {
		href, _ := s.Find("[data-test-id='pinner-avatar'] a, [data-test-id='creator-avatar'] a, a[data-test-id='pinner-name']").First().Attr("href")
		return firstPathSegment(href)
	},
	text("[data-test-id='creator-profile-name']"),
}

var pinSaves = []strategy{
	text("[data-test-id='pin-save-count']"),
	text("[data-test-id='save-count']"),
}

// Pins reads up to max pins. Pins without an ID are kept; repeats are
// dropped by Key, and cards that yielded nothing at all are skipped.
func (x *Extractor) Pins(doc *goquery.Document, max int) []models.Pin {
	var pins []models.Pin
	seen := make(map[string]bool)

	doc.Find(pinCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		// cards nest in some layouts; read only the outermost
		if card.ParentsFiltered(pinCard).Length() > 0 {
			return true
		}
		pin := x.pin(doc, card)
		if pin.IsZero() {
			return true
		}
		if k := pin.Key(); k != "" {
			if seen[k] {
				return true
			}
			seen[k] = true
		}
		pins = append(pins, pin)
		return !limit(len(pins), max)
	})
	return pins
}

func (x *Extractor) pin(doc *goquery.Document, card *goquery.Selection) (pin models.Pin) {
	x.record("pin", func() {
		href := x.first("url", card, attr("a[href*='/pin/']", "href"), attr("", "data-pin-href"))
		if m := pinIDPattern.FindStringSubmatch(href); m != nil {
			pin.ID = m[1]
			pin.URL = absolute(doc, href)
		} else {
			pin.ID = x.first("id", card, attr("", "data-pin-id"), attr("[data-pin-id]", "data-pin-id"))
		}

		pin.Title = x.first("title", card, pinTitle...)
		pin.Description = x.first("description", card, pinDescription...)
		pin.ImageURL = x.first("image", card, pinImage...)
		pin.AltText = stripAny(x.first("alt", card, attr("img", "alt")), altBoilerplate, true)
		pin.Link = x.first("link", card, pinLink...)
		pin.Pinner = x.first("pinner", card, pinPinner...)
		if n, ok := ParseCount(x.first("saves", card, pinSaves...)); ok {
			pin.Saves = n
		}
		pin.Sponsored = present(card, sponsoredMarkers...)
		pin.Video = present(card, videoMarkers...)
	})
	return pin
}

// closeup wraps a pin's own page
const closeup = "[data-test-id='closeup-body'], [data-test-id='pin-closeup'], [data-test-id='CloseupMainPin']"

var closeupImage = []strategy{
	attr("[data-test-id='closeup-image'] img", "src"),
	attr("[data-test-id='pin-closeup-image'] img", "src"),
}

// Closeup reads the pin shown on a closeup page. The ID comes from the
// page URL, and the og: tags fill fields the body lacks.
func (x *Extractor) Closeup(doc *goquery.Document) models.Pin {
	var pin models.Pin
	root := doc.Find(closeup).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	head := doc.Find("head")

	x.record("closeup", func() {
		if doc.Url != nil {
			if m := pinIDPattern.FindStringSubmatch(doc.Url.Path); m != nil {
				pin.ID = m[1]
				pin.URL = doc.Url.String()
			}
		}
		pin.Title = x.first("title", root, pinTitle...)
		if pin.Title == "" {
			pin.Title = x.first("title", head, attr("meta[property='og:title']", "content"))
		}
		pin.Description = x.first("description", root, pinDescription...)
		pin.ImageURL = x.first("image", root, append(closeupImage, pinImage...)...)
		if pin.ImageURL == "" {
			pin.ImageURL = x.first("image", head, attr("meta[property='og:image']", "content"))
		}
		pin.AltText = stripAny(x.first("alt", root, attr("img", "alt")), altBoilerplate, true)
		pin.Link = x.first("link", root, pinLink...)
		pin.Pinner = x.first("pinner", root, pinPinner...)
		if n, ok := ParseCount(x.first("saves", root, pinSaves...)); ok {
			pin.Saves = n
		}
		pin.Sponsored = present(root, sponsoredMarkers...)
		pin.Video = present(root, videoMarkers...)
	})
	return pin
}
