package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/models"
)

const boardCard = "[data-test-id='board-card'], [data-test-id='boardCard'], div[data-test-id='pwt-board-rep']"

var boardName = []strategy{
	text("[data-test-id='board-card-title']"),
	text("[data-test-id='board-name']"),
	text("h2"),
	text("h3"),
	attr("a", "aria-label"),
}

var boardCount = []strategy{
	text("[data-test-id='pin-count']"),
	text("[data-test-id='board-pin-count']"),
}

var boardCover = []strategy{
	func(s *goquery.Selection) string {
		v, _ := s.Find("img").First().Attr("srcset")
		return srcsetLargest(v)
	},
	attr("img", "src"),
}

var secretMarkers = []string{
	"[data-test-id='secret-board-icon']",
	"[data-test-id='board-secret-icon']",
	"svg[aria-label='Secret board']",
}

// Boards reads up to max boards; cards without a link are skipped
func (x *Extractor) Boards(doc *goquery.Document, max int) []models.Board {
	var boards []models.Board
	seen := make(map[string]bool)

	doc.Find(boardCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if card.ParentsFiltered(boardCard).Length() > 0 {
			return true
		}
		var b models.Board
		x.record("board", func() {
			href := x.first("url", card, attr("a[href]", "href"))
			if href == "" {
				return
			}
			b.URL = absolute(doc, href)
			b.Owner = firstPathSegment(href)
			b.Name = x.first("name", card, boardName...)
			b.Cover = x.first("cover", card, boardCover...)
			if n, ok := ParseCount(x.first("pin_count", card, boardCount...)); ok {
				b.PinCount = n
			}
			b.Secret = present(card, secretMarkers...)
		})
		if b.URL == "" || seen[b.URL] {
			return true
		}
		seen[b.URL] = true
		boards = append(boards, b)
		return !limit(len(boards), max)
	})
	return boards
}

// BoardNames lists board names offered by an open board picker
func (x *Extractor) BoardNames(doc *goquery.Document) []string {
	var names []string
	doc.Find("[data-test-id='board-row'], [data-test-id='boardWithoutSection']").Each(func(_ int, row *goquery.Selection) {
		if name := x.first("board_row", row, text("[data-test-id='board-row-title']"), func(s *goquery.Selection) string {
			return collapse(s.Text())
		}); name != "" {
			names = append(names, strings.TrimSpace(name))
		}
	})
	return names
}
