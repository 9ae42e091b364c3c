package extract

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/logger"
)

const searchGrid = `<html><body><div role="list">
	<div data-grid-item="true">
		<div data-test-id="pin">
			<a href="/pin/1001/" aria-label="Lemon tart recipe pin page">
				<img src="https://i.example.test/236x/aa.jpg" srcset="https://i.example.test/236x/aa.jpg 1x, https://i.example.test/736x/aa.jpg 3x" alt="This may contain: a lemon tart on a plate">
			</a>
			<div data-test-id="pinTitle">Lemon tart</div>
			<div data-test-id="pinner-avatar"><a href="/bakerjo/"><img src="a.jpg"></a></div>
			<span data-test-id="pin-save-count">1.2k</span>
		</div>
	</div>
	<div data-grid-item="true">
		<div data-test-id="pin">
			<a href="https://www.pinterest.com/pin/1002/" aria-label="Sourdough starter guide pin page">
				<img src="https://i.example.test/236x/bb.jpg" alt="">
			</a>
			<div data-test-id="oneTapPromotedPin"><a rel="nofollow" target="_blank" href="https://shop.example.test/starter">Visit site</a></div>
		</div>
	</div>
	<div data-grid-item="true">
		<div data-test-id="pin">
			<a href="/pin/1003/"><img src="https://i.example.test/236x/cc.jpg" alt="This may contain: kneading dough"></a>
			<video poster="https://i.example.test/cc.jpg"></video>
			<div data-test-id="video-duration">0:42</div>
		</div>
	</div>
	<div data-grid-item="true">
		<div data-test-id="pin"><a href="/pin/1001/"><img src="dup.jpg"></a></div>
	</div>
</div></body></html>`

func parse(t *testing.T, html, pageURL string) *goquery.Document {
	t.Helper()
	doc, err := Parse(html, pageURL)
	require.NoError(t, err)
	return doc
}

func TestPinsFromSearchGrid(t *testing.T) {
	doc := parse(t, searchGrid, "https://www.pinterest.com/search/pins/?q=baking")

	pins := Pins(doc, 0)
	require.Len(t, pins, 3, "the repeated pin is dropped")

	first := pins[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "https://www.pinterest.com/pin/1001/", first.URL)
	assert.Equal(t, "Lemon tart", first.Title)
	assert.Equal(t, "https://i.example.test/736x/aa.jpg", first.ImageURL)
	assert.Equal(t, "a lemon tart on a plate", first.AltText)
	assert.Equal(t, "bakerjo", first.Pinner)
	assert.Equal(t, int64(1200), first.Saves)
	assert.False(t, first.Sponsored)
	assert.False(t, first.Video)

	promoted := pins[1]
	assert.Equal(t, "1002", promoted.ID)
	assert.Equal(t, "Sourdough starter guide", promoted.Title, "aria-label minus boilerplate")
	assert.True(t, promoted.Sponsored)
	assert.Equal(t, "https://shop.example.test/starter", promoted.Link)

	video := pins[2]
	assert.Equal(t, "kneading dough", video.Title, "img alt is the last title strategy")
	assert.True(t, video.Video)
	assert.False(t, video.Sponsored)

	sponsored := 0
	for _, p := range pins {
		if p.Sponsored {
			sponsored++
		}
	}
	assert.Equal(t, 1, sponsored)
}

func TestPinsRespectsMax(t *testing.T) {
	doc := parse(t, searchGrid, "")
	pins := Pins(doc, 2)
	require.Len(t, pins, 2)
	assert.Equal(t, "/pin/1001/", pins[0].URL, "relative without a page URL")
}

func TestPinsKeepCardsWithoutID(t *testing.T) {
	grid := `<div role="list">
		<div data-grid-item="true"><div data-test-id="pin">
			<a href="/pin/2001/"><img src="https://i.example.test/236x/dd.jpg" alt="Rye loaf"></a>
		</div></div>
		<div data-grid-item="true"><div data-test-id="pin">
			<div data-test-id="oneTapPromotedPin"><a rel="nofollow" target="_blank" href="https://shop.example.test/flour">Visit site</a></div>
			<img src="https://i.example.test/236x/ad.jpg" alt="Stone-ground flour">
		</div></div>
		<div data-grid-item="true"><div data-test-id="pin">
			<img src="https://i.example.test/236x/ad.jpg">
		</div></div>
		<div data-grid-item="true"><div data-test-id="pin"></div></div>
	</div>`
	doc := parse(t, grid, "https://www.pinterest.com/search/pins/?q=rye")

	pins := Pins(doc, 0)
	require.Len(t, pins, 2, "repeat image dropped and the empty card skipped")
	assert.Equal(t, "2001", pins[0].ID)

	ad := pins[1]
	assert.Empty(t, ad.ID)
	assert.True(t, ad.Sponsored)
	assert.Equal(t, "https://i.example.test/236x/ad.jpg", ad.ImageURL)
	assert.Equal(t, "Stone-ground flour", ad.Title)
	assert.Equal(t, "https://shop.example.test/flour", ad.Link)
	assert.Equal(t, ad.ImageURL, ad.Key())
	assert.NotEmpty(t, ad.StorageID())
}

func TestSponsoredIgnoresText(t *testing.T) {
	doc := parse(t, `<div data-test-id="pin"><a href="/pin/7/">Promoted by a friend</a><span>Sponsored</span></div>`, "")
	pins := Pins(doc, 0)
	require.Len(t, pins, 1)
	assert.False(t, pins[0].Sponsored)
}

func TestMalformedRecordsNeverPanic(t *testing.T) {
	inputs := []string{
		``,
		`<div data-test-id="pin">`,
		`<div data-test-id="pin"><a href="%%%/pin/"><img srcset=",,,"></a><span data-test-id="pin-save-count">k</span></div>`,
		`<div data-test-id="pin"><a href="/pin/9/"><img srcset=" , "></div></div></div>`,
		`<div data-test-id="board-card"><a href="::bad"></a><div data-test-id="pin-count">lots</div></div>`,
		`<div data-test-id="user-rep"><a></a></div>`,
		`<h1></h1><meta property="og:url" content="%zz">`,
	}
	for _, in := range inputs {
		doc := parse(t, in, "https://www.pinterest.com/someone/")
		assert.NotPanics(t, func() {
			Pins(doc, 0)
			Boards(doc, 0)
			Users(doc, 0)
			Profile(doc)
		}, in)
	}

	doc := parse(t, `<div data-test-id="pin"><a href="/pin/9/"><img srcset=" , "></a></div>`, "")
	pins := Pins(doc, 0)
	require.Len(t, pins, 1)
	assert.Equal(t, "9", pins[0].ID)
	assert.Empty(t, pins[0].ImageURL)
}

func TestPanickingStrategyDropsOnlyThatField(t *testing.T) {
	tl := logger.NewTestLogger()
	x := New(tl)
	doc := parse(t, `<div data-test-id="pin"><div data-test-id="pinTitle">Title</div></div>`, "")
	card := doc.Find("[data-test-id='pin']")

	got := x.first("title", card,
		func(*goquery.Selection) string { panic("broken markup") },
		text("[data-test-id='pinTitle']"),
	)
	assert.Equal(t, "Title", got)
	assert.True(t, tl.HasMessage("field strategy panicked"))

	var fields struct{ a, b string }
	x.record("pin", func() {
		fields.a = "kept"
		var s []string
		fields.b = s[3]
	})
	assert.Equal(t, "kept", fields.a)
	assert.True(t, tl.HasMessage("record partially extracted"))
}

func TestBoards(t *testing.T) {
	doc := parse(t, `<div>
		<div data-test-id="board-card">
			<a href="/bakerjo/weeknight-dinners/" aria-label="Weeknight dinners board"><img src="cover.jpg"></a>
			<div data-test-id="board-card-title">Weeknight dinners</div>
			<div data-test-id="pin-count">1,204 Pins</div>
		</div>
		<div data-test-id="board-card">
			<a href="/bakerjo/gifts/"></a>
			<h2>Gift ideas</h2>
			<svg aria-label="Secret board"></svg>
		</div>
		<div data-test-id="board-card"><span>no link</span></div>
	</div>`, "https://www.pinterest.com/bakerjo/")

	boards := Boards(doc, 0)
	require.Len(t, boards, 2)
	assert.Equal(t, "Weeknight dinners", boards[0].Name)
	assert.Equal(t, "https://www.pinterest.com/bakerjo/weeknight-dinners/", boards[0].URL)
	assert.Equal(t, "bakerjo", boards[0].Owner)
	assert.Equal(t, int64(1204), boards[0].PinCount)
	assert.False(t, boards[0].Secret)

	assert.Equal(t, "Gift ideas", boards[1].Name)
	assert.True(t, boards[1].Secret)
	assert.Zero(t, boards[1].PinCount)
}

func TestUsers(t *testing.T) {
	doc := parse(t, `<div>
		<div data-test-id="user-rep"><a href="/bakerjo/"><img src="jo.jpg" alt="Jo Baker"></a>
			<div data-test-id="user-follower-count">12.5k followers</div></div>
		<div data-test-id="user-rep"><a href="/bakerjo/">duplicate</a></div>
		<div data-test-id="user-rep"><a href="/sam/"><div data-test-id="user-rep-name">Sam</div></a></div>
	</div>`, "https://www.pinterest.com/search/users/?q=bake")

	users := Users(doc, 0)
	require.Len(t, users, 2)
	assert.Equal(t, "bakerjo", users[0].Username)
	assert.Equal(t, "Jo Baker", users[0].DisplayName)
	assert.Equal(t, int64(12500), users[0].Followers)
	assert.Equal(t, "https://www.pinterest.com/sam/", users[1].URL)
	assert.Equal(t, "Sam", users[1].DisplayName)
}

func TestProfile(t *testing.T) {
	doc := parse(t, `<html><head>
		<meta property="og:title" content="Jo Baker (bakerjo) - Profile">
		<meta name="description" content="Bread, mostly.">
	</head><body>
		<div data-test-id="profile-name"><h1>Jo Baker</h1></div>
		<div data-test-id="profile-username">@bakerjo</div>
		<div data-test-id="profile-followers-count">1,5 Mio. followers</div>
		<div data-test-id="profile-following-count">312 following</div>
		<div data-test-id="profile-monthly-views">10M+ monthly views</div>
		<div data-test-id="profile-avatar"><img src="https://i.example.test/jo.jpg"></div>
		<span data-test-id="verified-badge"></span>
	</body></html>`, "https://www.pinterest.com/bakerjo/")

	p := Profile(doc)
	assert.Equal(t, "bakerjo", p.Username)
	assert.Equal(t, "Jo Baker", p.DisplayName)
	assert.Equal(t, "Bread, mostly.", p.About, "meta description fallback")
	assert.Equal(t, int64(1500000), p.Followers)
	assert.Equal(t, int64(312), p.Following)
	assert.Equal(t, int64(10000000), p.MonthlyViews)
	assert.Equal(t, "https://i.example.test/jo.jpg", p.AvatarURL)
	assert.True(t, p.Verified)
	assert.Empty(t, p.Website)
}

func TestProfileUsernameFromURL(t *testing.T) {
	doc := parse(t, `<h1>Sam</h1>`, "https://www.pinterest.com/sam/_created/")
	p := Profile(doc)
	assert.Equal(t, "sam", p.Username)
	assert.Equal(t, "Sam", p.DisplayName)
	assert.Zero(t, p.Followers)
}

func TestBoardNames(t *testing.T) {
	doc := parse(t, `<div data-test-id="board-row"><div data-test-id="board-row-title">Recipes</div></div>
		<div data-test-id="board-row"> Travel </div>`, "")
	assert.Equal(t, []string{"Recipes", "Travel"}, New(nil).BoardNames(doc))
}
