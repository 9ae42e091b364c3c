package pinterest

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/locator"
	"pinrunner/pkg/models"
)

// Search runs a query in one scope and reads up to max results. An empty
// scope searches pins. A query with no results succeeds with none.
func (c *Client) Search(ctx context.Context, query string, scope models.Scope, max int) (models.SearchResult, executor.Outcome) {
	if scope == "" {
		scope = models.ScopePins
	}
	query = strings.TrimSpace(query)
	res := models.SearchResult{Query: query, Scope: scope}

	out := c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:    "search",
		URL:     c.urls.search(query, scope),
		Timeout: c.listingBudget(2),
		Validate: func() error {
			var problems []error
			if query == "" {
				problems = append(problems, errors.New("search query is required"))
			}
			if !scope.Valid() {
				problems = append(problems, errors.New("scope must be pins, boards or users"))
			}
			return validation(problems)
		},
		Steps: []executor.Step{
			executor.Optional(executor.Do("wait for results", func(r *executor.Run) error {
				_, err := r.Resolve(resultsOrEmpty)
				return err
			})),
			executor.Do("collect results", func(r *executor.Run) error {
				var err error
				switch scope {
				case models.ScopeBoards:
					res.Boards, err = collect(r, max, func(doc *goquery.Document) []models.Board {
						return c.extract.Boards(doc, 0)
					}, func(b models.Board) string { return b.URL })
				case models.ScopeUsers:
					res.Users, err = collect(r, max, func(doc *goquery.Document) []models.User {
						return c.extract.Users(doc, 0)
					}, func(u models.User) string { return u.Username })
				default:
					res.Pins, err = collect(r, max, func(doc *goquery.Document) []models.Pin {
						return c.extract.Pins(doc, 0)
					}, models.Pin.Key)
				}
				return err
			}),
		},
	})
	return res, out
}

var resultsOrEmpty = locator.Join("search results", resultGrid, emptyResults)
