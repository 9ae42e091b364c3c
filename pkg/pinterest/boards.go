package pinterest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/models"
)

// CreateBoard makes a board on the account's profile. The outcome's ID is
// the new board's URL.
func (c *Client) CreateBoard(ctx context.Context, in BoardInput) executor.Outcome {
	wait := c.cfg.Timeouts.Element
	start := c.urls.boardCreation(c.cfg.Pinterest.Username)

	steps := []executor.Step{
		executor.Click(createMenu),
		executor.Click(createBoardItem),
		executor.Fill(boardNameInput, in.Name),
	}
	if in.Description != "" {
		steps = append(steps, executor.Optional(executor.Fill(boardDescriptionInput, in.Description)))
	}
	if in.Secret {
		steps = append(steps, executor.Do("mark secret", func(r *executor.Run) error {
			el, err := r.Resolve(secretToggle)
			if err != nil {
				return err
			}
			if _, checked, err := el.Attribute(r.Context(), "checked"); err == nil && checked {
				return nil
			}
			return r.Click(el)
		}))
	}
	steps = append(steps, executor.Click(createBoardSubmit))

	want := "/" + slug(in.Name) + "/"
	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        "create_board",
		URL:         start,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, len(steps), in.Name, in.Description),
		Validate:    in.Validate,
		Steps:       steps,
		Confirm: executor.Custom("board page", func(r *executor.Run) (bool, error) {
			current := r.Page.URL()
			if strings.Contains(current, want) {
				r.SetID(current)
				return true, nil
			}
			if strings.TrimRight(current, "/") == strings.TrimRight(start, "/") {
				return false, nil
			}
			el, _, ok := boardTitle.Present(r.Context(), r.Page)
			if !ok {
				return false, nil
			}
			title, err := el.Text(r.Context())
			if err != nil {
				return false, err
			}
			if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(in.Name)) {
				r.SetID(current)
				return true, nil
			}
			return false, nil
		}),
	})
}

// FollowBoard follows a board given as "user/board" or a board URL.
// Following a followed board clicks nothing.
func (c *Client) FollowBoard(ctx context.Context, board string) executor.Outcome {
	boardURL, err := c.urls.board(board)
	return c.exec.Execute(ctx, c.sess, c.toggle("follow_board", boardURL, boardFollow, boardUnfollow, ref(err, nil)))
}

// UnfollowBoard stops following a board
func (c *Client) UnfollowBoard(ctx context.Context, board string) executor.Outcome {
	boardURL, err := c.urls.board(board)
	return c.exec.Execute(ctx, c.sess, c.toggle("unfollow_board", boardURL, boardUnfollow, boardFollow, ref(err, nil)))
}

// GetBoardPins reads up to max pins from a board, scrolling a fixed number
// of passes. It never scrolls to the end of the board.
func (c *Client) GetBoardPins(ctx context.Context, board string, max int) ([]models.Pin, executor.Outcome) {
	boardURL, err := c.urls.board(board)
	var pins []models.Pin

	out := c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:     "board_pins",
		URL:      boardURL,
		Timeout:  c.listingBudget(2),
		Validate: ref(err, nil),
		Steps: []executor.Step{
			executor.Optional(executor.Do("wait for pins", func(r *executor.Run) error {
				_, err := r.Resolve(pinGrid)
				return err
			})),
			executor.Do("collect pins", func(r *executor.Run) error {
				got, err := collect(r, max, func(doc *goquery.Document) []models.Pin {
					return c.extract.Pins(doc, 0)
				}, models.Pin.Key)
				pins = got
				return err
			}),
		},
	})
	return pins, out
}

// GetBoards lists the boards on a user's profile
func (c *Client) GetBoards(ctx context.Context, user string, max int) ([]models.Board, executor.Outcome) {
	profileURL, err := c.urls.profile(user)
	var boards []models.Board

	out := c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:     "boards",
		URL:      strings.TrimSuffix(profileURL, "/") + "/_saved/",
		Timeout:  c.listingBudget(1),
		Validate: ref(err, nil),
		Steps: []executor.Step{
			executor.Do("collect boards", func(r *executor.Run) error {
				got, err := collect(r, max, func(doc *goquery.Document) []models.Board {
					return c.extract.Boards(doc, 0)
				}, func(b models.Board) string { return b.URL })
				boards = got
				return err
			}),
		},
	})
	return boards, out
}
