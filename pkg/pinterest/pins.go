package pinterest

import (
	"context"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/models"
)

// CreatePin uploads an image and publishes it with the given fields. A
// remote image is staged to a temp file that is removed after the
// operation, whatever its outcome. The outcome's ID is the new pin's URL.
func (c *Client) CreatePin(ctx context.Context, in PinInput) executor.Outcome {
	wait := c.cfg.Timeouts.CreatePin
	imagePath := in.ImagePath

	var steps []executor.Step
	if in.ImageURL != "" {
		steps = append(steps, executor.Do("stage image", func(r *executor.Run) error {
			path, cleanup, err := c.fetcher.Stage(r.Context(), in.ImageURL)
			if err != nil {
				return err
			}
			r.Defer(func(context.Context) error { return cleanup() })
			imagePath = path
			return nil
		}))
	}
	steps = append(steps, executor.Upload(imageInput, func() string { return imagePath }))
	if in.Title != "" {
		steps = append(steps, executor.Fill(titleInput, in.Title))
	}
	if in.Description != "" {
		steps = append(steps, executor.Fill(descriptionInput, in.Description))
	}
	if in.Link != "" {
		steps = append(steps, executor.Fill(linkInput, in.Link))
	}
	if in.AltText != "" {
		steps = append(steps,
			executor.Optional(executor.Click(altTextToggle)),
			executor.Fill(altTextInput, in.AltText),
		)
	}
	if in.Board != "" {
		steps = append(steps, executor.Choose("board",
			executor.Leg{Name: "named", Steps: pickBoard(in.Board)},
			executor.Leg{Name: "default", Steps: []executor.Step{
				executor.Do("keep preselected board", func(*executor.Run) error { return nil }),
			}},
		))
	}
	steps = append(steps, executor.Click(publishButton))

	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        "create_pin",
		URL:         c.urls.pinBuilder(),
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, len(steps), in.Title, in.Description, in.Link, in.AltText),
		Validate:    in.Validate,
		Steps:       steps,
		Confirm:     executor.Custom("published pin link", c.publishedPin),
	})
}

// publishedPin finds the new pin either in the page URL, when the builder
// redirects to it, or in the builder's "see it now" link
func (c *Client) publishedPin(r *executor.Run) (bool, error) {
	if pinURLPattern.MatchString(r.Page.URL()) {
		r.SetID(r.Page.URL())
		return true, nil
	}
	el, _, ok := publishedLink.Present(r.Context(), r.Page)
	if !ok {
		return false, nil
	}
	href, has, err := el.Attribute(r.Context(), "href")
	if err != nil {
		return false, err
	}
	if !has || !pinURLPattern.MatchString(href) {
		return false, nil
	}
	r.SetID(c.urls.absolute(href))
	return true, nil
}

func pickBoard(name string) []executor.Step {
	return []executor.Step{
		executor.Click(boardDropdown),
		executor.Do("pick board "+name, func(r *executor.Run) error {
			return r.ClickText(boardRow, name)
		}),
	}
}

// RepinInput saves an existing pin to a board
type RepinInput struct {
	Pin string
	// Board falls back to the default save target when empty or unknown
	Board string
}

// Repin saves a pin. A named board that cannot be found falls back to the
// default board; the path records which leg ran.
func (c *Client) Repin(ctx context.Context, in RepinInput) executor.Outcome {
	pinURL, err := c.urls.pin(in.Pin)
	wait := c.cfg.Timeouts.Toggle

	save := executor.Click(saveButton)
	steps := []executor.Step{save}
	if in.Board != "" {
		steps = []executor.Step{executor.Choose("board",
			executor.Leg{Name: "named", Steps: append(pickBoard(in.Board), save)},
			executor.Leg{Name: "default", Steps: []executor.Step{save}},
		)}
	}

	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        "repin",
		URL:         pinURL,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, 4),
		Validate:    ref(err, nil),
		Steps:       steps,
		Confirm:     executor.MarkerAppears(savedMarker),
	})
}

// LikePin reacts to a pin. Liking a liked pin clicks nothing.
func (c *Client) LikePin(ctx context.Context, pin string) executor.Outcome {
	return c.setLiked(ctx, "like_pin", pin, true)
}

// UnlikePin removes the reaction. Unliking an unliked pin clicks nothing.
func (c *Client) UnlikePin(ctx context.Context, pin string) executor.Outcome {
	return c.setLiked(ctx, "unlike_pin", pin, false)
}

func (c *Client) setLiked(ctx context.Context, name, pin string, liked bool) executor.Outcome {
	pinURL, err := c.urls.pin(pin)
	want := "false"
	if liked {
		want = "true"
	}
	wait := c.cfg.Timeouts.Toggle

	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        name,
		URL:         pinURL,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, 1),
		Validate:    ref(err, nil),
		Steps: []executor.Step{
			executor.Do("toggle like", func(r *executor.Run) error {
				el, err := r.Resolve(likeButton)
				if err != nil {
					return err
				}
				pressed, _, err := el.Attribute(r.Context(), "aria-pressed")
				if err != nil {
					return err
				}
				if pressed == want {
					r.Log().InfoWithFields("already in requested state", map[string]interface{}{"aria-pressed": pressed})
					return nil
				}
				return r.Click(el)
			}),
		},
		Confirm: executor.AttributeEquals(likeButton, "aria-pressed", want),
	})
}

// Comment posts text under a pin. The submit button is preferred; Enter in
// the comment box is the fallback.
func (c *Client) Comment(ctx context.Context, pin, text string) executor.Outcome {
	pinURL, err := c.urls.pin(pin)
	wait := c.cfg.Timeouts.Comment

	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        "comment",
		URL:         pinURL,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, 3, text),
		Validate:    ref(err, func() error { return validateComment(text) }),
		Steps: []executor.Step{
			executor.Optional(executor.Click(commentOpen)),
			executor.Fill(commentInput, text),
			executor.Choose("submit",
				executor.Leg{Name: "button", Steps: []executor.Step{executor.Click(commentSubmit)}},
				executor.Leg{Name: "enter", Steps: []executor.Step{
					executor.Do("press enter", func(r *executor.Run) error {
						if err := r.Pause(); err != nil {
							return err
						}
						return r.Page.PressEnter(r.Context())
					}),
				}},
			),
		},
		Confirm: executor.TextAppears(commentText, text),
	})
}

// DeletePin removes one of the account's pins. The delete item is taken
// from the options menu, or from the edit form when the menu lacks it. A
// confirmation dialog is clicked when one appears.
func (c *Client) DeletePin(ctx context.Context, pin string) executor.Outcome {
	pinURL, err := c.urls.pin(pin)
	wait := c.cfg.Timeouts.Toggle

	return c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:        "delete_pin",
		URL:         pinURL,
		Mutating:    true,
		RequireAuth: true,
		Wait:        wait,
		Timeout:     c.budget(wait, 5),
		Validate:    ref(err, nil),
		Steps: []executor.Step{
			executor.Click(pinOptions),
			executor.Choose("delete",
				executor.Leg{Name: "menu", Steps: []executor.Step{executor.Click(deletePinItem)}},
				executor.Leg{Name: "edit form", Steps: []executor.Step{
					executor.Click(editPinItem),
					executor.Click(deletePinItem),
				}},
			),
			executor.Optional(executor.Click(confirmDelete)),
		},
		Confirm: executor.URLLeaves(pinURL),
	})
}

// GetPin reads a pin's closeup page
func (c *Client) GetPin(ctx context.Context, pin string) (models.Pin, executor.Outcome) {
	pinURL, err := c.urls.pin(pin)
	var got models.Pin

	out := c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:     "get_pin",
		URL:      pinURL,
		Timeout:  c.budget(c.cfg.Timeouts.Element, 1),
		Validate: ref(err, nil),
		Steps: []executor.Step{
			executor.Do("read pin", func(r *executor.Run) error {
				doc, err := document(r)
				if err != nil {
					return err
				}
				got = c.extract.Closeup(doc)
				if got.ID == "" {
					got.ID = pinID(pinURL)
					got.URL = pinURL
				}
				r.SetID(got.URL)
				return nil
			}),
		},
	})
	return got, out
}

func pinID(u string) string {
	if m := pinURLPattern.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}
