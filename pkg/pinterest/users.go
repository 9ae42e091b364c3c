package pinterest

import (
	"context"
	"strings"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/models"
)

// FollowUser follows an account. Following a followed account clicks nothing.
func (c *Client) FollowUser(ctx context.Context, user string) executor.Outcome {
	profileURL, err := c.urls.profile(user)
	return c.exec.Execute(ctx, c.sess, c.toggle("follow_user", profileURL, userFollow, userUnfollow, ref(err, nil)))
}

// UnfollowUser stops following an account
func (c *Client) UnfollowUser(ctx context.Context, user string) executor.Outcome {
	profileURL, err := c.urls.profile(user)
	return c.exec.Execute(ctx, c.sess, c.toggle("unfollow_user", profileURL, userUnfollow, userFollow, ref(err, nil)))
}

// GetProfile reads an account's profile header. A page without a header
// fails with ElementNotFound.
func (c *Client) GetProfile(ctx context.Context, user string) (models.UserProfile, executor.Outcome) {
	profileURL, err := c.urls.profile(user)
	var profile models.UserProfile

	out := c.exec.Execute(ctx, c.sess, &executor.Operation{
		Name:     "profile",
		URL:      profileURL,
		Timeout:  c.budget(c.cfg.Timeouts.Element, 2),
		Validate: ref(err, nil),
		Steps: []executor.Step{
			executor.Do("wait for profile header", func(r *executor.Run) error {
				_, err := r.Resolve(profileHeader)
				return err
			}),
			executor.Do("read profile", func(r *executor.Run) error {
				doc, err := document(r)
				if err != nil {
					return err
				}
				profile = c.extract.Profile(doc)
				if profile.Username == "" {
					profile.Username = strings.TrimPrefix(strings.TrimSpace(user), "@")
				}
				r.SetID(profile.Username)
				return nil
			}),
		},
	})
	return profile, out
}
