package main

import (
	"context"

	"github.com/spf13/cobra"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/export"
	"pinrunner/pkg/models"
	"pinrunner/pkg/pinterest"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Follow users and read profiles",
}

var userFollowCmd = &cobra.Command{
	Use:   "follow <user>",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.FollowUser(ctx, args[0]))
		})
	},
}

var userUnfollowCmd = &cobra.Command{
	Use:   "unfollow <user>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.UnfollowUser(ctx, args[0]))
		})
	},
}

var userProfileCmd = &cobra.Command{
	Use:   "profile <user>",
	Short: "Read a user's profile header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			profile, out := readWithRetry(ctx, a, func() (models.UserProfile, executor.Outcome) {
				return c.GetProfile(ctx, args[0])
			})
			if !out.OK() {
				return a.report(out)
			}
			doc, err := export.New(export.KindProfile, "user:"+profile.Username, profile)
			if err != nil {
				return err
			}
			return a.emit(doc)
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userFollowCmd, userUnfollowCmd, userProfileCmd)
}
