package main

import (
	"context"

	"github.com/spf13/cobra"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/export"
	"pinrunner/pkg/models"
	"pinrunner/pkg/pinterest"
)

var (
	boardIn pinterest.BoardInput
	listMax int
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Create, follow and list boards",
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a board on your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := boardIn
		in.Name = args[0]
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.CreateBoard(ctx, in))
		})
	},
}

var boardFollowCmd = &cobra.Command{
	Use:   "follow <user/board>",
	Short: "Follow a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.FollowBoard(ctx, args[0]))
		})
	},
}

var boardUnfollowCmd = &cobra.Command{
	Use:   "unfollow <user/board>",
	Short: "Stop following a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.UnfollowBoard(ctx, args[0]))
		})
	},
}

var boardPinsCmd = &cobra.Command{
	Use:   "pins <user/board>",
	Short: "List pins on a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			pins, out := readWithRetry(ctx, a, func() ([]models.Pin, executor.Outcome) {
				return c.GetBoardPins(ctx, args[0], listMax)
			})
			if !out.OK() {
				return a.report(out)
			}
			doc, err := export.New(export.KindPins, "board:"+args[0], pins)
			if err != nil {
				return err
			}
			return a.emit(doc)
		})
	},
}

var boardListCmd = &cobra.Command{
	Use:   "list [user]",
	Short: "List a user's boards (yours by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			user := a.cfg.Pinterest.Username
			if len(args) > 0 {
				user = args[0]
			}
			boards, out := readWithRetry(ctx, a, func() ([]models.Board, executor.Outcome) {
				return c.GetBoards(ctx, user, listMax)
			})
			if !out.OK() {
				return a.report(out)
			}
			doc, err := export.New(export.KindBoards, "user:"+user, boards)
			if err != nil {
				return err
			}
			return a.emit(doc)
		})
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.AddCommand(boardCreateCmd, boardFollowCmd, boardUnfollowCmd, boardPinsCmd, boardListCmd)

	boardCreateCmd.Flags().StringVar(&boardIn.Description, "description", "", "board description")
	boardCreateCmd.Flags().BoolVar(&boardIn.Secret, "secret", false, "make the board secret")
	boardPinsCmd.Flags().IntVar(&listMax, "max", 25, "most pins to return")
	boardListCmd.Flags().IntVar(&listMax, "max", 25, "most boards to return")
}
