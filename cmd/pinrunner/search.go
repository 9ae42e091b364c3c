package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pinrunner/pkg/executor"
	"pinrunner/pkg/export"
	"pinrunner/pkg/models"
	"pinrunner/pkg/pinterest"
)

var (
	searchScope string
	searchMax   int
	shotURL     string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search pins, boards or users",
	Example: `  pinrunner search "rye bread"
  pinrunner search bread --scope boards --max 10 --export boards.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			result, out := readWithRetry(ctx, a, func() (models.SearchResult, executor.Outcome) {
				return c.Search(ctx, args[0], models.Scope(searchScope), searchMax)
			})
			if !out.OK() {
				return a.report(out)
			}
			doc, err := export.FromSearch(result)
			if err != nil {
				return err
			}
			return a.emit(doc)
		})
	},
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot <file.png>",
	Short: "Capture the signed-in page as a PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			if shotURL != "" {
				if err := c.Session().Page.Navigate(ctx, shotURL); err != nil {
					return fmt.Errorf("failed to open %s: %w", shotURL, err)
				}
			}
			if err := c.Screenshot(ctx, args[0]); err != nil {
				return err
			}
			a.out.Success("Screenshot saved: " + args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, screenshotCmd)

	searchCmd.Flags().StringVar(&searchScope, "scope", string(models.ScopePins), "pins, boards or users")
	searchCmd.Flags().IntVar(&searchMax, "max", 25, "most results to return")
	screenshotCmd.Flags().StringVar(&shotURL, "url", "", "page to open before capturing")
}
