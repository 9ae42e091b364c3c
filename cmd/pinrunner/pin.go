package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pinrunner/internal/downloader"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/export"
	"pinrunner/pkg/media"
	"pinrunner/pkg/models"
	"pinrunner/pkg/pinterest"
	"pinrunner/pkg/ratelimit"
	"pinrunner/pkg/storage"
	"pinrunner/pkg/ui"
)

var (
	pinIn        pinterest.PinInput
	repinBoard   string
	downloadFrom string
	downloadBrd  string
	downloadMax  int
	downloadDir  string
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Create, save, react to and download pins",
}

var pinCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a new pin",
	Example: `  pinrunner pin create --image ./loaf.jpg --title "Rye loaf" --board Bread
  pinrunner pin create --image-url https://example.com/loaf.jpg --link https://example.com/recipe`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.CreatePin(ctx, pinIn))
		})
	},
}

var pinRepinCmd = &cobra.Command{
	Use:   "repin <pin>",
	Short: "Save an existing pin to a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.Repin(ctx, pinterest.RepinInput{Pin: args[0], Board: repinBoard}))
		})
	},
}

var pinLikeCmd = &cobra.Command{
	Use:   "like <pin>",
	Short: "React to a pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.LikePin(ctx, args[0]))
		})
	},
}

var pinUnlikeCmd = &cobra.Command{
	Use:   "unlike <pin>",
	Short: "Remove a reaction from a pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.UnlikePin(ctx, args[0]))
		})
	},
}

var pinCommentCmd = &cobra.Command{
	Use:   "comment <pin> <text>",
	Short: "Comment on a pin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.Comment(ctx, args[0], args[1]))
		})
	},
}

var pinDeleteCmd = &cobra.Command{
	Use:   "delete <pin>",
	Short: "Delete one of your pins",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			return a.report(c.DeletePin(ctx, args[0]))
		})
	},
}

var pinGetCmd = &cobra.Command{
	Use:   "get <pin>",
	Short: "Read a pin's closeup page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
			pin, out := readWithRetry(ctx, a, func() (models.Pin, executor.Outcome) {
				return c.GetPin(ctx, args[0])
			})
			if !out.OK() {
				return a.report(out)
			}
			doc, err := export.New(export.KindPin, "pin:"+args[0], pin)
			if err != nil {
				return err
			}
			return a.emit(doc)
		})
	},
}

var pinDownloadCmd = &cobra.Command{
	Use:   "download [pin...]",
	Short: "Save pin images to the output directory",
	Long: `Download pin images concurrently. Pins come from the arguments, from a
board listing (--board) or from an earlier export (--from). Images already in
the output directory are skipped; each saved image gets a .json sidecar with
its pin's metadata.`,
	Example: `  pinrunner pin download 123456 654321
  pinrunner pin download --board ana/bread --max 50
  pinrunner pin download --from pins.json --output ./images`,
	RunE: runPinDownload,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinCreateCmd, pinRepinCmd, pinLikeCmd, pinUnlikeCmd, pinCommentCmd, pinDeleteCmd, pinGetCmd, pinDownloadCmd)

	f := pinCreateCmd.Flags()
	f.StringVar(&pinIn.ImagePath, "image", "", "local image file")
	f.StringVar(&pinIn.ImageURL, "image-url", "", "remote image to stage and upload")
	f.StringVar(&pinIn.Title, "title", "", "pin title")
	f.StringVar(&pinIn.Description, "description", "", "pin description")
	f.StringVar(&pinIn.Link, "link", "", "destination link")
	f.StringVar(&pinIn.AltText, "alt-text", "", "image alt text")
	f.StringVar(&pinIn.Board, "board", "", "board name (default board when empty or not found)")

	pinRepinCmd.Flags().StringVar(&repinBoard, "board", "", "board name (default save target when empty or not found)")

	d := pinDownloadCmd.Flags()
	d.StringVar(&downloadFrom, "from", "", "export file to read pins from")
	d.StringVar(&downloadBrd, "board", "", "board to list pins from (user/board)")
	d.IntVar(&downloadMax, "max", 25, "most pins to read from a board")
	d.StringVarP(&downloadDir, "output", "o", "", "output directory (overrides config)")
}

func runPinDownload(cmd *cobra.Command, args []string) error {
	if downloadFrom == "" && downloadBrd == "" && len(args) == 0 {
		return errors.New("give pin references, --board or --from")
	}

	if downloadFrom != "" && downloadBrd == "" && len(args) == 0 {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		doc, err := export.Read(downloadFrom)
		if err != nil {
			return err
		}
		pins, err := doc.Pins()
		if err != nil {
			return err
		}
		return downloadPins(cmd.Context(), a, pins, standaloneFetcher(a))
	}

	return withClient(cmd, func(ctx context.Context, a *app, c *pinterest.Client) error {
		var pins []models.Pin
		if downloadFrom != "" {
			doc, err := export.Read(downloadFrom)
			if err != nil {
				return err
			}
			fromFile, err := doc.Pins()
			if err != nil {
				return err
			}
			pins = append(pins, fromFile...)
		}
		if downloadBrd != "" {
			listed, out := readWithRetry(ctx, a, func() ([]models.Pin, executor.Outcome) {
				return c.GetBoardPins(ctx, downloadBrd, downloadMax)
			})
			if !out.OK() {
				return a.report(out)
			}
			pins = append(pins, listed...)
		}
		for _, ref := range args {
			pin, out := readWithRetry(ctx, a, func() (models.Pin, executor.Outcome) {
				return c.GetPin(ctx, ref)
			})
			if !out.OK() {
				a.out.Outcome(out)
				continue
			}
			pins = append(pins, pin)
		}
		return downloadPins(ctx, a, pins, c.Fetcher())
	})
}

// standaloneFetcher builds a fetcher for runs that never open a browser
func standaloneFetcher(a *app) *media.Fetcher {
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if a.cfg.RateLimit.DownloadsPerMinute > 0 {
		limiter = ratelimit.PerMinute(a.cfg.RateLimit.DownloadsPerMinute, 1)
	}
	return media.New(a.cfg.Download, a.log, media.WithLimiter(limiter), media.WithMetrics(a.metrics))
}

func downloadPins(ctx context.Context, a *app, pins []models.Pin, fetcher downloader.ImageFetcher) error {
	pins = uniquePins(pins)
	if len(pins) == 0 {
		a.out.Warning("No pins to download")
		return nil
	}

	store, err := storage.NewManager(a.cfg.Download.OutputDirectory)
	if err != nil {
		return err
	}
	a.out.Info("Output", store.Dir())

	pool := downloader.NewWorkerPool(ctx, a.cfg.Download.ConcurrentDownloads, fetcher, store, a.log, downloader.WithMetrics(a.metrics))
	pool.Start()
	go func() {
		defer pool.Stop()
		for _, pin := range pins {
			if err := pool.Submit(downloader.Job{Pin: pin}); err != nil {
				return
			}
		}
	}()

	progress := ui.NewProgress(len(pins))
	var failures []error
	for r := range pool.Results() {
		switch {
		case r.Err != nil:
			progress.Failed++
			failures = append(failures, fmt.Errorf("pin %s: %w", r.Job.Pin.Key(), r.Err))
		case r.Skipped:
			progress.Skipped++
		default:
			progress.Saved++
			if err := export.WriteSidecar(r.Path, r.Job.Pin, int64(r.Size)); err != nil {
				a.log.WithError(err).Warn("failed to write image metadata")
			}
		}
		a.out.Progress(progress)
	}

	if progress.Saved > 0 {
		a.out.Success(fmt.Sprintf("Saved %d images (%.1f/min)", progress.Saved, progress.Rate()))
	}
	if len(failures) > 0 {
		for _, err := range failures {
			a.out.Error("Download failed", err)
		}
		return fmt.Errorf("%d of %d downloads failed", len(failures), len(pins))
	}
	return ctx.Err()
}

func uniquePins(pins []models.Pin) []models.Pin {
	seen := make(map[string]bool, len(pins))
	out := pins[:0]
	for _, p := range pins {
		k := p.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}
