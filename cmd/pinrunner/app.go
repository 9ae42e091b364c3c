package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"pinrunner/pkg/auth"
	"pinrunner/pkg/config"
	"pinrunner/pkg/executor"
	"pinrunner/pkg/export"
	"pinrunner/pkg/logger"
	"pinrunner/pkg/login"
	"pinrunner/pkg/metrics"
	"pinrunner/pkg/pinterest"
	"pinrunner/pkg/retry"
	"pinrunner/pkg/ui"
)

// app is the per-invocation runtime shared by every command
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Recorder
	retry   *retry.Config
	out     *ui.Printer
}

// flagValues collects the global flags the user actually set
func flagValues(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
		flags["headless"] = headless
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if retries > 0 {
		flags["retries"] = retries
	}
	if proxyServer != "" {
		flags["proxy"] = proxyServer
	}
	if cookieFile != "" {
		flags["cookie-file"] = cookieFile
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		flags["output"] = f.Value.String()
	}
	return flags
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, flagValues(cmd))
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.WithField("command", cmd.CommandPath())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.Metrics.ListenAddr, reg, log); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: rec,
		retry:   retry.FromConfig(cfg.Retry, log),
		out:     ui.Stdout(),
	}, nil
}

// credentials returns the chosen or default stored account. Missing
// credentials are not an error: cookies may still authenticate.
func (a *app) credentials(email string) login.Credentials {
	manager, err := auth.NewManager()
	if err != nil {
		a.log.WithError(err).Debug("credential manager unavailable")
		return login.Credentials{}
	}

	var acc *auth.Account
	if email != "" {
		acc, err = manager.Retrieve(email)
	} else {
		acc, err = manager.RetrieveDefault()
	}
	if err != nil {
		a.log.WithError(err).Debug("no stored credentials")
		return login.Credentials{}
	}
	return acc.Credentials()
}

func (a *app) open(ctx context.Context) (*pinterest.Client, error) {
	return pinterest.New(ctx, a.cfg, pinterest.WithLogger(a.log), pinterest.WithMetrics(a.metrics))
}

// authenticate logs the client in and fails unless it ends authenticated
func (a *app) authenticate(ctx context.Context, c *pinterest.Client) (login.Result, error) {
	res, err := c.Login(ctx, a.credentials(account))
	if err != nil {
		return res, err
	}
	if !res.Authenticated() {
		return res, fmt.Errorf("login ended in %s: %s", res.State, res.Message)
	}
	return res, nil
}

// withClient runs fn against a logged-in client and always closes it
func withClient(cmd *cobra.Command, fn func(ctx context.Context, a *app, c *pinterest.Client) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.WithoutCancel(ctx)); err != nil {
			a.log.WithError(err).Warn("failed to close client")
		}
	}()

	if _, err := a.authenticate(ctx, c); err != nil {
		return err
	}
	return fn(ctx, a, c)
}

// report prints an outcome and turns anything but success into an error
func (a *app) report(o executor.Outcome) error {
	a.out.Outcome(o)
	if o.OK() {
		return nil
	}
	if err := o.Error(); err != nil {
		return fmt.Errorf("%s %s: %w", o.Operation, o.Status, err)
	}
	return fmt.Errorf("%s %s", o.Operation, o.Status)
}

// emit writes a document to --export or stdout
func (a *app) emit(doc *export.Document) error {
	if exportPath == "" {
		return export.Encode(os.Stdout, doc)
	}
	if err := export.Write(exportPath, doc); err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Exported %d %s to %s", doc.Count, doc.Kind, exportPath))
	return nil
}

// readWithRetry repeats a read-only operation while it fails with a
// retryable kind. Mutating operations never go through here.
func readWithRetry[T any](ctx context.Context, a *app, read func() (T, executor.Outcome)) (T, executor.Outcome) {
	var value T
	var last executor.Outcome
	err := retry.Do(ctx, func() error {
		value, last = read()
		if last.Status == executor.StatusFailed {
			if err := last.Error(); err != nil {
				return err
			}
			return errors.New("operation failed")
		}
		return nil
	}, a.retry)
	if err != nil {
		a.log.WithError(err).DebugWithFields("read gave up", map[string]interface{}{"operation": last.Operation})
	}
	return value, last
}
