package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"pinrunner/pkg/ui"
)

var (
	// Version information
	version   = "0.4.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	headless    bool
	metricsAddr string
	retries     int
	proxyServer string
	cookieFile  string
	account     string
	exportPath  string
)

var rootCmd = &cobra.Command{
	Use:   "pinrunner",
	Short: "Drive a Pinterest account through a stealth browser",
	Long: `pinrunner automates a Pinterest account through a real Chromium browser.

Every run uses one consistent fingerprint, paces its input like a person and
keeps the session's cookies between runs. Mutating commands report whether
the site visibly confirmed the change; a snapshot of the page is written
whenever it did not.

Credentials are read from:
  - System keychain (when available)
  - Encrypted file in the config directory
  - PINRUNNER_EMAIL and PINRUNNER_PASSWORD`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.NewPrinter(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.pinrunner.yaml or ~/.pinrunner.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser without a window")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 0, "attempts for read-only commands (0 keeps the configured value)")
	rootCmd.PersistentFlags().StringVar(&proxyServer, "proxy", "", "proxy server URL")
	rootCmd.PersistentFlags().StringVar(&cookieFile, "cookie-file", "", "local cookie cache path")
	rootCmd.PersistentFlags().StringVarP(&account, "account", "a", "", "email of the stored account to log in with")
	rootCmd.PersistentFlags().StringVar(&exportPath, "export", "", "write listings to this JSON file instead of stdout")

	rootCmd.SetVersionTemplate(`pinrunner {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.SetHelpTemplate(ui.Logo + "\n" + rootCmd.HelpTemplate())

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
