package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pinrunner/pkg/config"
	"pinrunner/pkg/ui"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pinrunner configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PINRUNNER_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write every option with its default value. The file is created as
'.pinrunner.yaml' in the current directory unless --config names another.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".pinrunner.yaml"
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	out := ui.Stdout()
	out.Success("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set pinterest.username and any proxy settings")
	fmt.Println("2. Store credentials with 'pinrunner auth login'")
	fmt.Println("3. Sign in with 'pinrunner login'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, flagValues(cmd))
	if err != nil {
		return err
	}

	display := *cfg
	if display.Proxy.Password != "" {
		display.Proxy.Password = "********"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, flagValues(cmd))
	if err != nil {
		return err
	}

	out := ui.Stdout()
	if cfg.Pinterest.Username == "" {
		out.Warning("pinterest.username is not set; board creation and 'board list' need it")
	}
	if cfg.Proxy.Server != "" && cfg.Proxy.Country == "" {
		out.Warning("proxy.country is not set; locale and timezone cannot be checked against the egress")
	}

	out.Success("Configuration is valid")
	out.Info("Base URL", cfg.Pinterest.BaseURL)
	out.Info("Output directory", cfg.Download.OutputDirectory)
	out.Info("Actions per minute", fmt.Sprint(cfg.RateLimit.ActionsPerMinute))
	out.Info("Log level", cfg.Logging.Level)
	return nil
}
