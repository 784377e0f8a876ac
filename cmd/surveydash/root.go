package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"surveydash/internal/config"
)

// EnvDataDir overrides the data directory, e.g. when a launcher passes one.
const EnvDataDir = "SURVEYDASH_DATA_DIR"

type globalOpts struct {
	dataDir    string
	configPath string
	logLevel   string
	getenv     func(string) string
}

func rootCmd() *cobra.Command {
	opts := &globalOpts{getenv: os.Getenv}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Survey completion dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.dataDir == "" {
				opts.dataDir = opts.getenv(EnvDataDir)
			}
			if opts.dataDir == "" {
				opts.dataDir = "."
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (default $"+EnvDataDir+" or .)")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default <data-dir>/config.yml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(opts),
		exportCmd(opts),
		configCmd(opts),
		secretsCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
			},
		},
	)
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// userConfigPath resolves the config file, creating the data-dir copy on
// first run.
func (o *globalOpts) userConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	if err := os.MkdirAll(o.dataDir, 0o755); err != nil {
		return "", err
	}
	return config.EnsureUserConfig(o.dataDir, filepath.Join("config", "config.yml"))
}

// loadConfig reads the file, applies the environment overlay and rejects
// configs with validation errors.
func (o *globalOpts) loadConfig(path string) (config.Config, config.Validation, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, config.Validation{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	config.OverlayEnv(&cfg, o.getenv)
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		return cfg, vr, config.Validate(cfg)
	}
	return cfg, vr, nil
}
