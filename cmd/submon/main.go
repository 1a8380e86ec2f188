// Package main is the CLI entry point for submon.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/sub_mon/internal/config"
	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cliOptions holds the persistent flags shared by every command.
type cliOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "submon",
		Short: "Subreddit monitor - blocks distracting subreddits",
		Long: `submon keeps you away from the subreddits you list.
A local daemon evaluates every reddit navigation your browser reports and
redirects blocked subreddits to a "blocked" page.

"submon lock" keeps blocking on until the end of the day, even if you
disable it. There is no unlock command.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: <data dir>/config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newStartCmd(opts),
		newStatusCmd(opts),
		newRekeyCmd(opts),
		newListCmd(opts),
		newSetCmd(opts),
		newAddCmd(opts),
		newRemoveCmd(opts),
		newEnableCmd(opts, true),
		newEnableCmd(opts, false),
		newThemeCmd(opts),
		newLockCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(opts),
	)
	return rootCmd
}

func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (domain.SettingsStore, error) {
	store, err := infra.OpenSettingsStore(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	return store, nil
}

// createLogger builds the daemon logger writing to the configured files.
func createLogger(cfg config.LogConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.File != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.File), 0700)
		zcfg.OutputPaths = []string{cfg.File}
	}
	if cfg.ErrorFile != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.ErrorFile), 0700)
		zcfg.ErrorOutputPaths = []string{cfg.ErrorFile}
	}
	if cfg.Level != "" {
		if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
			zcfg.Level = level
		}
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// createCLILogger logs warnings and errors of one-shot commands to stderr.
func createCLILogger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
