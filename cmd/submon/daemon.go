package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/api"
	"github.com/eliteGoblin/focusd/sub_mon/internal/config"
	"github.com/eliteGoblin/focusd/sub_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/infra"
	"github.com/eliteGoblin/focusd/sub_mon/internal/usecase"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground",
		Long: `Runs the blocking daemon in the foreground. It serves the HTTP API the
browser talks to and re-checks open reddit tabs whenever settings change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *cliOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open settings store", zap.Error(err))
		return err
	}
	defer store.Close()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	tabs := infra.NewTabTracker(logger)
	notifier := daemon.NewChangeNotifier()

	settings := usecase.NewSettingsService(store, notifier.Notify, logger)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error("failed to listen", zap.String("address", cfg.Listen), zap.Error(err))
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	// Port 0 and wildcard hosts only resolve once bound.
	blockedPage := cfg.BlockedPageURL(ln.Addr().String())
	enforcer := usecase.NewEnforcer(store, tabs, blockedPage, logger).
		WithConcurrency(cfg.RescanConcurrency)
	server := api.NewServer(settings, enforcer, tabs, Version, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	watcherConfig := daemon.DefaultWatcherConfig()
	watcherConfig.RescanInterval = cfg.RescanInterval
	watcherConfig.PollInterval = cfg.PollInterval
	watcherConfig.HeartbeatInterval = cfg.HeartbeatInterval

	watcher := daemon.NewWatcher(
		watcherConfig,
		enforcer,
		settings,
		store,
		registry,
		server,
		notifier.C(),
		domain.Daemon{
			PID:        os.Getpid(),
			StartedAt:  time.Now(),
			AppVersion: Version,
		},
		logger,
	)

	if err := watcher.Run(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newStartCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			registry := infra.NewFileRegistry(cfg.DataDir, infra.NewProcessManager())
			if alive, _ := registry.IsAlive(); alive {
				fmt.Fprintln(cmd.OutOrStdout(), "submon is already running")
				return nil
			}

			if err := daemon.StartDaemon(opts.configPath); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			entry, err := daemon.WaitForDaemon(registry, 5*time.Second, 100*time.Millisecond)
			if err != nil {
				return fmt.Errorf("%w (see %s)", err, cfg.Log.ErrorFile)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submon started (listening on %s)\n", entry.Address)
			return nil
		},
	}
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pm := infra.NewProcessManager()
			registry := infra.NewFileRegistry(cfg.DataDir, pm)

			fmt.Fprintln(out, "\n=== submon Status ===")

			entry, err := registry.GetAll()
			switch {
			case err != nil || entry == nil:
				fmt.Fprintln(out, "Daemon: NOT RUNNING")
				fmt.Fprintln(out, "        Run 'submon start' to enable blocking.")
			case !pm.IsRunning(entry.PID):
				fmt.Fprintln(out, "Daemon: NOT RUNNING (stale registry)")
			default:
				fmt.Fprintf(out, "Daemon: RUNNING on %s (mode: %s)\n", entry.Address, entry.Mode)
				if started, err := pm.StartTime(entry.PID); err == nil {
					fmt.Fprintf(out, "Uptime: %s\n", time.Since(started).Round(time.Second))
				}
				if entry.LastHeartbeat > 0 {
					lastBeat := time.Unix(entry.LastHeartbeat, 0)
					fmt.Fprintf(out, "Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
				}
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			printSettings(out, s, time.Now())

			fmt.Fprintln(out, "=====================")
			return nil
		},
	}
}

func newRekeyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Re-encrypt the settings database under a new key",
		Long: `Generates a new key for the encrypted settings database and re-encrypts
it. Stop the daemon first: a running daemon still holds the old key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Store != config.StoreEncrypted {
				return fmt.Errorf("store %q is not encrypted", cfg.Store)
			}

			registry := infra.NewFileRegistry(cfg.DataDir, infra.NewProcessManager())
			if alive, _ := registry.IsAlive(); alive {
				return errors.New("submon is running; stop the daemon before rekeying")
			}

			if err := infra.RotateSettingsKey(cmd.Context(), cfg.DataDir); err != nil {
				return fmt.Errorf("failed to rotate settings key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings database re-encrypted")
			return nil
		},
	}
}
