// Package daemon implements the enforcement daemon loop.
package daemon

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// APIServer is the HTTP surface the watcher serves while running.
type APIServer interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// Installer writes first-install defaults.
type Installer interface {
	Install(ctx context.Context) error
}

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	RescanInterval    time.Duration // How often to re-evaluate every open tab
	PollInterval      time.Duration // How often to check the store revision for outside writes
	HeartbeatInterval time.Duration // How often to update heartbeat
	ShutdownTimeout   time.Duration // How long to wait for in-flight requests on exit
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		RescanInterval:    time.Minute,
		PollInterval:      2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Watcher is the enforcement daemon.
// It serves the API, rescans open tabs when settings change (in-process or
// written by another process), and rescans periodically.
type Watcher struct {
	config    WatcherConfig
	enforcer  domain.Enforcer
	installer Installer
	store     domain.SettingsStore
	registry  domain.DaemonRegistry
	server    APIServer
	changes   <-chan struct{}
	daemon    domain.Daemon
	logger    *zap.Logger

	lastRevision int64
}

// NewWatcher creates a new watcher daemon. changes delivers in-process
// settings-change notifications.
func NewWatcher(
	config WatcherConfig,
	enforcer domain.Enforcer,
	installer Installer,
	store domain.SettingsStore,
	registry domain.DaemonRegistry,
	server APIServer,
	changes <-chan struct{},
	daemon domain.Daemon,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:    config,
		enforcer:  enforcer,
		installer: installer,
		store:     store,
		registry:  registry,
		server:    server,
		changes:   changes,
		daemon:    daemon,
		logger:    logger,
	}
}

// Run serves the API on ln and runs the watcher loop.
// This blocks until context is canceled or the server fails.
func (w *Watcher) Run(ctx context.Context, ln net.Listener) error {
	w.daemon.Address = ln.Addr().String()

	// Register ourselves so the CLI can find us
	if err := w.registry.Register(w.daemon); err != nil {
		w.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := w.registry.Clear(); err != nil {
			w.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	if err := w.installer.Install(ctx); err != nil {
		return err
	}
	w.lastRevision = w.revision(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- w.server.Serve(ln)
	}()

	w.logger.Info("watcher daemon started",
		zap.Int("pid", w.daemon.PID),
		zap.String("address", w.daemon.Address))

	w.runRescan(ctx, domain.TriggerStartup)

	rescanTicker := time.NewTicker(w.config.RescanInterval)
	pollTicker := time.NewTicker(w.config.PollInterval)
	heartbeatTicker := time.NewTicker(w.config.HeartbeatInterval)

	defer func() {
		rescanTicker.Stop()
		pollTicker.Stop()
		heartbeatTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			w.shutdown()
			return ctx.Err()

		case err := <-serveErr:
			if err == nil {
				err = errors.New("api server stopped")
			}
			w.logger.Error("api server failed", zap.Error(err))
			return err

		case <-w.changes:
			w.lastRevision = w.revision(ctx)
			w.runRescan(ctx, domain.TriggerSettingsChange)

		case <-pollTicker.C:
			if rev := w.revision(ctx); rev != w.lastRevision {
				w.logger.Debug("settings changed outside the daemon",
					zap.Int64("revision", rev))
				w.lastRevision = rev
				w.runRescan(ctx, domain.TriggerSettingsChange)
			}

		case <-rescanTicker.C:
			w.runRescan(ctx, domain.TriggerPeriodic)

		case <-heartbeatTicker.C:
			if err := w.registry.UpdateHeartbeat(); err != nil {
				w.logger.Warn("failed to update heartbeat", zap.Error(err))
			}
		}
	}
}

// runRescan re-evaluates all open reddit tabs.
func (w *Watcher) runRescan(ctx context.Context, trigger domain.Trigger) {
	result, err := w.enforcer.Rescan(ctx, trigger)
	if err != nil {
		w.logger.Error("rescan failed",
			zap.String("trigger", string(trigger)),
			zap.Error(err))
		return
	}

	if len(result.Errors) > 0 {
		w.logger.Warn("rescan finished with errors",
			zap.String("trigger", string(trigger)),
			zap.Int("redirected", len(result.Redirected)),
			zap.Errors("errors", result.Errors))
	}
}

// revision reads the store revision; on failure the last known one is kept.
func (w *Watcher) revision(ctx context.Context) int64 {
	rev, err := w.store.Revision(ctx)
	if err != nil {
		w.logger.Warn("failed to read settings revision", zap.Error(err))
		return w.lastRevision
	}
	return rev
}

func (w *Watcher) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Warn("failed to shut down api server", zap.Error(err))
	}
}
