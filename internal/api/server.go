// Package api serves the HTTP surface the host platform and the settings UI
// talk to.
package api

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/contrib/fiberzap"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/usecase"
)

// TabRegistry is the host-facing side of the tab tracker.
type TabRegistry interface {
	Track(tab domain.Tab)
	Remove(tabID int) bool
	Tabs() []domain.Tab
	DrainRedirects() []domain.RedirectCommand
}

// Server wires the fiber app to the settings service, the enforcer and the
// tab tracker.
type Server struct {
	app      *fiber.App
	settings *usecase.SettingsService
	enforcer domain.Enforcer
	tabs     TabRegistry
	version  string
	now      func() time.Time
	logger   *zap.Logger
}

// NewServer builds the app and registers every route.
func NewServer(
	settings *usecase.SettingsService,
	enforcer domain.Enforcer,
	tabs TabRegistry,
	version string,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "submon",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger,
		// The host polls for redirects; logging every poll drowns the log.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/v1/redirects"
		},
	}))

	s := &Server{
		app:      app,
		settings: settings,
		enforcer: enforcer,
		tabs:     tabs,
		version:  version,
		now:      time.Now,
		logger:   logger,
	}
	s.Routes(app)
	return s
}

// App returns the underlying fiber app (for tests).
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.app.Shutdown() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
