package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
	"github.com/eliteGoblin/focusd/sub_mon/internal/usecase"
)

// StandardError is the standard error response.
type StandardError struct {
	Message string `json:"error"`
}

// ServerInfo contains information about the API server.
type ServerInfo struct {
	Name       string `json:"server"`
	APIVersion string `json:"apiVersion"`
	Version    string `json:"version"`
}

// SettingsView is the settings record as shown to clients.
type SettingsView struct {
	BlockList        []string `json:"blockList"`
	BlockListText    string   `json:"blockListText"`
	Enabled          bool     `json:"enabled"`
	EffectiveEnabled bool     `json:"effectiveEnabled"`
	Theme            string   `json:"theme"`
	DailyLockUntil   int64    `json:"dailyLockUntil"`
	Locked           bool     `json:"locked"`
}

// SettingsUpdate is the body of PUT /v1/settings. BlockList is the free text
// of the editor, one entry per line.
type SettingsUpdate struct {
	BlockList *string `json:"blockList"`
	Enabled   *bool   `json:"enabled"`
}

// ThemeUpdate is the body of PUT /v1/settings/theme.
type ThemeUpdate struct {
	Theme string `json:"theme"`
}

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	URL string `json:"url"`
}

// Routes sets up the /v1 endpoints and the blocked page.
func (s *Server) Routes(router fiber.Router) {
	router.Get("/blocked", s.BlockedPage)

	v1 := router.Group("/v1")
	v1.Get("", s.GetServerInfo)

	settings := v1.Group("/settings")
	settings.Get("", s.GetSettings)
	settings.Put("", s.UpdateSettings)
	settings.Put("/theme", s.UpdateTheme)
	settings.Post("/lock", s.Lock)

	v1.Post("/check", s.Check)

	tabs := v1.Group("/tabs")
	tabs.Get("", s.ListTabs)
	tabs.Post("/navigation", s.Navigation)
	tabs.Delete("/:id", s.CloseTab)

	v1.Get("/redirects", s.DrainRedirects)
}

// GetServerInfo returns information about the API server.
func (s *Server) GetServerInfo(c *fiber.Ctx) error {
	return c.JSON(&ServerInfo{
		Name:       "submon",
		APIVersion: "v1",
		Version:    s.version,
	})
}

// GetSettings returns the current settings record.
func (s *Server) GetSettings(c *fiber.Ctx) error {
	settings, err := s.settings.Snapshot(c.UserContext())
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(s.view(settings))
}

// UpdateSettings saves the editor text and/or the enable toggle.
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var update SettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: err.Error()})
	}

	ctx := c.UserContext()
	var (
		settings domain.Settings
		err      error
	)
	switch {
	case update.BlockList != nil && update.Enabled != nil:
		settings, err = s.settings.Save(ctx, *update.BlockList, *update.Enabled)
	case update.BlockList != nil:
		settings, err = s.settings.SetBlockList(ctx, *update.BlockList)
	case update.Enabled != nil:
		settings, err = s.settings.SetEnabled(ctx, *update.Enabled)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: "nothing to update"})
	}
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(s.view(settings))
}

// UpdateTheme switches the blocked page theme.
func (s *Server) UpdateTheme(c *fiber.Ctx) error {
	var update ThemeUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: err.Error()})
	}

	theme, err := domain.ParseTheme(update.Theme)
	if err != nil {
		return s.sendError(c, err)
	}
	settings, err := s.settings.SetTheme(c.UserContext(), theme)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(s.view(settings))
}

// Lock forces enforcement on until the end of the day.
func (s *Server) Lock(c *fiber.Ctx) error {
	settings, err := s.settings.LockForToday(c.UserContext())
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(s.view(settings))
}

// Check evaluates a URL without touching any tab.
func (s *Server) Check(c *fiber.Ctx) error {
	var req CheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: err.Error()})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: "url is required"})
	}

	settings, err := s.settings.Snapshot(c.UserContext())
	if err != nil {
		return s.sendError(c, err)
	}
	decision := usecase.Evaluate(req.URL, settings, s.now())
	return c.JSON(&decision)
}

// Navigation records a committed navigation or URL change and redirects the
// tab when the target is blocked.
func (s *Server) Navigation(c *fiber.Ctx) error {
	var ev domain.NavigationEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: err.Error()})
	}
	if ev.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: "url is required"})
	}

	s.tabs.Track(domain.Tab{ID: ev.TabID, URL: ev.URL})

	decision, err := s.enforcer.HandleNavigation(c.UserContext(), ev)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(&decision)
}

// ListTabs lists the tabs the host reported.
func (s *Server) ListTabs(c *fiber.Ctx) error {
	return c.JSON(s.tabs.Tabs())
}

// CloseTab forgets a closed tab.
func (s *Server) CloseTab(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(&StandardError{Message: "invalid tab id"})
	}
	if !s.tabs.Remove(id) {
		return c.Status(fiber.StatusNotFound).JSON(&StandardError{Message: "tab not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DrainRedirects hands the queued redirect commands to the host.
func (s *Server) DrainRedirects(c *fiber.Ctx) error {
	return c.JSON(s.tabs.DrainRedirects())
}

func (s *Server) view(settings domain.Settings) *SettingsView {
	now := s.now()
	return &SettingsView{
		BlockList:        append([]string{}, settings.BlockList...),
		BlockListText:    policy.FormatBlockList(settings.BlockList),
		Enabled:          settings.Enabled,
		EffectiveEnabled: settings.EffectiveEnabled(now),
		Theme:            string(settings.Theme),
		DailyLockUntil:   settings.DailyLockUntil,
		Locked:           settings.LockActive(now),
	}
}

func (s *Server) sendError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrLocked):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidTheme), errors.Is(err, usecase.ErrNoIdentifiers):
		status = fiber.StatusBadRequest
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(&StandardError{Message: err.Error()})
}
