package api

import (
	_ "embed"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

//go:embed blocked.html
var blockedHTML string

var blockedTemplate = template.Must(template.New("blocked").Parse(blockedHTML))

type blockedPageData struct {
	Theme string
}

// BlockedPage renders the page blocked tabs are redirected to, in the stored
// theme. Anything but "light" renders dark.
func (s *Server) BlockedPage(c *fiber.Ctx) error {
	theme := domain.ThemeDark
	if settings, err := s.settings.Snapshot(c.UserContext()); err == nil && settings.Theme == domain.ThemeLight {
		theme = domain.ThemeLight
	}

	var b strings.Builder
	if err := blockedTemplate.Execute(&b, blockedPageData{Theme: string(theme)}); err != nil {
		return s.sendError(c, err)
	}
	c.Type("html", "utf-8")
	return c.SendString(b.String())
}
