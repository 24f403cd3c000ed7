package web

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"

	"walldash/internal/calendar"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

type indexView struct {
	Locale         string
	RefreshSeconds int
	Battery        bool
}

type listView struct {
	Title   string
	Entries []model.DisplayEntry
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("OK")
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "index.html", indexView{
		Locale:         s.cfg.Settings.Locale,
		RefreshSeconds: s.cfg.Settings.RefreshSeconds,
		Battery:        s.src.Battery != nil,
	})
}

func (s *Server) handleWeather(c *fiber.Ctx) error {
	snap, err := s.src.Weather.Snapshot(c.UserContext())
	if err != nil {
		return s.fail(c, "weather", "Unable to fetch weather data", err)
	}
	return s.render(c, fiber.StatusOK, "weather.html", snap)
}

// handleCalendar serves /calendar?type=<kind>.
func (s *Server) handleCalendar(c *fiber.Ctx) error {
	kind := c.Query("type")
	entries, err := s.src.Calendar.Entries(c.UserContext(), kind)
	if errors.Is(err, calendar.ErrNoKind) {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter type is required")
	}
	if err != nil {
		return s.fail(c, "calendar", "Unable to fetch calendar events", err)
	}
	return s.list(c, kind, entries)
}

func (s *Server) handleBirthdays(c *fiber.Ctx) error {
	return s.list(c, "birthdays", s.src.Calendar.Birthdays(c.UserContext()))
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	return s.list(c, "events", s.src.Events.Entries(c.UserContext()))
}

func (s *Server) list(c *fiber.Ctx, kind string, entries []model.DisplayEntry) error {
	return s.render(c, fiber.StatusOK, "list.html", listView{
		Title:   s.cfg.Translations.Title(kind),
		Entries: entries,
	})
}

// handleBattery exposes the gauge reading for the status corner.
func (s *Server) handleBattery(c *fiber.Ctx) error {
	if s.src.Battery == nil {
		return fiber.NewError(fiber.StatusNotFound, "battery gauge disabled")
	}
	st, err := s.src.Battery.Read(c.UserContext())
	if err != nil {
		appLog.Error("battery read failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read battery"})
	}
	return c.JSON(st)
}

// handlePreview serves the last capture written by the scheduler.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	path := s.cfg.Capture.Output
	if _, err := os.Stat(path); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "no capture yet")
	}
	return c.SendFile(path)
}
