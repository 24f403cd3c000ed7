package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"walldash/internal/battery"
	"walldash/internal/config"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// WeatherSource feeds the weather widget.
type WeatherSource interface {
	Snapshot(ctx context.Context) (model.WeatherSnapshot, error)
}

// CalendarSource feeds the appointment, trash and birthday lists.
type CalendarSource interface {
	Entries(ctx context.Context, kind string) ([]model.DisplayEntry, error)
	Birthdays(ctx context.Context) []model.DisplayEntry
}

// EventSource feeds the local events list.
type EventSource interface {
	Entries(ctx context.Context) []model.DisplayEntry
}

// Sources are the normalizers behind the dashboard sections. Battery may
// be nil when no gauge is configured.
type Sources struct {
	Weather  WeatherSource
	Calendar CalendarSource
	Events   EventSource
	Battery  battery.Reader
}

// Server renders the dashboard page and its section fragments.
type Server struct {
	cfg  *config.Config
	src  Sources
	tmpl *template.Template
	app  *fiber.App
}

// NewServer parses the embedded templates and registers every route.
func NewServer(cfg *config.Config, src Sources) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, src: src, tmpl: tmpl}
	s.app = fiber.New(fiber.Config{
		AppName:               "walldash",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.Settings.HTTPTimeout,
		ErrorHandler:          s.errorHandler,
	})
	s.registerRoutes()
	return s, nil
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	appLog.Info("starting HTTP server", "listen", ln.Addr().String(), "sample", s.cfg.Settings.Test)
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// basicAuthEnabled reports whether dashboard credentials are configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg.BasicAuth != nil && s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) registerRoutes() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(logger.New(logger.Config{
		Format:     "${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: time.RFC3339,
		Output:     zap.NewStdLog(appLog.Logger()).Writer(),
	}))
	s.app.Use(func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Next()
	})

	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		s.app.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{s.cfg.BasicAuth.Username: s.cfg.BasicAuth.Password},
			Realm: "walldash",
			// /health stays open for probes.
			Next: func(c *fiber.Ctx) bool { return c.Path() == "/health" },
		}))
	}

	s.app.Get("/health", s.handleHealth)
	s.app.Use("/assets", filesystem.New(filesystem.Config{
		Root:       http.FS(assetFS),
		PathPrefix: "assets",
	}))

	s.app.Get("/", s.handleIndex)
	s.app.Get("/weather", s.handleWeather)
	s.app.Get("/calendar", s.handleCalendar)
	s.app.Get("/birthdays", s.handleBirthdays)
	s.app.Get("/events", s.handleEvents)
	s.app.Get("/api/battery", s.handleBattery)
	s.app.Get("/preview.png", s.handlePreview)

	s.app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// render executes a template into a buffer first so a template failure
// never leaves a half-written 200.
func (s *Server) render(c *fiber.Ctx, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

type errorView struct {
	Message string
	Details string
}

// fail logs err and renders the error fragment with a 500.
func (s *Server) fail(c *fiber.Ctx, key, message string, err error) error {
	appLog.Error(message, err, "path", c.Path(), "request_id", c.Locals("requestid"))
	return s.render(c, fiber.StatusInternalServerError, "error.html", errorView{
		Message: s.cfg.Translations.ErrorMessage(key, message),
		Details: err.Error(),
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		appLog.Error("request failed", err, "method", c.Method(), "path", c.Path())
	}

	view := errorView{Message: http.StatusText(code), Details: err.Error()}
	if view.Details == view.Message {
		view.Details = ""
	}
	if rerr := s.render(c, code, "error.html", view); rerr != nil {
		return c.Status(code).SendString(view.Message)
	}
	return nil
}
