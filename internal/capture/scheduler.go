package capture

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/robfig/cron/v3"

	"walldash/internal/config"
	appLog "walldash/internal/log"
)

// CaptureFunc takes one screenshot.
type CaptureFunc func(ctx context.Context, opts Options) error

// Scheduler runs the capture on a cron schedule. Runs never overlap; a tick
// that fires while a capture is in flight is skipped.
type Scheduler struct {
	cron    *cron.Cron
	opts    Options
	capture CaptureFunc

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// NewScheduler builds a scheduler from the capture section of cfg. A nil
// capture uses DashboardPNG.
func NewScheduler(cfg *config.Config, capture CaptureFunc) (*Scheduler, error) {
	if capture == nil {
		capture = DashboardPNG
	}

	target := cfg.Capture.URL
	if target == "" {
		target = dashboardURL(cfg.Listen)
	}
	opts := Options{
		URL:        target,
		OutputPath: cfg.Capture.Output,
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
	}
	if cfg.BasicAuth != nil {
		opts.Username = cfg.BasicAuth.Username
		opts.Password = cfg.BasicAuth.Password
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(cfg.Location())),
		opts:    opts,
		capture: capture,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(cfg.Capture.Schedule, s.Run); err != nil {
		return nil, fmt.Errorf("capture: schedule %q: %w", cfg.Capture.Schedule, err)
	}
	return s, nil
}

// Start begins firing. Captures use ctx and stop when it is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	appLog.Info("capture scheduler started", "url", redact(s.opts.URL), "output", s.opts.OutputPath)
	s.cron.Start()
}

// Stop stops the schedule and waits for a running capture to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run takes one capture now unless one is already running.
func (s *Scheduler) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		appLog.Debug("capture skipped, previous run still active")
		return
	}
	s.running = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.capture(ctx, s.opts); err != nil {
		appLog.Error("capture failed", err, "url", redact(s.opts.URL))
		return
	}
	appLog.Info("capture written", "output", s.opts.OutputPath)
}

// dashboardURL turns a listen address into a loopback URL. An empty or
// wildcard host becomes 127.0.0.1.
func dashboardURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
