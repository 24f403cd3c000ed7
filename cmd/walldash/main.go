package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"walldash/internal/battery"
	"walldash/internal/calendar"
	"walldash/internal/capture"
	"walldash/internal/config"
	"walldash/internal/dav"
	"walldash/internal/events"
	"walldash/internal/format"
	appLog "walldash/internal/log"
	"walldash/internal/sample"
	"walldash/internal/weather"
	"walldash/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Error("failed to load .env", err)
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.Settings.LogLevel))
	defer appLog.Sync()

	appLog.Info("effective config",
		"listen", conf.Listen,
		"locale", conf.Settings.Locale,
		"timezone", conf.Settings.Timezone,
		"sample", conf.Settings.Test,
		"accounts", len(conf.Accounts),
		"capture", conf.Capture.Enabled,
		"battery", conf.Battery.Enabled,
		"once", flags.once,
	)

	srv, err := web.NewServer(conf, buildSources(conf))
	if err != nil {
		appLog.Error("failed to build HTTP server", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		appLog.Error("failed to listen", err, "listen", conf.Listen)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	var sched *capture.Scheduler
	if conf.Capture.Enabled || flags.once {
		sched, err = capture.NewScheduler(conf, nil)
		if err != nil {
			appLog.Error("failed to set up capture", err)
			shutdown(srv, nil)
			os.Exit(1)
		}
	}

	if flags.once {
		// The listener is bound already, so the page is reachable.
		sched.Run()
		shutdown(srv, nil)
		return
	}
	if conf.Capture.Enabled {
		sched.Start(ctx)
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serveErr:
		appLog.Error("HTTP server stopped", err)
	}
	shutdown(srv, sched)
	appLog.Info("walldash exiting")
}

// buildSources wires the live normalizers, or the built-in samples when
// settings.test is set.
func buildSources(conf *config.Config) web.Sources {
	f := format.New(conf)
	src := web.Sources{Battery: battery.FromConfig(conf)}

	if conf.Settings.Test {
		src.Weather = sample.NewWeather(conf, f)
		src.Calendar = sample.NewCalendar(f)
		src.Events = sample.NewEvents(f)
		return src
	}

	client := &http.Client{Timeout: conf.Settings.HTTPTimeout}
	src.Weather = weather.NewService(conf, f, client)
	src.Calendar = calendar.NewService(conf, dav.NewDialer(conf.Settings.HTTPTimeout), f)
	src.Events = events.NewService(conf, f, client)
	return src
}

func shutdown(srv *web.Server, sched *capture.Scheduler) {
	if sched != nil {
		sched.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	defConfig := os.Getenv("WALLDASH_CONFIG")
	if defConfig == "" {
		defConfig = "./config.yml"
	}

	flag.StringVar(&cfg.configPath, "config", defConfig, "Path to config file (env WALLDASH_CONFIG)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config and PORT)")
	flag.BoolVar(&cfg.once, "once", false, "Serve the dashboard, write one capture and exit")

	flag.Parse()

	return cfg
}
