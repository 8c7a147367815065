package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/use-agent/slidepdf/api"
	"github.com/use-agent/slidepdf/config"
	"github.com/use-agent/slidepdf/engine"
	"github.com/use-agent/slidepdf/fetcher"
	"github.com/use-agent/slidepdf/metrics"
	"github.com/use-agent/slidepdf/pipeline"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("slidepdf starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
		"downloadConcurrency", cfg.Download.Concurrency,
	)

	// ── 3. Initialise fetch engines ─────────────────────────────────
	httpEngine := engine.NewHTTPEngine(engine.HTTPOptions{
		MaxBody:      cfg.Fetch.MaxBody,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})
	defer httpEngine.Close()

	var htmlEngine engine.Engine = httpEngine
	if cfg.Browser.Enabled {
		rodEngine, err := engine.NewRodEngine(engine.BrowserOptions{
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			Bin:       cfg.Browser.Bin,
			Proxy:     cfg.Browser.Proxy,
			Stealth:   cfg.Browser.Stealth,
		})
		if err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rodEngine.Close(); err != nil {
				slog.Warn("browser close failed", "error", err)
			}
		}()

		htmlEngine = engine.NewDispatcher(httpEngine, rodEngine).
			WithMemory(engine.NewDomainMemory(24 * time.Hour))
		slog.Info("browser fallback enabled", "engine", rodEngine.Name())
	}

	// ── 4. Initialise fetcher + pipeline ────────────────────────────
	f := fetcher.New(htmlEngine, httpEngine, fetcher.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	p := pipeline.New(f, pipeline.Options{
		Concurrency:   cfg.Download.Concurrency,
		RatePerSecond: cfg.Download.RatePerSecond,
		Burst:         cfg.Download.Burst,
		Metrics:       m,
	})

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Pipeline:  p,
		Metrics:   m,
		Gatherer:  reg,
		StartTime: time.Now(),
	})

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Engines close via defer: idle connections, then the browser.
	slog.Info("slidepdf stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
