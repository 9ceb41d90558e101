// Command pagepipe-server exposes the scrape pipeline over HTTP.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/use-agent/pagepipe/api"
	"github.com/use-agent/pagepipe/api/handler"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/metrics"
	"github.com/use-agent/pagepipe/scraper"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "pagepipe-server",
		Short:         "Serve the scrape pipeline over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("PAGEPIPE_CONFIG"), "YAML config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stdout))
	slog.Info("pagepipe starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxRuns", cfg.Server.MaxConcurrentRuns,
	)

	base, err := cfg.Scraper.Policy()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// ── 3. Metrics ──────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── 4. Setup router ─────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runs := handler.NewRuns(scraper.NewLauncher(cfg.Browser), cfg, m)
	router := api.NewRouter(ctx, runs, cfg, base, reg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Each run owns its browser, so draining requests also closes browsers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("pagepipe stopped")
	return nil
}
