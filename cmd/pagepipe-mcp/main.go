// Command pagepipe-mcp serves the scrape pipeline as MCP tools over stdio.
// Stdout carries the protocol, so all logs go to stderr.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/use-agent/pagepipe/api/handler"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/scraper"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "pagepipe-mcp",
		Short:         "Serve the scrape pipeline as MCP tools on stdio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")

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
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stderr))

	base, err := cfg.Scraper.Policy()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.LLM.APIKey.Empty() {
		slog.Warn("no LLM credential configured, extract_records will fail", "env", cfg.LLM.APIKeyEnv)
	}

	// ── 2. Register tools ───────────────────────────────────────────
	s := server.NewMCPServer(
		"pagepipe",
		handler.Version,
		server.WithToolCapabilities(false),
	)
	t := &tools{
		runs: handler.NewRuns(scraper.NewLauncher(cfg.Browser), cfg, nil),
		base: base,
		llm:  cfg.LLM,
	}
	t.register(s)

	// ── 3. Serve ────────────────────────────────────────────────────
	slog.Info("pagepipe-mcp serving on stdio", "max_runs", cfg.Server.MaxConcurrentRuns)
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
