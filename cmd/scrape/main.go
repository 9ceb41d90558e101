// Command scrape renders one page in a browser and saves it as markdown.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/extract"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
	"github.com/use-agent/pagepipe/scraper"
	"github.com/use-agent/pagepipe/sink"
)

const usage = `Usage: scrape <url> [output_file]
Example: scrape https://example.com
Example: scrape https://example.com output.md
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

type options struct {
	headless   bool
	verbose    bool
	waitUntil  string
	delay      time.Duration
	timeout    time.Duration
	configPath string
}

type app struct {
	stdout, stderr io.Writer

	// launcher replaces the rod launcher when set.
	launcher pipeline.Launcher
	exitCode int
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, launcher pipeline.Launcher) int {
	a := &app{stdout: stdout, stderr: stderr, launcher: launcher}
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stdout, usage)
		return pipeline.ExitUsage
	}
	return a.exitCode
}

func (a *app) command() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "scrape <url> [output_file]",
		Short:         "Render a page in a browser and save it as markdown",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(a.stdout, usage)
				a.exitCode = pipeline.ExitUsage
				return nil
			}
			a.exitCode = a.scrape(cmd, args, opts)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	f.BoolVar(&opts.verbose, "verbose", false, "log browser activity")
	f.StringVar(&opts.waitUntil, "wait-until", "", "quiescence condition: networkidle, domcontentloaded or load")
	f.DurationVar(&opts.delay, "delay", 0, "settle delay after the page is quiescent (default from config, 2s)")
	f.DurationVar(&opts.timeout, "timeout", 0, "navigation ceiling (default from config, 30s)")
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	return cmd
}

func (a *app) scrape(cmd *cobra.Command, args []string, opts options) int {
	targetURL := args[0]
	var explicit string
	if len(args) > 1 {
		explicit = args[1]
	}

	// ── 1. Configuration ────────────────────────────────────────────
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		fmt.Fprintf(a.stdout, "Failed: %v\n", err)
		return pipeline.ExitUsage
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if flags.Changed("verbose") {
		cfg.Browser.Verbose = opts.verbose
	}
	if flags.Changed("wait-until") {
		cfg.Scraper.WaitUntil = opts.waitUntil
	}
	if flags.Changed("delay") {
		cfg.Scraper.SettleDelay = opts.delay
	}
	if flags.Changed("timeout") {
		cfg.Scraper.NavigationTimeout = opts.timeout
	}
	if cfg.Browser.Verbose {
		cfg.Log.Level = "debug"
	}
	slog.SetDefault(config.NewLogger(cfg.Log, a.stderr))

	policy, err := cfg.Scraper.Policy()
	if err != nil {
		fmt.Fprintf(a.stdout, "Failed: %v\n", err)
		return pipeline.ExitUsage
	}

	// ── 2. Destination ──────────────────────────────────────────────
	dest, err := sink.ResolveDestination(targetURL, explicit, models.FormatText)
	if err != nil {
		fmt.Fprintf(a.stdout, "Failed: %v\n", err)
		return pipeline.ExitCodeFor(err)
	}

	// ── 3. Run ──────────────────────────────────────────────────────
	launcher := a.launcher
	if launcher == nil {
		launcher = scraper.NewLauncher(cfg.Browser)
	}
	runner := &pipeline.Runner{
		Launcher: launcher,
		Sink:     sink.NewFileSink(),
		Policy:   policy,
		Browser:  models.BrowserOptions{Headless: cfg.Browser.Headless, Verbose: cfg.Browser.Verbose},
	}

	fmt.Fprintf(a.stdout, "Scraping: %s\n", targetURL)
	rep, err := runner.Run(cmd.Context(), models.ExtractionRequest{
		TargetURL: targetURL,
		Strategy:  extract.NewRawMarkdown(),
	}, dest)
	if err != nil {
		fmt.Fprintf(a.stdout, "Failed: %v\n", models.AsScrapeError(err, models.ErrCodeInternal))
		return pipeline.ExitCodeFor(err)
	}

	sink.Summarize(a.stdout, rep.Result, rep.Destination)
	return pipeline.ExitOK
}
