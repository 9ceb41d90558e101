// Command scrape-reddit extracts the newest r/internships posts into
// reddit_posts.json with a schema-guided model call.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/extract"
	"github.com/use-agent/pagepipe/llm"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
	"github.com/use-agent/pagepipe/scraper"
	"github.com/use-agent/pagepipe/sink"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil, nil)
	stop()
	os.Exit(code)
}

type options struct {
	headless   bool
	verbose    bool
	output     string
	configPath string
}

type app struct {
	stdout, stderr io.Writer

	// launcher and chat replace the browser and the model endpoint when set.
	launcher pipeline.Launcher
	chat     llm.ChatClient
	exitCode int
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, launcher pipeline.Launcher, chat llm.ChatClient) int {
	a := &app{stdout: stdout, stderr: stderr, launcher: launcher, chat: chat}
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return pipeline.ExitUsage
	}
	return a.exitCode
}

func (a *app) command() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "scrape-reddit",
		Short:         "Extract the newest r/internships posts as JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.exitCode = a.scrape(cmd, opts)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.headless, "headless", true, "run the browser without a window")
	f.BoolVar(&opts.verbose, "verbose", false, "log browser activity")
	f.StringVar(&opts.output, "output", postsFile, "where to write the posts")
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	return cmd
}

func (a *app) scrape(cmd *cobra.Command, opts options) int {
	// ── 1. Configuration ────────────────────────────────────────────
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "Configuration error: %v\n", err)
		return pipeline.ExitUsage
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Browser.Verbose = opts.verbose
	}
	if cfg.Browser.Verbose {
		cfg.Log.Level = "debug"
	}
	slog.SetDefault(config.NewLogger(cfg.Log, a.stderr))

	base, err := cfg.Scraper.Policy()
	if err != nil {
		fmt.Fprintf(a.stderr, "Configuration error: %v\n", err)
		return pipeline.ExitUsage
	}

	// ── 2. Strategy ─────────────────────────────────────────────────
	strategy := &extract.SchemaGuidedLLM{
		Schema:         postSchema(),
		Instruction:    instruction,
		Model:          cfg.LLM.Model,
		Credential:     cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		ContentMode:    cleaner.Mode(cfg.LLM.ContentMode),
		MaxInputTokens: cfg.LLM.MaxInputTokens,
		Timeout:        cfg.LLM.Timeout,
		Client:         a.chat,
	}

	// ── 3. Run ──────────────────────────────────────────────────────
	launcher := a.launcher
	if launcher == nil {
		launcher = scraper.NewLauncher(cfg.Browser)
	}
	runner := &pipeline.Runner{
		Launcher: launcher,
		Sink:     sink.NewFileSink(),
		Policy:   listingPolicy(base),
		Browser:  models.BrowserOptions{Headless: cfg.Browser.Headless, Verbose: cfg.Browser.Verbose},
	}

	fmt.Fprintln(a.stdout, "Crawling r/internships...")
	rep, err := runner.Run(cmd.Context(), models.ExtractionRequest{TargetURL: targetURL, Strategy: strategy},
		models.OutputDestination{Path: opts.output, Format: models.FormatJSON})
	if err != nil {
		if errors.Is(err, models.ErrCredentialMissing) {
			fmt.Fprintf(a.stderr, "%s not found in environment variables. Please set it in .env file.\n", cfg.LLM.APIKeyEnv)
		} else {
			fmt.Fprintf(a.stdout, "Crawl failed: %v\n", models.AsScrapeError(err, models.ErrCodeInternal))
		}
		return pipeline.ExitCodeFor(err)
	}

	fmt.Fprintln(a.stdout, "\nCrawl successful!")
	fmt.Fprintf(a.stdout, "Status code: %d\n", rep.Result.Page.StatusCode)
	sink.Summarize(a.stdout, rep.Result, rep.Destination, summaryFields()...)
	return pipeline.ExitOK
}
