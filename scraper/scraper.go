package scraper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/models"
)

// Launcher starts one browser per Acquire. It holds no browser itself and is
// safe for concurrent use.
type Launcher struct {
	cfg config.BrowserConfig
}

// NewLauncher returns a Launcher for the given browser settings.
func NewLauncher(cfg config.BrowserConfig) *Launcher {
	return &Launcher{cfg: cfg}
}

// Acquire launches a browser, connects to it and opens one page. Any
// partially started process is cleaned up before an error is returned.
func (l *Launcher) Acquire(ctx context.Context, opts models.BrowserOptions) (models.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "canceled before browser launch", err)
	}

	ln := l.newProcess(opts)

	controlURL, err := ln.Launch()
	if err != nil {
		ln.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "headless", opts.Headless)

	browser := rod.New().ControlURL(controlURL).Trace(opts.Verbose)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		ln.Kill()
		ln.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}

	return &Session{process: ln, browser: browser, page: page}, nil
}

func (l *Launcher) newProcess(opts models.BrowserOptions) *launcher.Launcher {
	ln := launcher.New().
		Headless(opts.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.DefaultProxy != "" {
		ln = ln.Proxy(l.cfg.DefaultProxy)
	}
	if opts.Verbose {
		ln = ln.Logger(os.Stderr)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("no-first-run"))
	return ln
}

// Session is one browser process with one page, owned by a single run.
type Session struct {
	process *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page

	releaseOnce sync.Once
	releaseErr  error
}

// Release closes the page and browser and removes the profile directory.
// Only the first call does any work; later calls return the same error.
func (s *Session) Release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		s.process.Kill()
		s.process.Cleanup()
		s.releaseErr = errors.Join(errs...)
		slog.Debug("browser session released", "error", s.releaseErr)
	})
	return s.releaseErr
}
