package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/pagepipe/models"
)

// Launcher starts a browser session.
type Launcher interface {
	Acquire(ctx context.Context, opts models.BrowserOptions) (models.BrowserSession, error)
}

// Sink persists a successful result.
type Sink interface {
	Persist(result *models.PipelineResult, dest models.OutputDestination) error
}

// Runner executes one request through the stages
// Idle → SessionAcquired → Navigated → Extracted → Persisted → Done,
// entering Failed from any stage. It never retries.
type Runner struct {
	Launcher Launcher
	Sink     Sink
	Policy   models.PageLoadPolicy
	Browser  models.BrowserOptions
	Observer Observer
}

// Run executes req and persists the result to dest. A zero dest.Format takes
// the strategy's format.
//
// The returned Report is always non-nil. The error is the Failure when the
// run ends in Failed. When a session was acquired it has been released
// exactly once by the time Run returns.
func (r *Runner) Run(ctx context.Context, req models.ExtractionRequest, dest models.OutputDestination) (*Report, error) {
	rep := &Report{
		RunID:       uuid.NewString(),
		States:      []State{StateIdle},
		Destination: dest,
		Durations:   make(map[State]time.Duration),
		Started:     time.Now(),
	}
	if req.Strategy != nil {
		rep.Strategy = req.Strategy.Name()
		if rep.Destination.Format == "" {
			rep.Destination.Format = req.Strategy.Format()
		}
	}
	log := slog.With("run_id", rep.RunID, "url", req.TargetURL, "strategy", rep.Strategy)

	// ── 1. Preflight: nothing below runs on a bad request ───────────
	if err := r.preflight(req, rep.Destination); err != nil {
		return r.fail(rep, log, StateSessionAcquired, err, rep.Started)
	}

	// ── 2. Acquire ──────────────────────────────────────────────────
	stageStart := time.Now()
	if err := ctx.Err(); err != nil {
		return r.fail(rep, log, StateSessionAcquired, canceled(err), stageStart)
	}
	session, err := r.Launcher.Acquire(ctx, r.Browser)
	if err != nil {
		return r.fail(rep, log, StateSessionAcquired, classify(err, models.ErrCodeBrowserLaunch), stageStart)
	}
	defer func() {
		if err := session.Release(); err != nil {
			log.Warn("browser release reported an error", "error", err)
		}
	}()
	r.enter(rep, log, StateSessionAcquired, stageStart)

	// ── 3. Navigate ─────────────────────────────────────────────────
	stageStart = time.Now()
	page, err := session.Navigate(ctx, req.TargetURL, r.Policy)
	if err != nil {
		return r.fail(rep, log, StateNavigated, classify(err, models.ErrCodeNavigation), stageStart)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(rep, log, StateNavigated, canceled(err), stageStart)
	}
	r.enter(rep, log, StateNavigated, stageStart,
		"status", page.StatusCode, "final_url", page.FinalURL, "page_load", page.LoadDuration)

	// ── 4. Extract ──────────────────────────────────────────────────
	stageStart = time.Now()
	result, err := req.Strategy.Extract(ctx, page)
	if err == nil {
		err = result.Check()
	}
	if err != nil {
		return r.fail(rep, log, StateExtracted, classify(err, models.ErrCodeInternal), stageStart)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(rep, log, StateExtracted, canceled(err), stageStart)
	}
	rep.Result = result
	if result.Degraded != nil {
		log.Warn("extraction degraded to page markdown", "error", result.Degraded)
	}
	r.enter(rep, log, StateExtracted, stageStart, "records", len(result.ExtractedRecords))

	// ── 5. Persist ──────────────────────────────────────────────────
	stageStart = time.Now()
	if err := r.Sink.Persist(result, rep.Destination); err != nil {
		return r.fail(rep, log, StatePersisted, classify(err, models.ErrCodeIOWrite), stageStart)
	}
	r.enter(rep, log, StatePersisted, stageStart, "path", rep.Destination.Path)

	rep.Finished = time.Now()
	r.enter(rep, log, StateDone, rep.Started)
	return rep, nil
}

func (r *Runner) preflight(req models.ExtractionRequest, dest models.OutputDestination) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if dest.Path == "" {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, "output destination has no path", nil)
	}
	if p, ok := req.Strategy.(models.Preflighter); ok {
		if err := p.Preflight(); err != nil {
			return err
		}
	}
	if r.Launcher == nil || r.Sink == nil {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, "runner needs a launcher and a sink", nil)
	}
	return nil
}

func (r *Runner) enter(rep *Report, log *slog.Logger, s State, since time.Time, attrs ...any) {
	elapsed := time.Since(since)
	rep.States = append(rep.States, s)
	rep.Durations[s] = elapsed
	log.Info("run "+s.String(), append([]any{"state", s.String(), "elapsed", elapsed}, attrs...)...)
	if r.Observer != nil {
		r.Observer(Event{
			RunID:    rep.RunID,
			Strategy: rep.Strategy,
			State:    s,
			Elapsed:  elapsed,
			Degraded: s == StateDone && rep.Degraded(),
		})
	}
}

func (r *Runner) fail(rep *Report, log *slog.Logger, stage State, err error, since time.Time) (*Report, error) {
	elapsed := time.Since(since)
	f := &Failure{Stage: stage, Err: err}
	rep.States = append(rep.States, StateFailed)
	rep.Durations[StateFailed] = elapsed
	rep.Failure = f
	rep.Result = models.FailedResult(err)
	rep.Finished = time.Now()
	log.Error("run failed", "state", StateFailed.String(), "stage", stage.String(), "error", err)
	if r.Observer != nil {
		r.Observer(Event{RunID: rep.RunID, Strategy: rep.Strategy, State: StateFailed, Elapsed: elapsed, Err: err})
	}
	return rep, f
}

// classify keeps coded errors and turns context errors into CANCELED or a
// timeout; anything else gets fallback.
func classify(err error, fallback string) error {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, context.Canceled):
		return canceled(err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "deadline exceeded", err)
	}
	return models.NewScrapeError(fallback, err.Error(), err)
}

func canceled(err error) error {
	return models.NewScrapeError(models.ErrCodeCanceled, "run canceled", err)
}
