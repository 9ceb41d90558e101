package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/extract"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Layer the request over the configured load policy.
//  3. Run the pipeline with the raw markdown strategy.
//  4. Fill page facts and timing, return 200.
func Scrape(runs *Runs, base models.PageLoadPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Policy ───────────────────────────────────────────────
		policy := req.Policy(base)
		if err := policy.Validate(); err != nil {
			respondScrapeError(c, nil, err, totalStart)
			return
		}

		// ── 3. Run ──────────────────────────────────────────────────
		rep, data, err := runs.Run(c.Request.Context(), models.ExtractionRequest{
			TargetURL: req.URL,
			Strategy:  extract.NewRawMarkdown(),
		}, policy)
		if err != nil {
			respondScrapeError(c, rep, err, totalStart)
			return
		}

		// ── 4. Respond ──────────────────────────────────────────────
		content := string(data)
		page := rep.Result.Page
		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success:    true,
			RunID:      rep.RunID,
			StatusCode: page.StatusCode,
			FinalURL:   page.FinalURL,
			Title:      page.Title,
			Content:    content,
			Tokens:     models.TokenInfo{ContentEstimate: cleaner.EstimateTokens(content)},
			Timing:     timing(rep, totalStart),
		})
	}
}

func respondScrapeError(c *gin.Context, rep *pipeline.Report, err error, totalStart time.Time) {
	se := models.AsScrapeError(err, models.ErrCodeInternal)
	resp := models.ScrapeResponse{
		Success: false,
		Error:   se.ToDetail(),
		Timing:  timing(rep, totalStart),
	}
	if rep != nil {
		resp.RunID = rep.RunID
	}
	c.JSON(mapErrorToStatus(se), resp)
}

// timing splits a run's wall time into its stages.
func timing(rep *pipeline.Report, totalStart time.Time) models.TimingInfo {
	t := models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
	if rep == nil {
		return t
	}
	t.LaunchMs = rep.Durations[pipeline.StateSessionAcquired].Milliseconds()
	t.NavigationMs = rep.Durations[pipeline.StateNavigated].Milliseconds()
	t.ExtractionMs = rep.Durations[pipeline.StateExtracted].Milliseconds()
	if rep.Result != nil {
		t.PageLoadMs = rep.Result.Page.LoadMs
	}
	return t
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidURL, models.ErrCodeInvalidConfig,
		models.ErrCodeCredentialMissing:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized, models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized // 401
	case models.ErrCodeCanceled:
		return http.StatusRequestTimeout // 408
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation, models.ErrCodeLLMFailure:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserLaunch:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
