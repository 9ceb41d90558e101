package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/extract"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Flow:
//  1. Parse & validate ExtractRequest, apply defaults.
//  2. Build the schema-guided strategy; request overrides win over config.
//  3. Run the pipeline.
//  4. Assemble records (or the degraded markdown) with timing and LLM usage.
func Extract(runs *Runs, base models.PageLoadPolicy, llmCfg config.LLMConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()
		policy := req.Policy(base)
		if err := policy.Validate(); err != nil {
			respondExtractError(c, nil, err, totalStart)
			return
		}

		// ── 2. Strategy ─────────────────────────────────────────────
		strategy := &extract.SchemaGuidedLLM{
			Schema:           req.Schema,
			Instruction:      req.Instruction,
			Model:            firstNonEmpty(req.LLMModel, llmCfg.Model),
			Credential:       llmCfg.APIKey,
			BaseURL:          firstNonEmpty(req.LLMBaseURL, llmCfg.BaseURL),
			ContentMode:      cleaner.Mode(firstNonEmpty(req.ContentMode, llmCfg.ContentMode)),
			CSSSelector:      req.CSSSelector,
			ExcludeSelectors: req.ExcludeSelectors,
			MaxInputTokens:   llmCfg.MaxInputTokens,
			Timeout:          llmCfg.Timeout,
			Client:           runs.chat,
		}
		if !req.LLMAPIKey.Empty() {
			strategy.Credential = req.LLMAPIKey
		}

		// ── 3. Run ──────────────────────────────────────────────────
		rep, _, err := runs.Run(c.Request.Context(), models.ExtractionRequest{
			TargetURL: req.URL,
			Strategy:  strategy,
		}, policy)
		if err != nil {
			respondExtractError(c, rep, err, totalStart)
			return
		}

		// ── 4. Respond ──────────────────────────────────────────────
		result := rep.Result
		resp := models.ExtractResponse{
			Success:  true,
			RunID:    rep.RunID,
			Records:  result.ExtractedRecords,
			Page:     result.Page,
			Timing:   timing(rep, totalStart),
			LLMUsage: result.Usage,
		}
		if result.Degraded != nil {
			resp.Records = []models.Record{}
			resp.ExtractionError = models.AsScrapeError(result.Degraded, models.ErrCodeExtractionParse).ToDetail()
			resp.RawMarkdown = result.Markdown()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func respondExtractError(c *gin.Context, rep *pipeline.Report, err error, totalStart time.Time) {
	se := models.AsScrapeError(err, models.ErrCodeInternal)
	resp := models.ExtractResponse{
		Success: false,
		Error:   se.ToDetail(),
		Timing:  timing(rep, totalStart),
	}
	if rep != nil {
		resp.RunID = rep.RunID
	}
	c.JSON(mapErrorToStatus(se), resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
