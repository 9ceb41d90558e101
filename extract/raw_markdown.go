package extract

import (
	"context"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/models"
)

// sharedCleaner is safe for concurrent use by every strategy.
var sharedCleaner = cleaner.NewCleaner()

// RawMarkdown renders the whole page as markdown. It never fails on content:
// an empty page produces "".
type RawMarkdown struct{}

// NewRawMarkdown returns the markdown strategy.
func NewRawMarkdown() *RawMarkdown {
	return &RawMarkdown{}
}

func (s *RawMarkdown) Name() string { return "raw_markdown" }

func (s *RawMarkdown) Format() models.OutputFormat { return models.FormatText }

func (s *RawMarkdown) Extract(ctx context.Context, page *models.LoadedPage) (*models.PipelineResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCanceled, "extraction canceled", err)
	}
	md := sharedCleaner.Markdown(page.HTML, page.FinalURL, cleaner.Options{Mode: cleaner.ModeRaw})
	return models.MarkdownResult(page, md), nil
}
