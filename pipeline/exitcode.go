package pipeline

import (
	"errors"

	"github.com/use-agent/pagepipe/models"
)

// Process exit codes for the command-line tools.
const (
	ExitOK          = 0 // Done, degraded included
	ExitUsage       = 1 // bad arguments, configuration or missing credential
	ExitScrapeError = 2 // browser, navigation or extraction failure
	ExitWriteError  = 3 // result could not be persisted
)

// ExitCodeFor maps a run error to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		return ExitScrapeError
	}
	switch se.Code {
	case models.ErrCodeInvalidURL,
		models.ErrCodeInvalidInput,
		models.ErrCodeInvalidConfig,
		models.ErrCodeCredentialMissing:
		return ExitUsage
	case models.ErrCodeIOWrite:
		return ExitWriteError
	default:
		return ExitScrapeError
	}
}
