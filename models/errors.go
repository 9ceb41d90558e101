package models

import (
	"errors"
	"fmt"
)

// Error codes used in reports, API responses and internal error handling.
const (
	ErrCodeBrowserLaunch = "BROWSER_LAUNCH_FAILED"
	ErrCodeTimeout       = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation    = "NAVIGATION_NETWORK"
	ErrCodeInvalidURL    = "INVALID_URL"
	ErrCodeCanceled      = "CANCELED"

	ErrCodeExtractionParse   = "EXTRACTION_PARSE_FAILED"
	ErrCodeNoContent         = "NO_CONTENT_EXTRACTED"
	ErrCodeCredentialMissing = "CREDENTIAL_MISSING"

	ErrCodeIOWrite       = "IO_WRITE_FAILED"
	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// LLM transport failures; fatal for the run.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
)

// Sentinels for errors.Is. Matching is by code, so any *ScrapeError with the
// same code matches regardless of message or wrapped cause.
var (
	ErrBrowserLaunch     = &ScrapeError{Code: ErrCodeBrowserLaunch}
	ErrNavigationTimeout = &ScrapeError{Code: ErrCodeTimeout}
	ErrNavigationNetwork = &ScrapeError{Code: ErrCodeNavigation}
	ErrInvalidURL        = &ScrapeError{Code: ErrCodeInvalidURL}
	ErrCanceled          = &ScrapeError{Code: ErrCodeCanceled}
	ErrExtractionParse   = &ScrapeError{Code: ErrCodeExtractionParse}
	ErrNoContent         = &ScrapeError{Code: ErrCodeNoContent}
	ErrCredentialMissing = &ScrapeError{Code: ErrCodeCredentialMissing}
	ErrIOWrite           = &ScrapeError{Code: ErrCodeIOWrite}
	ErrInvalidConfig     = &ScrapeError{Code: ErrCodeInvalidConfig}
	ErrLLMFailure        = &ScrapeError{Code: ErrCodeLLMFailure}
	ErrLLMAuthFailure    = &ScrapeError{Code: ErrCodeLLMAuthFailure}
	ErrLLMRateLimited    = &ScrapeError{Code: ErrCodeLLMRateLimited}
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *ScrapeError with the same code.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	return ok && t.Code == e.Code
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsScrapeError returns the first *ScrapeError in err's chain. Errors that
// carry no code are wrapped with fallbackCode.
func AsScrapeError(err error, fallbackCode string) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(fallbackCode, err.Error(), err)
}

// NavigationFailure classifies why a page could not be loaded.
type NavigationFailure string

const (
	NavigationTimeout        NavigationFailure = "timeout"
	NavigationNetworkFailure NavigationFailure = "network_failure"
	NavigationInvalidURL     NavigationFailure = "invalid_url"
)

// NavigationKind reports which navigation failure err represents, or "" when
// err is not a navigation error.
func NavigationKind(err error) NavigationFailure {
	switch {
	case errors.Is(err, ErrNavigationTimeout):
		return NavigationTimeout
	case errors.Is(err, ErrNavigationNetwork):
		return NavigationNetworkFailure
	case errors.Is(err, ErrInvalidURL):
		return NavigationInvalidURL
	default:
		return ""
	}
}
