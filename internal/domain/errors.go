package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrInvalidPlan     = errors.New("invalid shot plan")
	ErrHookShotFailed  = errors.New("hook shot failed")
	ErrJobNotOwned     = errors.New("job not owned by worker")
	ErrDuplicateOutput = errors.New("duplicate output")
)

// UnknownErrorCode is recorded when a provider failure carries no typed code.
const UnknownErrorCode = "UNKNOWN_ERROR"

// ProviderError is a typed failure returned by generation providers. The Code
// is a stable machine-readable identifier (e.g. RATE_LIMITED, CONTENT_BLOCKED)
// surfaced in usage events and job error messages.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Code)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderErrorCode extracts the structured code from err, falling back to
// UnknownErrorCode for untyped failures.
func ProviderErrorCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return UnknownErrorCode
}
