package audio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"monetiq/internal/domain"
)

// Stable error codes shared by the audio adapters.
const (
	CodeRateLimited   = "RATE_LIMITED"
	CodeAuthFailed    = "AUTH_FAILED"
	CodeBadRequest    = "INVALID_REQUEST"
	CodeUnavailable   = "PROVIDER_UNAVAILABLE"
	CodeEmptyResponse = "EMPTY_RESPONSE"
)

// httpProviderError maps an HTTP failure response to a typed ProviderError.
// If the body carries a JSON "code" field it takes precedence over the
// status-derived code.
func httpProviderError(provider string, status int, body []byte) *domain.ProviderError {
	code := codeForStatus(status)
	message := fmt.Sprintf("http %d", status)

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if c := strings.TrimSpace(payload.Code); c != "" {
			code = c
		} else if c := strings.TrimSpace(payload.Error.Code); c != "" {
			code = c
		}
		if m := strings.TrimSpace(payload.Message); m != "" {
			message = m
		} else if m := strings.TrimSpace(payload.Error.Message); m != "" {
			message = m
		}
	}

	return &domain.ProviderError{Provider: provider, Code: code, Message: message}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeAuthFailed
	case status >= 400 && status < 500:
		return CodeBadRequest
	default:
		return CodeUnavailable
	}
}
