package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
)

// FailureReason maps err to a short cause that callers attach to a
// degraded result instead of surfacing the error.
func FailureReason(err error) string {
	var (
		status    *HTTPStatusError
		gemini    *GeminiError
		netErr    net.Error
		urlErr    *url.Error
		syntaxErr *json.SyntaxError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "missing_api_key"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &status):
		switch {
		case status.QuotaExhausted():
			return "quota_exceeded"
		case status.StatusCode == http.StatusUnauthorized, status.StatusCode == http.StatusForbidden:
			return "unauthorized"
		case status.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		}
		return "upstream_error"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return "network_error"
	case errors.As(err, &syntaxErr), errors.Is(err, ErrInvalidPayload), errors.Is(err, errEmptyCompletion):
		return "invalid_response"
	case errors.As(err, &gemini):
		return "upstream_error"
	}
	return "unavailable"
}
