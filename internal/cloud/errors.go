// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorKind is the coarse failure class of one provider attempt.
type ErrorKind string

const (
	KindTransport       ErrorKind = "transport"
	KindTimeout         ErrorKind = "timeout"
	KindCanceled        ErrorKind = "canceled"
	KindRateLimited     ErrorKind = "rate_limited"
	KindServer          ErrorKind = "server_error"
	KindAuth            ErrorKind = "auth"
	KindBadRequest      ErrorKind = "bad_request"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// Error variables for common provider errors.
var (
	// ErrAuthFailed indicates an invalid, expired or unfunded API key (401/402/403).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the model or endpoint does not exist (404).
	ErrModelNotFound = errors.New("model not found")

	// ErrBadRequest indicates the provider rejected the request (400/422).
	ErrBadRequest = errors.New("bad request")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")

	// ErrInvalidResponse indicates a 200 whose body could not be understood.
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError is a non-success HTTP response from a provider.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string

	// RetryAfter is the delay the provider asked for on a 429, zero if none.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching Kind, so errors.Is(err, ErrRateLimited) works.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case KindAuth:
		return ErrAuthFailed
	case KindRateLimited:
		return ErrRateLimited
	case KindNotFound:
		return ErrModelNotFound
	case KindBadRequest:
		return ErrBadRequest
	case KindServer:
		return ErrServer
	case KindInvalidResponse:
		return ErrInvalidResponse
	}
	return nil
}

// kindForStatus maps an HTTP status onto a failure class.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusPaymentRequired, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	default:
		return KindBadRequest
	}
}

// Classify reports the failure class of an error returned by Complete.
// A nil error has no kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, ErrInvalidResponse) {
		return KindInvalidResponse
	}
	return KindTransport
}

// RetryAfterOf returns the provider-requested retry delay carried by err.
func RetryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// =============================================================================
// ERROR RESPONSE PARSING
// =============================================================================

// apiErrorResponse covers both the OpenAI/OpenRouter and Google error bodies.
type apiErrorResponse struct {
	Error struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
}

// handleErrorResponse converts a non-200 response into an *APIError.
func handleErrorResponse(status int, header http.Header, body []byte) *APIError {
	apiErr := &APIError{
		Kind:   kindForStatus(status),
		Status: status,
	}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Code = errorCode(parsed)
		for _, d := range parsed.Error.Details {
			if strings.Contains(d.Type, "RetryInfo") && d.RetryDelay != "" {
				apiErr.RetryAfter = ParseRetryDelay(d.RetryDelay)
			}
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}

	if apiErr.RetryAfter == 0 && header != nil {
		apiErr.RetryAfter = parseRetryAfterHeader(header.Get("Retry-After"))
	}
	return apiErr
}

func errorCode(parsed apiErrorResponse) string {
	if parsed.Error.Status != "" {
		return parsed.Error.Status
	}
	raw := strings.Trim(string(parsed.Error.Code), `"`)
	if raw == "null" {
		return ""
	}
	return raw
}

var (
	secondsDelayRE = regexp.MustCompile(`^(\d+)(?:\.\d+)?s$`)
	isoDelayRE     = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?$`)
)

// ParseRetryDelay parses a Google RetryInfo delay ("12s", "3.5s" or ISO
// 8601 "PT1M5S"). Unparseable input yields zero.
func ParseRetryDelay(s string) time.Duration {
	s = strings.TrimSpace(s)
	if m := secondsDelayRE.FindStringSubmatch(s); m != nil {
		secs, _ := strconv.Atoi(m[1])
		return time.Duration(secs) * time.Second
	}
	if m := isoDelayRE.FindStringSubmatch(s); m != nil && s != "PT" {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		secs, _ := strconv.Atoi(m[3])
		return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	}
	return 0
}

// parseRetryAfterHeader reads the delta-seconds form of Retry-After.
func parseRetryAfterHeader(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
