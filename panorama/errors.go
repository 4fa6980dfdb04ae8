// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is wrapped by every error caused by a missing, invalid or
	// unauthorized API key. Validation stops on the first one.
	ErrAuth = errors.New("street view credential rejected")

	// ErrMissingKey is returned when no API key could be resolved.
	ErrMissingKey = fmt.Errorf("%w: no API key configured (set MAP_API_KEY)", ErrAuth)

	// ErrRetriesExhausted marks records kept unvalidated after every attempt
	// failed.
	ErrRetriesExhausted = errors.New("panorama lookup retries exhausted")
)

// LookupError describes a failed panorama lookup.
type LookupError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies lookup failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure, retried.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit HTTP 429 or OVER_QUERY_LIMIT.
	ErrorTypeRateLimit
	// ErrorTypeServer 5xx responses and UNKNOWN_ERROR.
	ErrorTypeServer
	// ErrorTypeNetwork connection failures and timeouts.
	ErrorTypeNetwork
	// ErrorTypeMalformed undecodable or incomplete responses.
	ErrorTypeMalformed
	// ErrorTypeInvalidRequest the service refused this particular request.
	ErrorTypeInvalidRequest
	// ErrorTypeAuth the key is missing, invalid or not allowed to call the API.
	ErrorTypeAuth
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeMalformed:
		return "malformed"
	case ErrorTypeInvalidRequest:
		return "invalid_request"
	case ErrorTypeAuth:
		return "auth"
	default:
		return "unknown"
	}
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrAuth) match auth lookup errors.
func (e *LookupError) Is(target error) bool {
	return target == ErrAuth && e.Type == ErrorTypeAuth
}

// IsAuthError reports whether err is fatal for the whole validation run.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsRateLimitError reports whether the service asked us to slow down.
func IsRateLimitError(err error) bool {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Type == ErrorTypeRateLimit
	}

	return false
}

// IsRetryable reports whether repeating the same lookup may succeed.
func IsRetryable(err error) bool {
	if err == nil || IsAuthError(err) {
		return false
	}

	// the caller gave up; a client timeout surfaces as DeadlineExceeded and
	// is worth another try
	if errors.Is(err, context.Canceled) {
		return false
	}

	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Type != ErrorTypeInvalidRequest
	}

	return true
}

// ClassifyHTTPError maps a non 200 HTTP status to a LookupError.
func ClassifyHTTPError(statusCode int) *LookupError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &LookupError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &LookupError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("access denied (HTTP %d)", statusCode),
		}
	case statusCode == http.StatusBadRequest:
		return &LookupError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request (HTTP 400)",
		}
	case statusCode >= 500:
		return &LookupError{
			Type:    ErrorTypeServer,
			Message: fmt.Sprintf("service unavailable (HTTP %d)", statusCode),
		}
	default:
		return &LookupError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}

// ClassifyStatus maps a Street View metadata status other than OK,
// ZERO_RESULTS and NOT_FOUND to a LookupError.
func ClassifyStatus(status, message string) *LookupError {
	var t ErrorType

	switch status {
	case "OVER_QUERY_LIMIT":
		t = ErrorTypeRateLimit
	case "REQUEST_DENIED":
		t = ErrorTypeAuth
	case "INVALID_REQUEST":
		t = ErrorTypeInvalidRequest
	case "UNKNOWN_ERROR":
		t = ErrorTypeServer
	default:
		t = ErrorTypeUnknown
	}

	msg := "street view status " + status
	if message != "" {
		msg += ": " + message
	}

	return &LookupError{Type: t, Message: msg}
}
