// Package domain provides shared domain-level sentinel errors and the
// vendor error classification used by the retry policy.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed or unacceptable caller input. Never retried.
var ErrValidation = errors.New("validation failed")

// ErrAuth indicates a rejected credential. Never retried.
var ErrAuth = errors.New("authentication failed")

// ErrRateLimited indicates the remote vendor refused the call for quota reasons.
var ErrRateLimited = errors.New("rate limited")

// ErrTimeout indicates the operation exceeded its time budget.
var ErrTimeout = errors.New("timeout")

// ErrServer indicates a remote server-side failure (status >= 500).
var ErrServer = errors.New("server error")

// ErrTaskLimit indicates the task manager is at its concurrency ceiling.
var ErrTaskLimit = errors.New("concurrency limit exceeded")

// Error codes used by vendor adapters.
const (
	CodeValidation = "invalid_input"
	CodeAuth       = "invalid_credentials"
	CodeRateLimit  = "rate_limit"
	CodeTimeout    = "timeout"
	CodeServer     = "server_error"
	CodeNetwork    = "network"
	CodeUnknown    = "unknown"
)

// VendorError carries the classification of a failed vendor call: a short
// machine-checkable code, the HTTP status if one was observed, and a
// human-readable message. It wraps the matching sentinel so callers can use
// errors.Is against the taxonomy above.
type VendorError struct {
	Code       string
	HTTPStatus int
	Message    string
}

func (e *VendorError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("vendor error %s (http %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("vendor error %s: %s", e.Code, e.Message)
}

// Unwrap maps the error code onto the sentinel taxonomy.
func (e *VendorError) Unwrap() error {
	switch e.Code {
	case CodeValidation:
		return ErrValidation
	case CodeAuth:
		return ErrAuth
	case CodeRateLimit:
		return ErrRateLimited
	case CodeTimeout:
		return ErrTimeout
	case CodeServer:
		return ErrServer
	}
	return nil
}

// ClassifyHTTPStatus builds a VendorError from an HTTP status code and message.
func ClassifyHTTPStatus(status int, message string) *VendorError {
	code := CodeUnknown
	switch {
	case status == 401 || status == 403:
		code = CodeAuth
	case status == 408:
		code = CodeTimeout
	case status == 429:
		code = CodeRateLimit
	case status >= 500:
		code = CodeServer
	case status >= 400:
		code = CodeValidation
	}
	return &VendorError{Code: code, HTTPStatus: status, Message: message}
}
