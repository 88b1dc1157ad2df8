// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides structured error handling for streetlight.
package errors

import (
	"errors"
	"fmt"
)

// Codec errors. Every parse failure is fatal to the message being read or
// written; callers match them with Is.
var (
	// ErrConnectionClosed indicates the peer closed the stream before sending a start line.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrMalformedStartLine indicates a start line with the wrong number of fields.
	ErrMalformedStartLine = errors.New("malformed start line")

	// ErrUnsupportedVersion indicates an unrecognized HTTP version token.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrInvalidStatusCode indicates a status code that is not three digits.
	ErrInvalidStatusCode = errors.New("invalid status code")

	// ErrInvalidHeaderName indicates a header name outside the token grammar.
	ErrInvalidHeaderName = errors.New("invalid header name")

	// ErrInvalidHeaderValue indicates a header value with forbidden bytes.
	ErrInvalidHeaderValue = errors.New("invalid header value")

	// ErrMalformedHeaderLine indicates a header line without a colon.
	ErrMalformedHeaderLine = errors.New("malformed header line")

	// ErrInvalidContentLength indicates a Content-Length that is not a decimal length.
	ErrInvalidContentLength = errors.New("invalid content length")

	// ErrInvalidFrameSize indicates a frame size line that is not a decimal length.
	ErrInvalidFrameSize = errors.New("invalid frame size")

	// ErrMalformedFrame indicates a payload not followed by CRLF.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrLineTooLong indicates a line longer than the configured limit.
	ErrLineTooLong = errors.New("line too long")
)

// Serving errors.
var (
	// ErrRateLimited indicates rate limit exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBackendUnavailable indicates the backend is unavailable.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the request was rejected by a handler.
	ErrForbidden = errors.New("forbidden")
)

// Error wraps a codec or serving error with the operation and offending input.
type Error struct {
	Op    string // Operation that failed
	Input string // Offending input, possibly empty
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s: %v: %q", e.Op, e.Err, e.Input)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error. It returns nil if err is nil.
func New(op, input string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:    op,
		Input: input,
		Err:   err,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Kind returns a short label for the codec sentinel err matches, used as a
// metric label. Unknown errors map to "io".
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrMalformedStartLine):
		return "malformed_start_line"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrInvalidStatusCode):
		return "invalid_status_code"
	case errors.Is(err, ErrInvalidHeaderName):
		return "invalid_header_name"
	case errors.Is(err, ErrInvalidHeaderValue):
		return "invalid_header_value"
	case errors.Is(err, ErrMalformedHeaderLine):
		return "malformed_header_line"
	case errors.Is(err, ErrInvalidContentLength):
		return "invalid_content_length"
	case errors.Is(err, ErrInvalidFrameSize):
		return "invalid_frame_size"
	case errors.Is(err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, ErrLineTooLong):
		return "line_too_long"
	default:
		return "io"
	}
}
