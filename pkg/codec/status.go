// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"net/http"
	"strconv"

	"github.com/absmach/streetlight/pkg/errors"
)

// Status is a response status code and its reason phrase. Reason is empty
// for codes without a registered reason.
type Status struct {
	Code   int
	Reason string
}

// NewStatus returns the status for code with its canonical reason.
func NewStatus(code int) Status {
	return Status{Code: code, Reason: http.StatusText(code)}
}

// Common statuses.
var (
	StatusOK                  = NewStatus(http.StatusOK)
	StatusBadRequest          = NewStatus(http.StatusBadRequest)
	StatusForbidden           = NewStatus(http.StatusForbidden)
	StatusNotFound            = NewStatus(http.StatusNotFound)
	StatusMethodNotAllowed    = NewStatus(http.StatusMethodNotAllowed)
	StatusTooManyRequests     = NewStatus(http.StatusTooManyRequests)
	StatusInternalServerError = NewStatus(http.StatusInternalServerError)
	StatusBadGateway          = NewStatus(http.StatusBadGateway)
	StatusServiceUnavailable  = NewStatus(http.StatusServiceUnavailable)
)

// Canonical reports whether s carries a registered reason phrase.
func (s Status) Canonical() bool {
	return s.Reason != "" && s.Reason == http.StatusText(s.Code)
}

// String returns the code followed by the reason, if any.
func (s Status) String() string {
	if s.Reason == "" {
		return strconv.Itoa(s.Code)
	}
	return strconv.Itoa(s.Code) + " " + s.Reason
}

// parseStatusCode accepts exactly three ASCII digits in 100..999.
func parseStatusCode(s string) (Status, error) {
	if len(s) != 3 || s[0] < '1' || s[0] > '9' {
		return Status{}, errors.New("parse status code", s, errors.ErrInvalidStatusCode)
	}
	code := 0
	for i := 0; i < 3; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Status{}, errors.New("parse status code", s, errors.ErrInvalidStatusCode)
		}
		code = code*10 + int(c-'0')
	}
	return NewStatus(code), nil
}
