// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"strconv"
	"strings"

	"github.com/absmach/streetlight/pkg/errors"
)

// Well-known header names.
const (
	HeaderContentLength    = "Content-Length"
	HeaderContentType      = "Content-Type"
	HeaderContentEncoding  = "Content-Encoding"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderHost             = "Host"
	HeaderCacheControl     = "Cache-Control"
	HeaderRetryAfter       = "Retry-After"
)

// Header is a single name/value pair as it appears on the wire.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header block. Duplicate names are allowed and name
// lookups ignore case; the stored casing is what gets written.
type Headers []Header

// Add validates name and value and appends them.
func (h *Headers) Add(name, value string) error {
	if !ValidHeaderName(name) {
		return errors.New("add header", name, errors.ErrInvalidHeaderName)
	}
	if !ValidHeaderValue(value) {
		return errors.New("add header", value, errors.ErrInvalidHeaderValue)
	}
	*h = append(*h, Header{Name: name, Value: value})
	return nil
}

// Get returns the first value stored under name.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value stored under name in order.
func (h Headers) Values(name string) []string {
	var vals []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// ContentLength returns the value of the last Content-Length header.
// ok is false when no such header is present.
func (h Headers) ContentLength() (n uint64, ok bool, err error) {
	for _, f := range h {
		if !strings.EqualFold(f.Name, HeaderContentLength) {
			continue
		}
		n, err = parseContentLength(f.Value)
		if err != nil {
			return 0, true, err
		}
		ok = true
	}
	return n, ok, nil
}

func parseContentLength(v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 63)
	if err != nil {
		return 0, errors.New("parse content length", v, errors.ErrInvalidContentLength)
	}
	return n, nil
}

// ParseHeaderLine parses one "name: value" line whose terminator has already
// been stripped. The line is split at the first colon and the value is
// trimmed of surrounding whitespace. Folded continuation lines are not
// recognized.
func ParseHeaderLine(line string) (Header, error) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return Header{}, errors.New("parse header line", line, errors.ErrMalformedHeaderLine)
	}
	value = strings.TrimSpace(value)
	if !ValidHeaderName(name) {
		return Header{}, errors.New("parse header line", name, errors.ErrInvalidHeaderName)
	}
	if !ValidHeaderValue(value) {
		return Header{}, errors.New("parse header line", value, errors.ErrInvalidHeaderValue)
	}
	return Header{Name: name, Value: value}, nil
}

// ValidHeaderName reports whether s is a non-empty token:
//
//	tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "." /
//	        "^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
func ValidHeaderName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenByte(s[i]) {
			return false
		}
	}
	return true
}

// ValidHeaderValue reports whether s holds only printable ASCII and
// horizontal tabs.
func ValidHeaderValue(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isValueByte(s[i]) {
			return false
		}
	}
	return true
}

func isTokenByte(c byte) bool {
	// 128-bit bitmap of allowed bytes; c >= 128 shifts out of both halves.
	const mask = 0 |
		(1<<(10)-1)<<'0' |
		(1<<(26)-1)<<'a' |
		(1<<(26)-1)<<'A' |
		1<<'!' |
		1<<'#' |
		1<<'$' |
		1<<'%' |
		1<<'&' |
		1<<'\'' |
		1<<'*' |
		1<<'+' |
		1<<'-' |
		1<<'.' |
		1<<'^' |
		1<<'_' |
		1<<'`' |
		1<<'|' |
		1<<'~'
	return ((uint64(1)<<c)&(mask&(1<<64-1)) |
		(uint64(1)<<(c-64))&(mask>>64)) != 0
}

func isValueByte(c byte) bool {
	return c == '\t' || (c >= 0x20 && c <= 0x7e)
}
