// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"strconv"
	"strings"

	"github.com/absmach/streetlight/pkg/errors"
)

// ParseRequestLine splits "METHOD TARGET VERSION" into its fields. Method
// and target are returned verbatim.
func ParseRequestLine(line string) (method, target string, v Version, err error) {
	fields := strings.Split(strings.TrimSpace(line), " ")
	if len(fields) != 3 {
		return "", "", 0, errors.New("parse request line", line, errors.ErrMalformedStartLine)
	}
	v, err = ParseVersion(fields[2])
	if err != nil {
		return "", "", 0, err
	}
	return fields[0], fields[1], v, nil
}

// ParseStatusLine splits "VERSION CODE [REASON]" into a version and status.
// The reason phrase may contain spaces; it is replaced by the canonical
// reason for the code.
func ParseStatusLine(line string) (Version, Status, error) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 2 {
		return 0, Status{}, errors.New("parse status line", line, errors.ErrMalformedStartLine)
	}
	v, err := ParseVersion(fields[0])
	if err != nil {
		return 0, Status{}, err
	}
	s, err := parseStatusCode(fields[1])
	if err != nil {
		return 0, Status{}, err
	}
	return v, s, nil
}

// AppendRequestLine appends "METHOD SP TARGET SP VERSION CRLF" to b.
func AppendRequestLine(b []byte, method, target string, v Version) []byte {
	b = append(b, method...)
	b = append(b, ' ')
	b = append(b, target...)
	b = append(b, ' ')
	b = append(b, v.String()...)
	return append(b, crlf...)
}

// AppendStatusLine appends "VERSION SP CODE [SP REASON] CRLF" to b.
func AppendStatusLine(b []byte, v Version, s Status) []byte {
	b = append(b, v.String()...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(s.Code), 10)
	if s.Reason != "" {
		b = append(b, ' ')
		b = append(b, s.Reason...)
	}
	return append(b, crlf...)
}
