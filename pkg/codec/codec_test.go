// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"testing"

	"github.com/absmach/streetlight/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestVersionRoundTrip(t *testing.T) {
	for _, token := range []string{"HTTP/0.9", "HTTP/1.0", "HTTP/1.1", "HTTP/2.0", "HTTP/3.0"} {
		v, err := ParseVersion(token)
		require.NoError(t, err, token)
		require.Equal(t, token, v.String())
	}
}

func TestParseVersionRejects(t *testing.T) {
	for _, token := range []string{"", "http/1.1", "HTTP/1.2", "HTTP/2", "HTTP/1.1 ", "HTTP/3"} {
		_, err := ParseVersion(token)
		require.ErrorIs(t, err, errors.ErrUnsupportedVersion, token)
	}
}

func TestParseHeaderLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Header
		err  error
	}{
		{name: "simple", line: "host: example.com", want: Header{"host", "example.com"}},
		{name: "value trimmed", line: "Content-Type: \t text/html \t", want: Header{"Content-Type", "text/html"}},
		{name: "split at first colon", line: "Host: localhost:8080", want: Header{"Host", "localhost:8080"}},
		{name: "empty value", line: "X-Empty:", want: Header{"X-Empty", ""}},
		{name: "inner tab kept", line: "X-Tab: a\tb", want: Header{"X-Tab", "a\tb"}},
		{name: "trailing CR trimmed", line: "X: a\r", want: Header{"X", "a"}},
		{name: "vertical tab trimmed", line: "X: a\v", want: Header{"X", "a"}},
		{name: "form feed trimmed", line: "X:\fv", want: Header{"X", "v"}},
		{name: "no colon", line: "no colon here", err: errors.ErrMalformedHeaderLine},
		{name: "empty line", line: "", err: errors.ErrMalformedHeaderLine},
		{name: "folded continuation", line: " continued value", err: errors.ErrMalformedHeaderLine},
		{name: "empty name", line: ": value", err: errors.ErrInvalidHeaderName},
		{name: "space before colon", line: "Host : x", err: errors.ErrInvalidHeaderName},
		{name: "delimiter in name", line: "Bad(: v", err: errors.ErrInvalidHeaderName},
		{name: "non-ascii name", line: "Ñame: v", err: errors.ErrInvalidHeaderName},
		{name: "control in value", line: "X: a\x01b", err: errors.ErrInvalidHeaderValue},
		{name: "del in value", line: "X: a\x7fb", err: errors.ErrInvalidHeaderValue},
		{name: "carriage return in value", line: "X: a\rb", err: errors.ErrInvalidHeaderValue},
		{name: "non-ascii value", line: "X: caf\xc3\xa9", err: errors.ErrInvalidHeaderValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaderLine(tt.line)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderPredicates(t *testing.T) {
	for _, name := range []string{"Host", "x-custom_header", "!#$%&'*+-.^_`|~", "A1"} {
		require.True(t, ValidHeaderName(name), name)
	}
	for _, name := range []string{"", "a b", "a:b", "a\tb", "a\"b", "a,b", "a/b", "{x}", "a\x00"} {
		require.False(t, ValidHeaderName(name), name)
	}
	for _, value := range []string{"", "text/html; charset=utf-8", "a\tb", " ~!"} {
		require.True(t, ValidHeaderValue(value), value)
	}
	for _, value := range []string{"a\nb", "a\rb", "\x00", "\x7f", "\x80"} {
		require.False(t, ValidHeaderValue(value), value)
	}
}

func TestHeaders(t *testing.T) {
	var h Headers
	require.NoError(t, h.Add("Set-Cookie", "a=1"))
	require.NoError(t, h.Add("content-length", "12"))
	require.NoError(t, h.Add("SET-COOKIE", "b=2"))
	require.ErrorIs(t, h.Add("bad name", "x"), errors.ErrInvalidHeaderName)
	require.ErrorIs(t, h.Add("X", "bad\r\nvalue"), errors.ErrInvalidHeaderValue)
	require.Len(t, h, 3)

	v, ok := h.Get("set-cookie")
	require.True(t, ok)
	require.Equal(t, "a=1", v)
	require.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
	require.Equal(t, "SET-COOKIE", h[2].Name)

	_, ok = h.Get("Host")
	require.False(t, ok)

	n, ok, err := h.ContentLength()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 12, n)
}

func TestHeadersContentLength(t *testing.T) {
	tests := []struct {
		name string
		hdr  Headers
		want uint64
		ok   bool
		err  error
	}{
		{name: "absent", hdr: Headers{{"Host", "x"}}},
		{name: "last wins", hdr: Headers{{"Content-Length", "5"}, {"content-length", "7"}}, want: 7, ok: true},
		{name: "non-numeric", hdr: Headers{{"Content-Length", "five"}}, ok: true, err: errors.ErrInvalidContentLength},
		{name: "negative", hdr: Headers{{"Content-Length", "-1"}}, ok: true, err: errors.ErrInvalidContentLength},
		{name: "above int64", hdr: Headers{{"Content-Length", "9223372036854775808"}}, ok: true, err: errors.ErrInvalidContentLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok, err := tt.hdr.ContentLength()
			require.Equal(t, tt.ok, ok)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, n)
		})
	}
}

func TestParseRequestLine(t *testing.T) {
	method, target, v, err := ParseRequestLine("GET /index.html?q=1 HTTP/1.0")
	require.NoError(t, err)
	require.Equal(t, "GET", method)
	require.Equal(t, "/index.html?q=1", target)
	require.Equal(t, HTTP10, v)

	for _, line := range []string{"GET /", "GET", "", "GET / HTTP/1.1 extra", "GET  / HTTP/1.1"} {
		_, _, _, err := ParseRequestLine(line)
		require.ErrorIs(t, err, errors.ErrMalformedStartLine, line)
	}

	_, _, _, err = ParseRequestLine("GET / HTTP/1.2")
	require.ErrorIs(t, err, errors.ErrUnsupportedVersion)
}

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		line    string
		version Version
		status  Status
		err     error
	}{
		{line: "HTTP/1.1 200 OK", version: HTTP11, status: Status{200, "OK"}},
		{line: "HTTP/1.1 404 Not Found", version: HTTP11, status: Status{404, "Not Found"}},
		{line: "HTTP/1.0 404", version: HTTP10, status: Status{404, "Not Found"}},
		{line: "HTTP/1.1 200 Everything Fine", version: HTTP11, status: Status{200, "OK"}},
		{line: "HTTP/1.1 599 Custom", version: HTTP11, status: Status{599, ""}},
		{line: "HTTP/1.1", err: errors.ErrMalformedStartLine},
		{line: "", err: errors.ErrMalformedStartLine},
		{line: "HTTP/9.9 200 OK", err: errors.ErrUnsupportedVersion},
		{line: "HTTP/1.1 2000 OK", err: errors.ErrInvalidStatusCode},
		{line: "HTTP/1.1 099 OK", err: errors.ErrInvalidStatusCode},
		{line: "HTTP/1.1 abc", err: errors.ErrInvalidStatusCode},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			v, s, err := ParseStatusLine(tt.line)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.version, v)
			require.Equal(t, tt.status, s)
		})
	}
}

func TestAppendStartLines(t *testing.T) {
	require.Equal(t, "GET / HTTP/1.1\r\n", string(AppendRequestLine(nil, "GET", "/", HTTP11)))
	require.Equal(t, "HTTP/1.1 200 OK\r\n", string(AppendStatusLine(nil, HTTP11, StatusOK)))
	require.Equal(t, "HTTP/2.0 599\r\n", string(AppendStatusLine(nil, HTTP2, Status{Code: 599})))
}

func TestStatus(t *testing.T) {
	require.Equal(t, "404 Not Found", StatusNotFound.String())
	require.Equal(t, "599", Status{Code: 599}.String())
	require.True(t, StatusOK.Canonical())
	require.False(t, Status{Code: 200, Reason: "Fine"}.Canonical())
}
