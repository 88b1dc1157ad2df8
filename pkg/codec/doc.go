// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package codec reads and writes HTTP/1.1 messages on a blocking byte stream.
//
// # Overview
//
// The codec turns bytes into Request and Response values and back. It does
// not own the stream: callers open, close and share it. Every call blocks
// until the message is complete or the stream fails, and no state is kept
// between calls.
//
// # Wire Format
//
//	request-line  = METHOD SP TARGET SP VERSION CRLF
//	status-line   = VERSION SP STATUS-CODE [ SP REASON-PHRASE ] CRLF
//	header-line   = Name ":" OWS value OWS CRLF
//	message       = start-line *header-line CRLF body
//
// The body is exactly Content-Length bytes. When several Content-Length
// headers appear the last one wins; without one the body is empty.
// Transfer-Encoding is kept as an ordinary header and never decoded.
//
// # Versions
//
// Only the tokens HTTP/0.9, HTTP/1.0, HTTP/1.1, HTTP/2.0 and HTTP/3.0 are
// accepted, case-sensitively. They only label the message; framing is the
// same for all of them.
//
// # Errors
//
// Parse failures wrap the sentinels of package
// github.com/absmach/streetlight/pkg/errors:
//   - ErrConnectionClosed: the stream ended before a start line
//   - ErrMalformedStartLine: wrong number of start line fields
//   - ErrUnsupportedVersion: unknown version token
//   - ErrInvalidStatusCode: status code is not three digits
//   - ErrMalformedHeaderLine: header line without a colon
//   - ErrInvalidHeaderName, ErrInvalidHeaderValue: grammar violations
//   - ErrInvalidContentLength: Content-Length is not a decimal length
//
// A stream that ends inside a message yields io.ErrUnexpectedEOF. No
// failure is recovered from; after one the stream position is undefined.
//
// # Example
//
//	req, err := codec.ReadRequest(conn)
//	if errors.Is(err, errors.ErrConnectionClosed) {
//		return nil
//	}
//	if err != nil {
//		return err
//	}
//	body := []byte("<h1>You requested " + req.Target + "</h1>")
//	resp := codec.NewResponse(codec.StatusOK, body)
//	resp.Header.Add(codec.HeaderContentType, "text/html")
//	return codec.WriteResponse(conn, resp)
package codec
