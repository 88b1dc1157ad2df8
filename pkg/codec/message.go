// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"io"
	"strconv"
)

const crlf = "\r\n"

// Request is an HTTP request message.
type Request struct {
	Method  string
	Target  string
	Version Version
	Header  Headers

	// Body yields at least as many bytes as the Content-Length header
	// declares. A nil Body reads as empty.
	Body io.Reader
}

// Response is an HTTP response message.
type Response struct {
	Version Version
	Status  Status
	Header  Headers
	Body    io.Reader
}

// NewRequest returns an HTTP/1.1 request with an empty body.
func NewRequest(method, target string) *Request {
	return &Request{
		Method:  method,
		Target:  target,
		Version: HTTP11,
	}
}

// NewResponse returns an HTTP/1.1 response carrying body and a matching
// Content-Length header.
func NewResponse(status Status, body []byte) *Response {
	resp := &Response{
		Version: HTTP11,
		Status:  status,
		Body:    bytes.NewReader(body),
	}
	resp.Header = Headers{{Name: HeaderContentLength, Value: strconv.Itoa(len(body))}}
	return resp
}

// ContentLength returns the declared body length, 0 when undeclared.
func (r *Request) ContentLength() (uint64, error) {
	n, _, err := r.Header.ContentLength()
	return n, err
}

// ContentLength returns the declared body length, 0 when undeclared.
func (r *Response) ContentLength() (uint64, error) {
	n, _, err := r.Header.ContentLength()
	return n, err
}
