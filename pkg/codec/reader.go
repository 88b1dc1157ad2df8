// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/absmach/streetlight/pkg/errors"
)

// Reader parses messages from a byte stream. It buffers the stream, so all
// reads from the same stream should go through one Reader (or through the
// *bufio.Reader returned by Buffered).
type Reader struct {
	br *bufio.Reader

	// MaxLineBytes limits the length of the start line and of each header
	// line, terminator included. Zero means no limit.
	MaxLineBytes int
}

// NewReader returns a Reader over r. An existing *bufio.Reader is used as is.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br}
}

// Buffered returns the underlying buffered reader, positioned right after
// the last message read.
func (r *Reader) Buffered() *bufio.Reader {
	return r.br
}

// ReadRequest reads one request from r.
func ReadRequest(r io.Reader) (*Request, error) {
	return NewReader(r).ReadRequest()
}

// ReadResponse reads one response from r.
func ReadResponse(r io.Reader) (*Response, error) {
	return NewReader(r).ReadResponse()
}

// ReadRequest reads a request line, a header block and a Content-Length
// delimited body. It returns ErrConnectionClosed if the stream ends before
// the first byte of the request.
func (r *Reader) ReadRequest() (*Request, error) {
	line, err := r.readStartLine()
	if err != nil {
		return nil, err
	}
	method, target, v, err := ParseRequestLine(line)
	if err != nil {
		return nil, err
	}
	hdr, body, err := r.readHeadersAndBody()
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  method,
		Target:  target,
		Version: v,
		Header:  hdr,
		Body:    body,
	}, nil
}

// ReadResponse reads a status line, a header block and a Content-Length
// delimited body.
func (r *Reader) ReadResponse() (*Response, error) {
	line, err := r.readStartLine()
	if err != nil {
		return nil, err
	}
	v, status, err := ParseStatusLine(line)
	if err != nil {
		return nil, err
	}
	hdr, body, err := r.readHeadersAndBody()
	if err != nil {
		return nil, err
	}
	return &Response{
		Version: v,
		Status:  status,
		Header:  hdr,
		Body:    body,
	}, nil
}

func (r *Reader) readStartLine() (string, error) {
	line, err := r.readLine()
	if err == io.EOF {
		return "", errors.New("read start line", "", errors.ErrConnectionClosed)
	}
	if err != nil {
		return "", errors.Wrap(err, "read start line")
	}
	return trimEOL(line), nil
}

func (r *Reader) readHeadersAndBody() (Headers, io.Reader, error) {
	var (
		hdr Headers
		n   uint64
	)
	for {
		line, err := r.readLine()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "read header line")
		}
		if line == crlf {
			break
		}
		h, err := ParseHeaderLine(trimEOL(line))
		if err != nil {
			return nil, nil, err
		}
		if strings.EqualFold(h.Name, HeaderContentLength) {
			if n, err = parseContentLength(h.Value); err != nil {
				return nil, nil, err
			}
		}
		hdr = append(hdr, h)
	}

	body, err := r.readBody(n)
	if err != nil {
		return nil, nil, err
	}
	return hdr, body, nil
}

// readBody reads exactly n bytes. The buffer grows with the data actually
// received rather than with the declared length.
func (r *Reader) readBody(n uint64) (io.Reader, error) {
	if n == 0 {
		return bytes.NewReader(nil), nil
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r.br, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "read body")
	}
	return bytes.NewReader(buf.Bytes()), nil
}

// readLine returns the next line including its "\n". It returns io.EOF only
// when the stream ends before any byte of the line.
func (r *Reader) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		line = append(line, chunk...)
		if r.MaxLineBytes > 0 && len(line) > r.MaxLineBytes {
			return "", errors.New("read line", "", errors.ErrLineTooLong)
		}
		switch err {
		case nil:
			return string(line), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) == 0 {
				return "", io.EOF
			}
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
