// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"

	"github.com/absmach/streetlight/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// Writer serializes messages onto a byte stream.
type Writer struct {
	w io.Writer

	// Strict makes headers that fail validation abort the write. By default
	// such headers are left out of the output.
	Strict bool
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRequest writes req to w.
func WriteRequest(w io.Writer, req *Request) error {
	return NewWriter(w).WriteRequest(req)
}

// WriteResponse writes resp to w.
func WriteResponse(w io.Writer, resp *Response) error {
	return NewWriter(w).WriteResponse(resp)
}

// WriteRequest writes the request line, the header block and exactly
// Content-Length bytes of the body.
func (w *Writer) WriteRequest(req *Request) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = AppendRequestLine(buf.B, req.Method, req.Target, req.Version)
	return w.writeMessage(buf, req.Header, req.Body)
}

// WriteResponse writes the status line, the header block and exactly
// Content-Length bytes of the body.
func (w *Writer) WriteResponse(resp *Response) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = AppendStatusLine(buf.B, resp.Version, resp.Status)
	return w.writeMessage(buf, resp.Header, resp.Body)
}

// writeMessage completes the head in buf, flushes it with a single write
// and copies the body. The declared length is trusted: a longer body is
// truncated and a shorter one yields io.ErrUnexpectedEOF.
func (w *Writer) writeMessage(buf *bytebufferpool.ByteBuffer, hdr Headers, body io.Reader) error {
	n, _, err := hdr.ContentLength()
	if err != nil {
		return err
	}
	if err := w.appendHeaders(buf, hdr); err != nil {
		return err
	}
	if _, err := w.w.Write(buf.B); err != nil {
		return errors.Wrap(err, "write head")
	}
	if n == 0 {
		return nil
	}
	if body == nil {
		return errors.Wrap(io.ErrUnexpectedEOF, "write body")
	}
	if _, err := io.CopyN(w.w, body, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrap(err, "write body")
	}
	return nil
}

func (w *Writer) appendHeaders(buf *bytebufferpool.ByteBuffer, hdr Headers) error {
	for _, h := range hdr {
		if !ValidHeaderName(h.Name) {
			if w.Strict {
				return errors.New("write header", h.Name, errors.ErrInvalidHeaderName)
			}
			continue
		}
		if !ValidHeaderValue(h.Value) {
			if w.Strict {
				return errors.New("write header", h.Value, errors.ErrInvalidHeaderValue)
			}
			continue
		}
		buf.B = append(buf.B, h.Name...)
		buf.B = append(buf.B, ": "...)
		buf.B = append(buf.B, h.Value...)
		buf.B = append(buf.B, crlf...)
	}
	buf.B = append(buf.B, crlf...)
	return nil
}
