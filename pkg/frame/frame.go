// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package frame implements a length-prefixed framing for streaming payloads
// over an established exchange.
//
// A frame is the decimal payload length, CRLF, the payload and another CRLF:
//
//	3\r\nabc\r\n
//
// This is a custom scheme. Lengths are decimal, there are no extensions,
// trailers or terminating zero-length chunk, so it does not interoperate
// with HTTP chunked transfer-encoding. Readers loop until the stream closes
// or the application recognizes a final payload.
package frame

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/absmach/streetlight/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

const crlf = "\r\n"

// Writer writes frames to a stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes payload as a single frame using one Write call.
func (fw *Writer) WriteFrame(payload []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = strconv.AppendInt(buf.B, int64(len(payload)), 10)
	buf.B = append(buf.B, crlf...)
	buf.B = append(buf.B, payload...)
	buf.B = append(buf.B, crlf...)

	if _, err := fw.w.Write(buf.B); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// Reader reads frames from a stream.
type Reader struct {
	br *bufio.Reader

	// MaxFrameSize rejects larger frames with ErrInvalidFrameSize. Zero
	// means no limit.
	MaxFrameSize uint64
}

// NewReader returns a Reader over r. An existing *bufio.Reader is used as
// is, so frames can follow a message read by codec.Reader.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br}
}

// ReadFrame returns the next payload. It returns io.EOF if the stream ends
// cleanly before a size line.
func (fr *Reader) ReadFrame() ([]byte, error) {
	line, err := fr.br.ReadString('\n')
	if err == io.EOF && line == "" {
		return nil, io.EOF
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, errors.Wrap(err, "read frame size")
	}

	size := trimEOL(line)
	n, err := strconv.ParseUint(size, 10, 63)
	if err != nil || (fr.MaxFrameSize > 0 && n > fr.MaxFrameSize) {
		return nil, errors.New("read frame size", size, errors.ErrInvalidFrameSize)
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, fr.br, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "read frame payload")
	}

	var eol [2]byte
	if _, err := io.ReadFull(fr.br, eol[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "read frame terminator")
	}
	if string(eol[:]) != crlf {
		return nil, errors.New("read frame terminator", string(eol[:]), errors.ErrMalformedFrame)
	}

	return buf.Bytes(), nil
}

func trimEOL(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
