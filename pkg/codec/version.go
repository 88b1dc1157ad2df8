// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package codec

import "github.com/absmach/streetlight/pkg/errors"

// Version is an HTTP protocol version.
type Version uint8

const (
	HTTP09 Version = iota
	HTTP10
	HTTP11
	HTTP2
	HTTP3
)

var versionTokens = [...]string{
	HTTP09: "HTTP/0.9",
	HTTP10: "HTTP/1.0",
	HTTP11: "HTTP/1.1",
	HTTP2:  "HTTP/2.0",
	HTTP3:  "HTTP/3.0",
}

// ParseVersion maps a wire token to a Version. Only the five canonical
// tokens are accepted and the match is case-sensitive.
func ParseVersion(token string) (Version, error) {
	for v, t := range versionTokens {
		if t == token {
			return Version(v), nil
		}
	}
	return 0, errors.New("parse version", token, errors.ErrUnsupportedVersion)
}

// String returns the wire token of v.
func (v Version) String() string {
	if int(v) < len(versionTokens) {
		return versionTokens[v]
	}
	return "HTTP/?"
}
