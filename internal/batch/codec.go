// Package batch implements the multipart wire format used by Gmail-compatible
// mailbox APIs for request batching: many sub-requests encoded into one
// multipart/mixed body, and the stacked sub-responses decoded back into
// ordered JSON fragments.
package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Wire format errors. All of them are terminal; a body that fails to decode
// is never retried.
var (
	// ErrEmptyBody is returned when the response body has no bytes at all.
	ErrEmptyBody = errors.New("batch: empty response body")

	// ErrNoDelimiter is returned when no delimiter precedes the first JSON byte.
	ErrNoDelimiter = errors.New("batch: no delimiter before first json byte")

	// ErrMalformedPayload is returned when the joined fragments fail to parse.
	ErrMalformedPayload = errors.New("batch: malformed batch payload")
)

// RequestSpec is one sub-request inside a batch body: the HTTP method and the
// path-only URL, e.g. GET /mail/v1/users/me/messages/a1.
type RequestSpec struct {
	Method string
	Path   string
}

const crlf = "\r\n"

// Encode builds a multipart/mixed batch body carrying one application/http
// part per sub-request, framed by the given boundary and terminated by the
// closing boundary line.
func Encode(reqs []RequestSpec, boundary string) []byte {
	var b bytes.Buffer
	for _, r := range reqs {
		b.WriteString("--" + boundary + crlf)
		b.WriteString("Content-Type: application/http" + crlf)
		b.WriteString(crlf)
		b.WriteString(r.Method + " " + r.Path + crlf)
		b.WriteString(crlf)
	}
	b.WriteString("--" + boundary + "--" + crlf)
	return b.Bytes()
}

// ContentType returns the request Content-Type header value for a body
// encoded with the given boundary.
func ContentType(boundary string) string {
	return "multipart/mixed; boundary=" + boundary
}

// Decode splits a batch response body into its JSON fragments, preserving
// response order.
//
// The delimiter is not the request boundary. The service frames every part
// with an identical run of boundary, part header, and status line noise, so
// the delimiter is derived from the response itself: everything before the
// first '{' byte. The body is truncated at the last closing boundary marker,
// split on the delimiter, and the surviving fragments are parsed in a single
// pass as one JSON array. Stray noise inside a fragment therefore surfaces
// as ErrMalformedPayload rather than being silently skipped.
func Decode(raw []byte) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyBody
	}

	brace := bytes.IndexByte(raw, '{')
	if brace <= 0 {
		return nil, ErrNoDelimiter
	}
	sep := raw[:brace]

	// Drop the closing boundary marker and everything after it. A body with
	// no closing marker is left untouched; the parse below arbitrates.
	marker := markerLine(sep)
	closing := make([]byte, 0, len(marker)+2)
	closing = append(closing, marker...)
	closing = append(closing, '-', '-')
	if end := bytes.LastIndex(raw, closing); end >= 0 {
		raw = raw[:end]
	}

	var frags [][]byte
	for _, part := range bytes.Split(raw, sep) {
		if len(part) == 0 {
			continue
		}
		frags = append(frags, part)
	}

	joined := make([]byte, 0, len(raw)+2)
	joined = append(joined, '[')
	joined = append(joined, bytes.Join(frags, []byte{','})...)
	joined = append(joined, ']')

	var docs []json.RawMessage
	if err := json.Unmarshal(joined, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return docs, nil
}

// markerLine returns the boundary marker line at the start of the delimiter,
// including any leading newline bytes, e.g. "\r\n--batch_x".
func markerLine(sep []byte) []byte {
	i := 0
	for i < len(sep) && (sep[i] == '\r' || sep[i] == '\n') {
		i++
	}
	j := i
	for j < len(sep) && sep[j] != '\r' && sep[j] != '\n' {
		j++
	}
	return sep[:j]
}
