// Package multipart decodes multipart/form-data bodies by splitting on
// the RFC 2046 boundary directly. Target deployments cannot rely on the
// host framework's body-parsing facilities, so the byte/line grammar is
// handled here.
package multipart

import (
	"bytes"
	"regexp"
	"strings"
)

// Part is one decoded form field.
type Part struct {
	Filename string
	Data     []byte
}

// Form maps field name to its decoded part.
type Form map[string]Part

var (
	boundaryRe = regexp.MustCompile(`boundary=([^\s;]+)`)
	nameRe     = regexp.MustCompile(`name="([^"]+)"`)
	filenameRe = regexp.MustCompile(`filename="([^"]*)"`)
)

// Parse decodes a multipart body. Malformed input degrades to an empty
// or partial form, never an error: a content type without a boundary
// yields an empty form, parts without a Content-Disposition are skipped.
func Parse(contentType string, body []byte) Form {
	form := Form{}
	m := boundaryRe.FindStringSubmatch(contentType)
	if m == nil {
		return form
	}
	boundary := strings.Trim(m[1], `"`)
	delim := []byte("--" + boundary)

	segments := bytes.Split(body, delim)
	// First segment is the preamble, last the epilogue after the
	// closing "--" marker.
	for _, seg := range segments[1:] {
		if bytes.HasPrefix(seg, []byte("--")) {
			break
		}
		name, part, ok := parsePart(seg)
		if !ok {
			continue
		}
		form[name] = part
	}
	return form
}

func parsePart(seg []byte) (string, Part, bool) {
	seg = bytes.TrimPrefix(seg, []byte("\r\n"))
	seg = bytes.TrimPrefix(seg, []byte("\n"))

	header, payload, ok := splitHeader(seg)
	if !ok {
		return "", Part{}, false
	}

	disposition := ""
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.ToLower(line), "content-disposition:") {
			disposition = line
			break
		}
	}
	if disposition == "" {
		return "", Part{}, false
	}
	nm := nameRe.FindStringSubmatch(disposition)
	if nm == nil {
		return "", Part{}, false
	}
	part := Part{Data: payload}
	if fn := filenameRe.FindStringSubmatch(disposition); fn != nil {
		part.Filename = fn[1]
	}
	return nm[1], part, true
}

// splitHeader separates the part's header block from its payload and
// trims the trailing CRLF that precedes the next boundary.
func splitHeader(seg []byte) (string, []byte, bool) {
	sep := []byte("\r\n\r\n")
	idx := bytes.Index(seg, sep)
	if idx < 0 {
		sep = []byte("\n\n")
		idx = bytes.Index(seg, sep)
		if idx < 0 {
			return "", nil, false
		}
	}
	header := string(seg[:idx])
	payload := seg[idx+len(sep):]
	payload = bytes.TrimSuffix(payload, []byte("\n"))
	payload = bytes.TrimSuffix(payload, []byte("\r"))
	return header, payload, true
}
