package docmerge

import (
	"fmt"
	"strings"
)

// Default filenames for delivered artifacts.
const (
	DefaultPDFFilename      = "merged-document.pdf"
	DefaultMarkdownFilename = "merged-document.md"
)

// ContentDisposition builds an attachment Content-Disposition header
// value using the RFC 5987 filename* form, so non-ASCII filenames
// (e.g. "informe-técnico.pdf") survive the download round trip.
func ContentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", encodeRFC5987(filename))
}

// encodeRFC5987 percent-encodes a string as an RFC 5987 value-chars
// sequence: attr-char bytes pass through, everything else (including
// every UTF-8 continuation byte) is percent-encoded.
func encodeRFC5987(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// isAttrChar reports whether c is an RFC 5987 attr-char.
func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
