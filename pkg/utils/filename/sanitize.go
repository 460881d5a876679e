// Package filename derives safe download and output file names.
package filename

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxBase caps the stem length in bytes.
const maxBase = 120

// Sanitize turns an arbitrary name into a stem safe on all major
// filesystems: letters, digits, dots, dashes and underscores, with runs of
// separators collapsed and no leading or trailing dot or dash.
func Sanitize(name string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_':
			b.WriteRune(r)
			lastSep = false
		case !lastSep:
			b.WriteByte('-')
			lastSep = true
		}
	}
	s := strings.Trim(b.String(), "-.")
	if len(s) > maxBase {
		s = s[:maxBase]
		// Drop a rune cut in half
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
		s = strings.TrimRight(s, "-.")
	}
	return s
}

// Derived names a file produced from original: the sanitized stem of
// original, a suffix, and ext. An unusable original yields "<suffix><ext>".
func Derived(original, suffix, ext string) string {
	stem := Sanitize(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	if stem == "" || stem == "." {
		return suffix + ext
	}
	return stem + "-" + suffix + ext
}
