// Package fileid derives a stable document ID from a file path, used when a
// file is uploaded without an explicit doc_id.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"
)

const hashLen = 12

// FromPath returns "<slug>-<hash>" where slug is the lower-cased base name with
// runs of other characters collapsed to "-", and hash is the first 12 hex digits
// of the SHA-256 of the cleaned path. The same path always yields the same ID.
func FromPath(path string) string {
	normalized := filepath.Clean(path)
	sum := sha256.Sum256([]byte(normalized))
	h := hex.EncodeToString(sum[:])[:hashLen]

	slug := Slug(filepath.Base(normalized))
	if slug == "" {
		return h
	}
	return slug + "-" + h
}

// Slug lower-cases s and keeps letters and digits, joining the runs between
// them with single dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
