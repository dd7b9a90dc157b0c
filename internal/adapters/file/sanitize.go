package file

import (
	"imageblender/internal/core/domain"
	"strings"
)

const maxStemLength = 40

// SanitizeFilename reduces a client supplied name to a safe basename. Only the part after the last '/' or '\' is
// kept, every rune outside [A-Za-z0-9_-] in the stem becomes '_', and extensions other than the accepted image
// extensions are replaced with ".png".
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	stem, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		stem, ext = name[:i], strings.ToLower(name[i:])
	}

	if !domain.AcceptedExtensions[ext] {
		ext = ".png"
	}

	var b strings.Builder
	n := 0
	for _, r := range stem {
		if n == maxStemLength {
			break
		}

		if isSafeRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}

	safe := b.String()
	if strings.Trim(safe, "_") == "" {
		safe = "img"
	}

	return safe + ext
}

func isSafeRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}
