package text

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 64

// FallbackBase is used when a name slugifies to nothing.
const FallbackBase = "audiofile"

// Slugify turns arbitrary text into a filesystem-friendly slug.
// "Chapter 1.01: Arrival?" becomes "chapter-1-01-arrival".
func Slugify(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(decomposed))

	prevHyphen := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// BaseName derives the output base identifier for an input file path.
func BaseName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if s := Slugify(stem); s != "" {
		return s
	}
	return FallbackBase
}
