package text

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

var horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)

// Normalize prepares raw input text for synthesis.
// It trims surrounding whitespace, normalizes line endings to \n,
// and rejects empty or whitespace-only input.
func Normalize(s string) (string, error) {
	s = normalizeLineEndings(s)
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// NormalizeSpacing converts line endings to \n and collapses runs of
// horizontal whitespace to a single space. Newlines are kept, so paragraph
// breaks survive.
func NormalizeSpacing(s string) string {
	return horizontalSpace.ReplaceAllString(normalizeLineEndings(s), " ")
}

func normalizeLineEndings(s string) string {
	// CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
