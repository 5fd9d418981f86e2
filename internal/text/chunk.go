package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinBudget is the smallest per-segment character budget the pipeline uses,
// regardless of what the caller asked for.
const MinBudget = 400

// DefaultBudget is the per-segment character budget used when none is configured.
const DefaultBudget = 1800

// sentenceUnit matches one sentence-like unit: everything up to a run of
// terminal punctuation (optionally followed by closing quotes or brackets)
// and whitespace, a paragraph break, or the end of the text.
var sentenceUnit = regexp.MustCompile(`(?s).+?(?:[.!?]+["')\]]*\s+|\n{2,}|$)`)

// Segment is one 1-indexed piece of source text, in source order.
type Segment struct {
	Index int
	Text  string
}

// Len returns the segment length in characters.
func (s Segment) Len() int { return utf8.RuneCountInString(s.Text) }

// EffectiveBudget clamps a requested budget to MinBudget.
func EffectiveBudget(maxChars int) int {
	if maxChars <= 0 {
		maxChars = DefaultBudget
	}
	return max(maxChars, MinBudget)
}

// SplitSegments splits text into segments of at most maxChars characters,
// grouping consecutive sentences greedily. A sentence longer than maxChars is
// hard-wrapped at the last whitespace at or before the budget, or cut exactly
// at the budget when the run has no whitespace.
// Segments are trimmed and empty ones are dropped.
func SplitSegments(text string, maxChars int) []Segment {
	if maxChars < 1 {
		maxChars = 1
	}

	units := sentenceUnit.FindAllString(NormalizeSpacing(text), -1)

	var (
		pieces  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
		curLen = 0
	}

	for _, unit := range units {
		n := utf8.RuneCountInString(unit)
		if curLen > 0 && curLen+n > maxChars {
			flush()
		}
		if n > maxChars {
			cuts, rest := hardWrap(unit, maxChars)
			pieces = append(pieces, cuts...)
			unit, n = rest, utf8.RuneCountInString(rest)
		}
		current.WriteString(unit)
		curLen += n
	}
	flush()

	segments := make([]Segment, 0, len(pieces))
	for i, p := range pieces {
		segments = append(segments, Segment{Index: i + 1, Text: p})
	}

	return segments
}

// hardWrap cuts s into pieces of at most maxChars characters and returns the
// pieces plus the remainder that fits within the budget.
func hardWrap(s string, maxChars int) ([]string, string) {
	var cuts []string

	r := []rune(s)
	for len(r) > maxChars {
		cut := lastSpaceAtOrBefore(r, maxChars)
		if piece := strings.TrimSpace(string(r[:cut])); piece != "" {
			cuts = append(cuts, piece)
		}
		r = []rune(strings.TrimLeftFunc(string(r[cut:]), unicode.IsSpace))
	}

	return cuts, string(r)
}

func lastSpaceAtOrBefore(r []rune, idx int) int {
	for i := idx; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return idx
}
