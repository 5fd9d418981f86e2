package text

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Chapter one":                     "Chapter one",
		"\t\n  Chapter one \n\t":          "Chapter one",
		"para one\r\npara two":            "para one\npara two",
		"old mac\rline":                   "old mac\nline",
		"a\r\nb\rc\nd":                    "a\nb\nc\nd",
		"  Ünïcödé   stays  ":             "Ünïcödé   stays",
		"first\r\n\r\nsecond paragraph\r": "first\n\nsecond paragraph",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Errorf("Normalize(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_RejectsBlank(t *testing.T) {
	for _, in := range []string{"", " ", "\r\n\t  \r"} {
		if _, err := Normalize(in); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Normalize(%q): want ErrEmptyText, got %v", in, err)
		}
	}
}

func TestNormalizeSpacing(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "one  two\tthree", want: "one two three"},
		{in: "tabs\t\t\tand\fform\vfeeds", want: "tabs and form feeds"},
		{in: "keep\r\n\r\nparagraphs", want: "keep\n\nparagraphs"},
		{in: "  edges stay  ", want: " edges stay "},
		{in: "line \n  indented", want: "line \n indented"},
	}
	for _, tt := range tests {
		if got := NormalizeSpacing(tt.in); got != tt.want {
			t.Errorf("NormalizeSpacing(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
