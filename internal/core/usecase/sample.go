package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const DefaultSampleWindow = 1000

var DefaultSampleMarkers = []string{"chapter", "introduction", "prologue"}

// SampleExtractor cuts a representative excerpt out of converted text.
type SampleExtractor struct {
	window  int
	markers [][]rune
}

func NewSampleExtractor(window int, markers []string) *SampleExtractor {
	if window <= 0 {
		window = DefaultSampleWindow
	}
	e := &SampleExtractor{window: window}
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		e.markers = append(e.markers, lowerRunes([]rune(m)))
	}
	return e
}

// Extract returns up to window runes starting at the earliest marker, or at
// the beginning of the text when no marker occurs. Front matter such as
// tables of contents is usually skipped this way.
func (e *SampleExtractor) Extract(text string) string {
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return ""
	}
	lowered := lowerRunes(runes)

	start := -1
	for _, marker := range e.markers {
		pos := indexRunes(lowered, marker)
		if pos >= 0 && (start < 0 || pos < start) {
			start = pos
		}
	}
	if start < 0 {
		start = 0
	}
	end := start + e.window
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// lowerRunes keeps rune offsets aligned with the source, which strings.ToLower does not guarantee.
func lowerRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
