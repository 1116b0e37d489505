package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Estimate approximates how many model tokens text will use. Spanish
// clinical text runs longer per word than English, so the larger of a
// word-based and a character-based guess is returned.
func Estimate(text string) int {
	byWords := len(strings.Fields(text)) * 4 / 3
	byChars := utf8.RuneCountInString(text) / 4
	return max(byWords, byChars, 1)
}
