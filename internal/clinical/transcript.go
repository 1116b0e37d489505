package clinical

import "regexp"

// timestampMarkup matches the "[0.00s → 2.50s]" prefix recognizers put in
// front of each segment, plus the spaces that follow it.
var timestampMarkup = regexp.MustCompile(`\[\s*\d+(?:\.\d+)?s\s*(?:→|->)\s*\d+(?:\.\d+)?s\s*\][ \t]*`)

// CleanTranscript removes recognizer timestamp annotations and leaves every
// other character, newlines included, in place.
func CleanTranscript(text string) string {
	return timestampMarkup.ReplaceAllString(text, "")
}
