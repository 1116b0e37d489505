package clinical

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// fence matches a code fence at the very start (optionally tagged json) or
// the very end of the reply.
var fence = regexp.MustCompile("(?i)^```(?:json)?|```$")

// ExtractObject pulls the leading JSON object out of a model reply. Code
// fences around the reply are removed and anything after the first complete
// JSON value is ignored.
func ExtractObject(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ExtractionError{Kind: EmptyResponse, Raw: raw}
	}

	cleaned := strings.TrimSpace(fence.ReplaceAllString(trimmed, ""))
	if cleaned == "" {
		return nil, &ExtractionError{Kind: EmptyResponse, Raw: raw}
	}

	var obj json.RawMessage
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&obj); err != nil {
		return nil, &ExtractionError{Kind: MalformedResponse, Raw: raw, Err: err}
	}
	if !isObject(obj) {
		return nil, &ExtractionError{Kind: MalformedResponse, Raw: raw, Err: errors.New("leading JSON value is not an object")}
	}
	return obj, nil
}
