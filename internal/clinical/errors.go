package clinical

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a model reply could not become a record.
type ErrorKind string

const (
	EmptyResponse     ErrorKind = "empty_response"
	MalformedResponse ErrorKind = "malformed_response"
)

var (
	// ErrUnsupportedMediaType is returned for uploads whose type the endpoint
	// does not accept.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrEmptyTranscript is returned when there is no text left to extract
	// from after normalization.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// ExtractionError reports a model reply that held no usable JSON object.
// Raw is the reply as received.
type ExtractionError struct {
	Kind ErrorKind
	Raw  string
	Err  error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case EmptyResponse:
		return "empty model response: no content to parse"
	case MalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("malformed model response: %v", e.Err)
		}
		return "malformed model response"
	default:
		return fmt.Sprintf("extraction error (%s)", e.Kind)
	}
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsKind reports whether err is an *ExtractionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == kind
}
