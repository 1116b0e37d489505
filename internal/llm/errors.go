package llm

import (
	"errors"
	"fmt"
)

// UpstreamError is returned when a provider answers with a non-success
// status. StatusCode and Body are the upstream values, echoed to callers.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsUpstream reports whether err carries an *UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
