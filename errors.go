package vexora

import (
	"fmt"
	"time"
)

// ErrParse reports a document parser failure. The pipeline aborts before
// chunking when parsing fails; there is no fallback for unparseable input.
type ErrParse struct {
	Filename string
	Message  string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Filename, e.Message)
}

// ErrHTTP reports a non-2xx response from an external HTTP collaborator.
type ErrHTTP struct {
	Status int
	Body   string
	// RetryAfter holds the parsed Retry-After header, when present.
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
