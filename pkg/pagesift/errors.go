package pagesift

import "fmt"

// ValidationError reports a malformed request. Validation failures
// are never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// BatchError reports the first failing item of a fail-fast batch.
type BatchError struct {
	Index int
	URL   string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
