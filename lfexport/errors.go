package lfexport

import "fmt"

// BodyTooLargeError rejects a request before an oversized body
// reaches the wire. Size is the byte count observed when the limit
// tripped; for streamed bodies that is the running total at the
// failing read, not the full body length.
type BodyTooLargeError struct {
	Size  int
	Limit int
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("Request body is too large (%d bytes), must be less than %d bytes.", e.Size, e.Limit)
}

// ExportTransportError is a delivery failure the fallback layer
// absorbs: a non-2xx response or a transport-level error.
type ExportTransportError struct {
	URL        string
	StatusCode int    // zero when the request never completed
	Status     string // response status line, when there was one
	Err        error  // transport error, nil on HTTP-status failures
}

func (e *ExportTransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export to %s failed: %s", e.URL, e.Err)
	}
	return fmt.Sprintf("export to %s failed: %s", e.URL, e.Status)
}

func (e *ExportTransportError) Unwrap() error { return e.Err }
