package upload

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when the client has no endpoint configured.
	ErrNoBaseURL = errors.New("upload: base URL required")

	// ErrInvalidDataset is returned for empty or malformed dataset names.
	ErrInvalidDataset = errors.New("upload: invalid dataset name")
)

// TransportError means the request could not be sent or its response could
// not be received. Uploads are never retried.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("upload: transport failure for %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means a success response carried a body that is not a JSON object.
type DecodeError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("upload: decode %d response: %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
