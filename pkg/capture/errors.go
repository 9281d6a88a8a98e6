package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrCaptureDisabled resolves attempts made while capture is disabled.
	// The callback has already received a nil result.
	ErrCaptureDisabled = errors.New("capture: disabled")

	// ErrEncodeFailed resolves attempts whose frame could not be encoded.
	// The callback is not invoked.
	ErrEncodeFailed = errors.New("capture: encode failed")

	// ErrInvalidBaseURL is returned by Config.Validate.
	ErrInvalidBaseURL = errors.New("capture: invalid base URL")

	// ErrInvalidDataset is returned by Config.Validate.
	ErrInvalidDataset = errors.New("capture: invalid dataset name")

	// ErrNoEncoder is returned by New when no encoder is supplied.
	ErrNoEncoder = errors.New("capture: encoder required")
)

// EncodeError carries the encoder's own error. It matches ErrEncodeFailed
// under errors.Is.
type EncodeError struct {
	Seq uint64
	Err error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("capture #%d: encode failed: %v", e.Seq, e.Err)
}

// Is reports ErrEncodeFailed as a match.
func (e *EncodeError) Is(target error) bool {
	return target == ErrEncodeFailed
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
