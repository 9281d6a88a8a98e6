package dataset

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrInvalidDataset is returned for names outside [A-Za-z0-9_-]+.
	ErrInvalidDataset = errors.New("dataset: invalid dataset name")

	// ErrEmptyLabel is returned when an upload's label is blank.
	ErrEmptyLabel = errors.New("dataset: label cannot be empty")

	// ErrInvalidImage is returned when the image payload is not valid base64.
	ErrInvalidImage = errors.New("dataset: invalid base64 image")

	// ErrDatasetNotFound is returned when no directory exists for a dataset.
	ErrDatasetNotFound = errors.New("dataset: not found")

	// ErrEmptyDataset is returned when a dataset holds no images.
	ErrEmptyDataset = errors.New("dataset: no images available")
)
