package upload

import (
	"fmt"
	"regexp"
)

var datasetPattern = regexp.MustCompile(`^[\w-]+$`)

// ValidDataset reports whether name is a non-empty run of word characters
// and hyphens.
func ValidDataset(name string) bool {
	return datasetPattern.MatchString(name)
}

// Request is the JSON body of POST /upload. Field order is the wire order.
type Request struct {
	Dataset     string `json:"dataset"`
	ImageBase64 string `json:"image_b64"`
	Label       string `json:"label"`
}

// Validate checks the dataset name. The payload is sent as the encoder
// produced it and an empty label is a valid "no detections" capture; the
// server judges both.
func (r *Request) Validate() error {
	if !ValidDataset(r.Dataset) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, r.Dataset)
	}
	return nil
}

// Result is the parsed JSON object returned by the endpoint on 200/201.
// A nil Result is the absence-of-result sentinel.
type Result map[string]any

// String returns the string field key, or "" when absent or not a string.
func (r Result) String(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r[key].(string)
	return s
}
