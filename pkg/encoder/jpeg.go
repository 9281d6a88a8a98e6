package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Quality is the fixed JPEG quality used for uploads.
const Quality = 95

// JPEG encodes frames as high-quality JPEG wrapped in standard base64.
// The quality and format are fixed.
type JPEG struct{}

// NewJPEG returns the default frame encoder.
func NewJPEG() *JPEG {
	return &JPEG{}
}

// Encode implements Encoder.
func (JPEG) Encode(ctx context.Context, frame image.Image) (string, error) {
	if frame == nil || frame.Bounds().Empty() {
		return "", fmt.Errorf("%w: empty frame", ErrEncodeFailed)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(Quality)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
