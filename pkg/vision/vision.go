// Package vision supplies frames and detections to a capture host: a gocv
// webcam source and a YOLOv8 ONNX detector that reports boxes in normalized
// YOLO form.
package vision

import (
	"image"

	"github.com/teslashibe/go-yolocapture/pkg/label"
)

// Source yields camera frames.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Detector finds objects in a frame.
type Detector interface {
	Detect(frame image.Image) ([]label.Detection, error)
	Close() error
}

// Normalize converts a pixel rectangle in a frame of size w x h to YOLO
// form: center x, center y, width, height, each in [0, 1].
func Normalize(box image.Rectangle, w, h int) [4]float64 {
	box = box.Intersect(image.Rect(0, 0, w, h))
	if box.Empty() || w <= 0 || h <= 0 {
		return [4]float64{}
	}
	fw, fh := float64(w), float64(h)
	return [4]float64{
		(float64(box.Min.X) + float64(box.Dx())/2) / fw,
		(float64(box.Min.Y) + float64(box.Dy())/2) / fh,
		float64(box.Dx()) / fw,
		float64(box.Dy()) / fh,
	}
}
