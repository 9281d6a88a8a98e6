package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/teslashibe/go-yolocapture/pkg/label"
	"golang.org/x/image/font/basicfont"
)

// PreviewQuality is the JPEG quality of rendered previews.
const PreviewQuality = 90

// Preview renders a random image of the dataset with its boxes drawn.
func (s *Store) Preview(name string) ([]byte, error) {
	imagePath, labelPath, err := s.Sample(name)
	if err != nil {
		return nil, err
	}
	return RenderPreview(imagePath, labelPath)
}

// RenderPreview draws the YOLO boxes from labelPath (if present) on the image
// at imagePath and returns JPEG bytes.
func RenderPreview(imagePath, labelPath string) ([]byte, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("dataset: read image %s: %w", imagePath, err)
	}

	var dets []label.Detection
	text, err := os.ReadFile(labelPath)
	switch {
	case err == nil:
		dets, err = label.Parse(string(text))
		if err != nil {
			return nil, fmt.Errorf("dataset: %s: %w", labelPath, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("dataset: read label: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, DrawBoxes(img, dets), imaging.JPEG, imaging.JPEGQuality(PreviewQuality)); err != nil {
		return nil, fmt.Errorf("dataset: encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// DrawBoxes draws red boxes with class-id tags for normalized YOLO
// (center x, center y, width, height) detections.
func DrawBoxes(img image.Image, dets []label.Detection) image.Image {
	if len(dets) == 0 {
		return img
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(2)

	for _, d := range dets {
		xc, yc, bw, bh := d.BoundingBox[0], d.BoundingBox[1], d.BoundingBox[2], d.BoundingBox[3]
		x0 := (xc - bw/2) * w
		y0 := (yc - bh/2) * h
		x1 := (xc + bw/2) * w
		y1 := (yc + bh/2) * h

		dc.SetRGB(1, 0, 0)
		dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
		dc.Stroke()

		tag := strconv.Itoa(d.ClassIndex)
		tw, th := dc.MeasureString(tag)
		ty := y0 - th - 4
		if ty < 0 {
			ty = y0
		}
		dc.DrawRectangle(x0, ty, tw+6, th+4)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawString(tag, x0+3, ty+th+1)
	}
	return dc.Image()
}
