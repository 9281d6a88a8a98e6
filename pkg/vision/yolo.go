package vision

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/teslashibe/go-yolocapture/pkg/label"
	"gocv.io/x/gocv"
)

// ErrModelNotFound is returned when the ONNX model file is missing.
var ErrModelNotFound = errors.New("vision: model file not found")

// YOLOConfig holds YOLO detector configuration
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int

	// Classes restricts output to these class indices. Empty keeps all.
	Classes []int
}

// DefaultYOLOConfig returns production defaults for YOLOv8n
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// YOLO runs a YOLOv8 ONNX model through the OpenCV DNN module.
type YOLO struct {
	net    gocv.Net
	config YOLOConfig
	keep   map[int]bool
	logger *slog.Logger

	mu        sync.Mutex
	inputSize image.Point
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg YOLOConfig, logger *slog.Logger) (*YOLO, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("vision: failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}

	var keep map[int]bool
	if len(cfg.Classes) > 0 {
		keep = make(map[int]bool, len(cfg.Classes))
		for _, c := range cfg.Classes {
			keep[c] = true
		}
	}

	return &YOLO{
		net:       net,
		config:    cfg,
		keep:      keep,
		logger:    logger.With("component", "vision.yolo"),
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect returns the objects found in frame as normalized YOLO records.
func (d *YOLO) Detect(frame image.Image) ([]label.Detection, error) {
	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("vision: convert frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("vision: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 4+classes, candidates].
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("vision: unexpected output shape %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("vision: read output: %w", err)
	}

	cand := decodeCandidates(data, sizes[1], sizes[2], d.config.ConfidenceThresh,
		float32(img.Cols())/float32(d.config.InputWidth),
		float32(img.Rows())/float32(d.config.InputHeight))
	if len(cand.boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(cand.boxes, cand.scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	dets := make([]label.Detection, 0, len(indices))
	for _, idx := range indices {
		class := cand.classes[idx]
		if d.keep != nil && !d.keep[class] {
			continue
		}
		dets = append(dets, label.Detection{
			ClassIndex:  class,
			BoundingBox: Normalize(cand.boxes[idx], img.Cols(), img.Rows()),
		})
	}

	if len(dets) > 0 {
		d.logger.Debug("objects detected", "count", len(dets))
	}
	return dets, nil
}

// Close releases the detector resources
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

type candidates struct {
	boxes   []image.Rectangle
	scores  []float32
	classes []int
}

// decodeCandidates reads a channel-major YOLOv8 tensor with attrs rows
// (cx, cy, w, h, class scores...) and n columns. Boxes are scaled from model
// input space to frame pixels.
func decodeCandidates(data []float32, attrs, n int, thresh, scaleX, scaleY float32) candidates {
	var out candidates
	for i := 0; i < n; i++ {
		best := float32(0)
		class := 0
		for c := 4; c < attrs; c++ {
			if score := data[c*n+i]; score > best {
				best = score
				class = c - 4
			}
		}
		if best < thresh {
			continue
		}

		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]

		out.boxes = append(out.boxes, image.Rect(
			int((cx-w/2)*scaleX),
			int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX),
			int((cy+h/2)*scaleY),
		))
		out.scores = append(out.scores, best)
		out.classes = append(out.classes, class)
	}
	return out
}
