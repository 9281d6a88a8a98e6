package vision

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ErrReadFailed is returned when the camera yields no frame.
var ErrReadFailed = errors.New("vision: cannot read frame")

// Webcam reads frames from a local video capture device.
type Webcam struct {
	deviceID int

	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenWebcam opens the capture device. width and height request a capture
// resolution; zero keeps the device default.
func OpenWebcam(deviceID, width, height int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("vision: open device %d: %w", deviceID, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Webcam{deviceID: deviceID, cap: vc, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame.
func (w *Webcam) Read() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, fmt.Errorf("%w: device %d", ErrReadFailed, w.deviceID)
	}
	return w.mat.ToImage()
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mat.Close()
	return w.cap.Close()
}
