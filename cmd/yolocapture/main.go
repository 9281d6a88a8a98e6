// yolocapture: device host that captures labelled frames for a YOLO dataset.
// Frames come from a webcam, detections from a YOLOv8 model, and captures are
// armed by a touch (Enter on stdin, or a remote trigger from the dataset
// server's device relay).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-yolocapture/internal/config"
	"github.com/teslashibe/go-yolocapture/internal/log"
	"github.com/teslashibe/go-yolocapture/pkg/capture"
	"github.com/teslashibe/go-yolocapture/pkg/encoder"
	"github.com/teslashibe/go-yolocapture/pkg/label"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
	"github.com/teslashibe/go-yolocapture/pkg/touch"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
	"github.com/teslashibe/go-yolocapture/pkg/vision"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "yolocapture:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var (
		enabled  = flag.Bool("enabled", config.Bool("CAPTURE_ENABLED", true), "Enable capture uploads")
		baseURL  = flag.String("url", config.String("CAPTURE_BASE_URL", "http://localhost:8000"), "Dataset server base URL")
		dataset  = flag.String("dataset", config.String("CAPTURE_DATASET", "default"), "Target dataset name")
		deviceID = flag.Int("camera", config.Int("CAMERA_DEVICE", 0), "Webcam device index")
		preset   = flag.String("resolution", config.String("CAMERA_RESOLUTION", vision.PresetDefault), "Resolution preset: default, vga, 720p, 1080p")
		model    = flag.String("model", config.String("YOLO_MODEL", vision.DefaultYOLOConfig().ModelPath), "YOLOv8 ONNX model path")
		conf     = flag.Float64("conf", 0.5, "Detection confidence threshold")
		classes  = flag.String("classes", config.String("YOLO_CLASSES", ""), "Comma-separated COCO class names to keep")
		relayURL = flag.String("relay", config.String("CAPTURE_RELAY_URL", ""), "Device relay websocket URL (ws://host/ws/device/<id>)")
		stdin    = flag.Bool("stdin", true, "Treat each line on stdin as a tap")
		interval = flag.Duration("interval", config.Duration("FRAME_INTERVAL", 100*time.Millisecond), "Frame polling interval")
		timeout  = flag.Duration("upload-timeout", config.Duration("UPLOAD_TIMEOUT", 0), "Upload timeout (0 = none)")
		level    = flag.String("log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	)
	flag.Parse()

	log.Init(*level)
	logger := log.Component("yolocapture")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := vision.GetPreset(*preset)
	if err != nil {
		return err
	}
	cam, err := vision.OpenWebcam(*deviceID, res.Width, res.Height)
	if err != nil {
		return err
	}
	defer cam.Close()

	var detector vision.Detector
	ycfg := vision.DefaultYOLOConfig()
	ycfg.ModelPath = *model
	ycfg.ConfidenceThresh = float32(*conf)
	if *classes != "" {
		ycfg.Classes = vision.ClassIndices(strings.Split(*classes, ","))
	}
	if yolo, err := vision.NewYOLO(ycfg, log.L()); err != nil {
		logger.Warn("detector unavailable, capturing without labels", "error", err)
	} else {
		detector = yolo
		defer yolo.Close()
	}

	cfg := capture.Config{Enabled: *enabled, BaseURL: *baseURL, Dataset: *dataset}

	var remote *touch.Remote
	opts := []capture.Option{capture.WithLogger(log.L())}
	if *timeout > 0 && cfg.Enabled {
		client, err := upload.NewClient(
			upload.WithBaseURL(cfg.BaseURL),
			upload.WithTimeout(*timeout),
			upload.WithLogger(log.L()),
		)
		if err != nil {
			return err
		}
		opts = append(opts, capture.WithUploader(client))
	}
	opts = append(opts, capture.WithStateHook(func(st capture.State) {
		if remote == nil {
			return
		}
		err := remote.ReportState(protocol.StateData{
			Enabled:   cfg.Enabled,
			Capturing: st.Capturing,
			Count:     st.Count,
			Dataset:   cfg.Dataset,
		})
		if err != nil && !errors.Is(err, touch.ErrNotConnected) {
			logger.Debug("state report failed", "error", err)
		}
	}))

	orch, err := capture.New(cfg, encoder.NewJPEG(), opts...)
	if err != nil {
		return err
	}

	if *relayURL != "" {
		remote = touch.NewRemote(*relayURL, orch.OnTouchEvent, touch.WithLogger(log.L()))
		go remote.Run(ctx)
	}
	if *stdin {
		go func() {
			if err := touch.ReadLines(ctx, os.Stdin, orch.OnTouchEvent); err != nil && ctx.Err() == nil {
				logger.Warn("stdin touch source stopped", "error", err)
			}
		}()
	}

	logger.Info("capture host started",
		"enabled", cfg.Enabled,
		"url", cfg.BaseURL,
		"dataset", cfg.Dataset,
		"detector", detector != nil,
		"relay", *relayURL != "")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "captures", orch.CaptureCount())
			return nil
		case <-ticker.C:
		}

		if !orch.IsCapturing() {
			continue
		}

		frame, err := cam.Read()
		if err != nil {
			logger.Warn("frame read failed", "error", err)
			continue
		}

		var dets []label.Detection
		if detector != nil {
			if dets, err = detector.Detect(frame); err != nil {
				logger.Warn("detection failed", "error", err)
			}
		}

		attempt := orch.Capture(ctx, frame, dets, func(res upload.Result) {
			if res == nil {
				logger.Warn("upload not stored")
				return
			}
			logger.Info("upload stored", "split", res.String("split"), "image", res.String("image"))
		})
		go func() {
			if _, err := attempt.Wait(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, capture.ErrCaptureDisabled) {
				logger.Error("capture failed", "seq", attempt.Seq(), "error", err)
			}
		}()
	}
}
