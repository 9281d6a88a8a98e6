package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-yolocapture/pkg/dataset"
	"github.com/teslashibe/go-yolocapture/pkg/hub"
	"github.com/teslashibe/go-yolocapture/pkg/label"
	"github.com/teslashibe/go-yolocapture/pkg/protocol"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// handleUpload stores one (image, label) pair
func (s *Server) handleUpload(c *fiber.Ctx) error {
	req, err := decodeUploadRequest(c.Body())
	if err != nil {
		s.rejected.Add(1)
		return err
	}

	stored, err := s.store.Put(req)
	if err != nil {
		s.rejected.Add(1)
		return err
	}
	s.stored.Add(1)

	s.notifyUploaded(req, stored)
	return c.Status(fiber.StatusCreated).JSON(stored)
}

var uploadFields = []string{"dataset", "image_b64", "label"}

// decodeUploadRequest enforces the request model: a JSON object carrying
// every field as a string, with a dataset name matching [A-Za-z0-9_-]+.
// Violations are 422; content checks (blank label, bad base64) are left to
// the store and answer 400.
func decodeUploadRequest(body []byte) (*upload.Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "malformed upload body: "+err.Error())
	}
	for _, name := range uploadFields {
		if _, ok := fields[name]; !ok {
			return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "missing field: "+name)
		}
	}

	var req upload.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, "malformed upload body: "+err.Error())
	}
	if err := req.Validate(); err != nil {
		return nil, fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return &req, nil
}

func (s *Server) notifyUploaded(req *upload.Request, stored *dataset.Stored) {
	boxes := 0
	if dets, err := label.Parse(req.Label); err == nil {
		boxes = len(dets)
	}

	msg, err := protocol.NewUploadedMessage(protocol.UploadedData{
		Dataset: stored.Dataset,
		Split:   stored.Split,
		Image:   stored.Image,
		Label:   stored.Label,
		Boxes:   boxes,
	})
	if err != nil {
		s.logger.Warn("upload notification", "error", err)
		return
	}
	if err := s.uploads.BroadcastProtocol(msg); err != nil {
		s.logger.Warn("upload notification", "error", err)
		return
	}

	// Followed by the frame itself for live thumbnails.
	if s.uploads.ClientCount() > 0 {
		if img, err := base64.StdEncoding.DecodeString(req.ImageBase64); err == nil {
			s.uploads.BroadcastBinary(img)
		}
	}
}

// handlePreview returns a random image of the dataset with its boxes drawn
func (s *Server) handlePreview(c *fiber.Ctx) error {
	data, err := s.store.Preview(c.Params("dataset"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(data)
}

// handleDownload returns the dataset as a zip attachment
func (s *Server) handleDownload(c *fiber.Ctx) error {
	name := c.Params("dataset")

	var buf bytes.Buffer
	if err := s.store.Archive(name, &buf); err != nil {
		return err
	}

	c.Attachment(name + ".zip")
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(buf.Bytes())
}

// handleListDatasets returns per-split image counts for every dataset
func (s *Server) handleListDatasets(c *fiber.Ctx) error {
	all, err := s.store.List()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"datasets": all,
		"count":    len(all),
	})
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"devices": s.relay.DeviceCount(),
	})
}

// handleMetrics exposes counters in Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	stats := s.relay.GetStats()
	return c.SendString(fmt.Sprintf(`# HELP yolocapture_uploads_stored Uploads written to the store
# TYPE yolocapture_uploads_stored counter
yolocapture_uploads_stored %d

# HELP yolocapture_uploads_rejected Uploads refused by validation or storage
# TYPE yolocapture_uploads_rejected counter
yolocapture_uploads_rejected %d

# HELP yolocapture_feed_clients Connected upload feed clients
# TYPE yolocapture_feed_clients gauge
yolocapture_feed_clients %d

# HELP yolocapture_feed_dropped Upload notifications dropped on a full queue
# TYPE yolocapture_feed_dropped counter
yolocapture_feed_dropped %d

# HELP yolocapture_devices Connected capture devices
# TYPE yolocapture_devices gauge
yolocapture_devices %d

# HELP yolocapture_triggers_sent Remote capture triggers sent
# TYPE yolocapture_triggers_sent counter
yolocapture_triggers_sent %d
`, s.stored.Load(), s.rejected.Load(), s.uploads.ClientCount(), s.uploads.Dropped(),
		stats.DeviceCount, stats.TriggersSent))
}

// handleUploadsWS streams upload notifications to a dashboard
func (s *Server) handleUploadsWS(c *websocket.Conn) {
	hub.Serve(s.uploads, c)
}

// handleError renders every error as {"detail": message}
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		msg = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"detail": msg})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, dataset.ErrEmptyLabel),
		errors.Is(err, dataset.ErrInvalidImage):
		return fiber.StatusBadRequest
	// A name outside the pattern can never have been stored.
	case errors.Is(err, dataset.ErrInvalidDataset),
		errors.Is(err, dataset.ErrDatasetNotFound),
		errors.Is(err, dataset.ErrEmptyDataset):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
