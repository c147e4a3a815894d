package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/vision"
)

// ClassifyRequest is the request body for classifying a posted image.
// Image is base64 in JSON; MIMEType is sniffed when empty.
type ClassifyRequest struct {
	Image    []byte `json:"image"`
	MIMEType string `json:"mime_type"`
	Count    int    `json:"count"`
}

// DescribeRequest is the request body for the describe endpoints. A
// missing prompt falls back to the configured one.
type DescribeRequest struct {
	Image    []byte `json:"image"`
	MIMEType string `json:"mime_type"`
	Prompt   string `json:"prompt"`
}

// classificationEvent is broadcast to /ws/results subscribers.
type classificationEvent struct {
	Event           string                  `json:"event"`
	Camera          string                  `json:"camera"`
	Classifications []vision.Classification `json:"classifications"`
	Model           string                  `json:"model,omitempty"`
	TookMs          int64                   `json:"took_ms"`
	At              time.Time               `json:"at"`
}

// handleStatus reports service health and connection counts.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"service":  "gemini-vision-service",
		"status":   "ok",
		"uptime_s": int64(time.Since(s.started).Seconds()),
		"model":    s.config.Model,
		"camera":   s.config.DefaultCamera,
		"cameras":  s.cameras.Names(),
	}
	if s.results != nil {
		status["result_clients"] = s.results.ClientCount()
	}
	if s.agents != nil {
		status["ingest"] = s.agents.GetStats()
	}
	return c.JSON(status)
}

// handleProperties reports which vision capabilities are available.
func (s *Server) handleProperties(c *fiber.Ctx) error {
	props, err := s.svc.Properties(c.Context())
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(props)
}

// handleCameras lists the registered cameras.
func (s *Server) handleCameras(c *fiber.Ctx) error {
	names := s.cameras.Names()
	return c.JSON(fiber.Map{
		"cameras": names,
		"count":   len(names),
	})
}

// handleClassificationsFromCamera classifies the current frame of a
// registered camera.
func (s *Server) handleClassificationsFromCamera(c *fiber.Ctx) error {
	cameraName := c.Params("camera")
	count := c.QueryInt("count", 1)

	start := time.Now()
	results, err := s.svc.ClassificationsFromCamera(c.Context(), cameraName, count)
	if err != nil {
		return s.renderError(c, err)
	}
	took := time.Since(start)
	classificationLatency.Observe(took.Seconds())

	s.publishClassifications(cameraName, results, took)

	return c.JSON(fiber.Map{
		"camera":          cameraName,
		"classifications": results,
		"took_ms":         took.Milliseconds(),
	})
}

// handleClassifications classifies an image posted in the request body.
func (s *Server) handleClassifications(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Image) == 0 {
		return s.badRequest(c, "image is required")
	}

	start := time.Now()
	results, err := s.svc.Classifications(c.Context(), req.Image, req.MIMEType, req.Count)
	if err != nil {
		return s.renderError(c, err)
	}
	took := time.Since(start)
	classificationLatency.Observe(took.Seconds())

	return c.JSON(fiber.Map{
		"classifications": results,
		"took_ms":         took.Milliseconds(),
	})
}

// handleDescribeFromCamera returns free-form text for a camera frame.
func (s *Server) handleDescribeFromCamera(c *fiber.Ctx) error {
	cameraName := c.Params("camera")

	var req DescribeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, "invalid request body: "+err.Error())
		}
	}

	start := time.Now()
	text, err := s.svc.DescribeFromCamera(c.Context(), cameraName, req.Prompt)
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"camera":      cameraName,
		"description": text,
		"took_ms":     time.Since(start).Milliseconds(),
	})
}

// handleDescribe returns free-form text for a posted image.
func (s *Server) handleDescribe(c *fiber.Ctx) error {
	var req DescribeRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Image) == 0 {
		return s.badRequest(c, "image is required")
	}

	start := time.Now()
	text, err := s.svc.Describe(c.Context(), req.Image, req.MIMEType, req.Prompt)
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"description": text,
		"took_ms":     time.Since(start).Milliseconds(),
	})
}

// handleCaptureAll runs a combined capture for a camera. The body, when
// present, carries vision.CaptureOptions.
func (s *Server) handleCaptureAll(c *fiber.Ctx) error {
	cameraName := c.Params("camera")

	var opts vision.CaptureOptions
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return s.badRequest(c, "invalid request body: "+err.Error())
		}
	}

	capture, err := s.svc.CaptureAllFromCamera(c.Context(), cameraName, opts)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(capture)
}

// handleDetections answers for the posted-image detection endpoint.
// Detection is not offered; the service reports that uniformly.
func (s *Server) handleDetections(c *fiber.Ctx) error {
	var req ClassifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, "invalid request body: "+err.Error())
		}
	}

	_, err := s.svc.Detections(c.Context(), req.Image, req.MIMEType)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(fiber.Map{"detections": []vision.Detection{}})
}

// handleDetectionsFromCamera answers for the camera detection endpoint.
func (s *Server) handleDetectionsFromCamera(c *fiber.Ctx) error {
	_, err := s.svc.DetectionsFromCamera(c.Context(), c.Params("camera"))
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(fiber.Map{"detections": []vision.Detection{}})
}

// publishClassifications pushes a classification event to WebSocket
// subscribers. Failures are the hub's problem, not the request's.
func (s *Server) publishClassifications(cameraName string, results []vision.Classification, took time.Duration) {
	if s.results == nil {
		return
	}
	s.results.BroadcastJSON(classificationEvent{
		Event:           "classification",
		Camera:          cameraName,
		Classifications: results,
		Model:           s.config.Model,
		TookMs:          took.Milliseconds(),
		At:              time.Now().UTC(),
	})
}

func (s *Server) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// renderError maps service errors onto HTTP statuses. Unknown cameras
// are 404; capture and upstream failures are both 502 but tagged with
// distinct kinds so callers can tell which side broke.
func (s *Server) renderError(c *fiber.Ctx, err error) error {
	var camErr *vision.CameraError
	var upErr *vision.UpstreamError

	switch {
	case errors.Is(err, camera.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  "camera",
		})
	case errors.As(err, &camErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  "camera",
		})
	case errors.As(err, &upErr):
		upstreamFailures.Inc()
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  "upstream",
		})
	case errors.Is(err, vision.ErrNotImplemented):
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, vision.ErrNoCaptureToStore):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
