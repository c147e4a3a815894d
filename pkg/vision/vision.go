// Package vision turns camera frames into descriptions by sending them to a
// generative model. It exposes a classification-shaped API: the generated
// text comes back as a single classification with full confidence.
//
//	svc, err := vision.NewGemini(cameras,
//		vision.WithAPIKey(key),
//		vision.WithDefaultCamera("front"),
//		vision.WithModel("gemini-2.0-flash"),
//		vision.WithPrompt("Describe what you see"),
//	)
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	results, err := svc.ClassificationsFromCamera(ctx, "", 1)
//
// Capture failures and model failures surface as *CameraError and
// *UpstreamError respectively so callers can tell them apart. Nothing is
// retried on the caller's behalf.
package vision

import (
	"context"
	"time"
)

// Classification is one label for an image. Label carries the generated
// description; Confidence is always full because generated text has no
// score attached.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detection is one located object in an image. Bounding box corners are in
// pixels. The service does not produce these today.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	XMin       int     `json:"x_min"`
	YMin       int     `json:"y_min"`
	XMax       int     `json:"x_max"`
	YMax       int     `json:"y_max"`
}

// Properties reports which capabilities the service supports.
type Properties struct {
	ClassificationsSupported bool `json:"classifications_supported"`
	DetectionsSupported      bool `json:"detections_supported"`
	ObjectPCDsSupported      bool `json:"object_pcds_supported"`
}

// CaptureOptions selects what CaptureAllFromCamera should include.
type CaptureOptions struct {
	ReturnImage           bool `json:"return_image"`
	ReturnClassifications bool `json:"return_classifications"`
	ReturnDetections      bool `json:"return_detections"`
	ReturnPointClouds     bool `json:"return_point_clouds"`

	// ForStorage marks the capture as destined for persistence. Captures
	// that produced no classifications are rejected instead of stored empty.
	ForStorage bool `json:"for_storage"`
}

// Capture is the result of a combined capture call.
type Capture struct {
	ID              string           `json:"id"`
	Camera          string           `json:"camera"`
	CapturedAt      time.Time        `json:"captured_at"`
	Image           []byte           `json:"image,omitempty"`
	MIMEType        string           `json:"mime_type,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Detections      []Detection      `json:"detections,omitempty"`
}

// Service is the vision API served over HTTP and consumed by other packages.
type Service interface {
	// Classifications describes a caller-supplied image. n is accepted for
	// contract compatibility but not interpreted; the result always holds
	// exactly one classification.
	Classifications(ctx context.Context, image []byte, mimeType string, n int) ([]Classification, error)

	// ClassificationsFromCamera captures a frame from the named camera and
	// classifies it. An empty name selects the configured default camera.
	ClassificationsFromCamera(ctx context.Context, cameraName string, n int) ([]Classification, error)

	// Detections is not supported and always returns ErrNotImplemented.
	Detections(ctx context.Context, image []byte, mimeType string) ([]Detection, error)

	// DetectionsFromCamera is not supported and always returns
	// ErrNotImplemented.
	DetectionsFromCamera(ctx context.Context, cameraName string) ([]Detection, error)

	// ObjectPointClouds is not supported and always returns
	// ErrNotImplemented.
	ObjectPointClouds(ctx context.Context, cameraName string) error

	// CaptureAllFromCamera captures one frame and returns the requested
	// artifacts from it. Unsupported artifacts come back empty.
	CaptureAllFromCamera(ctx context.Context, cameraName string, opts CaptureOptions) (*Capture, error)

	// Describe returns the raw generated description of an image. An empty
	// prompt uses the configured one.
	Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error)

	// DescribeFromCamera captures a frame and describes it.
	DescribeFromCamera(ctx context.Context, cameraName, prompt string) (string, error)

	// Properties reports the fixed capability flags.
	Properties(ctx context.Context) (Properties, error)

	// Close releases the underlying model client.
	Close() error
}
