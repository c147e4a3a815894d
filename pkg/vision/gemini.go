package vision

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// Generated text carries no score; every classification reports full
// confidence.
const generatedConfidence = 1.0

// Gemini is the Service implementation backed by the Gemini model.
type Gemini struct {
	config   Config
	cameras  *camera.Registry
	provider inference.Provider
}

// NewGemini builds the service. All four required attributes (api_key,
// camera_name, model, prompt) must be set or construction fails.
func NewGemini(cameras *camera.Registry, opts ...Option) (*Gemini, error) {
	config := DefaultConfig()
	config.Apply(opts...)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if cameras == nil {
		return nil, fmt.Errorf("vision: camera registry is required")
	}

	provider := config.Provider
	if provider == nil {
		p, err := inference.NewGemini(
			inference.WithAPIKey(config.APIKey),
			inference.WithModel(config.Model),
			inference.WithMaxTokens(config.MaxTokens),
			inference.WithTemperature(config.Temperature),
			inference.WithTimeout(config.Timeout),
			inference.WithRateLimit(config.RateLimit, config.RateBurst),
			inference.WithLogger(config.Logger),
		)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	return &Gemini{
		config:   config,
		cameras:  cameras,
		provider: provider,
	}, nil
}

// Classifications describes a caller-supplied image as one classification.
func (g *Gemini) Classifications(ctx context.Context, image []byte, mimeType string, n int) ([]Classification, error) {
	label, err := g.describe(ctx, image, mimeType, "")
	if err != nil {
		return nil, err
	}
	return []Classification{{Label: label, Confidence: generatedConfidence}}, nil
}

// ClassificationsFromCamera captures from the named camera and classifies
// the frame.
func (g *Gemini) ClassificationsFromCamera(ctx context.Context, cameraName string, n int) ([]Classification, error) {
	name, frame, err := g.captureFrame(ctx, cameraName)
	if err != nil {
		return nil, err
	}

	label, err := g.describe(ctx, frame.Data, frame.MIMEType, "")
	if err != nil {
		return nil, err
	}

	g.config.Logger.Debug("classification complete",
		"camera", name,
		"label_bytes", len(label),
	)
	return []Classification{{Label: label, Confidence: generatedConfidence}}, nil
}

// Detections is not supported.
func (g *Gemini) Detections(ctx context.Context, image []byte, mimeType string) ([]Detection, error) {
	return nil, ErrNotImplemented
}

// DetectionsFromCamera is not supported.
func (g *Gemini) DetectionsFromCamera(ctx context.Context, cameraName string) ([]Detection, error) {
	return nil, ErrNotImplemented
}

// ObjectPointClouds is not supported.
func (g *Gemini) ObjectPointClouds(ctx context.Context, cameraName string) error {
	return ErrNotImplemented
}

// CaptureAllFromCamera captures one frame and assembles the requested
// artifacts from that single capture.
func (g *Gemini) CaptureAllFromCamera(ctx context.Context, cameraName string, opts CaptureOptions) (*Capture, error) {
	name, frame, err := g.captureFrame(ctx, cameraName)
	if err != nil {
		return nil, err
	}

	result := &Capture{
		ID:         uuid.NewString(),
		Camera:     name,
		CapturedAt: frame.CapturedAt,
	}
	if opts.ReturnImage {
		result.Image = frame.Data
		result.MIMEType = frame.MIMEType
	}
	if opts.ReturnClassifications {
		label, err := g.describe(ctx, frame.Data, frame.MIMEType, "")
		if err != nil {
			return nil, err
		}
		result.Classifications = []Classification{{Label: label, Confidence: generatedConfidence}}
	}
	// Detection and point-cloud requests yield empty results rather than
	// failing the capture.

	if opts.ForStorage && len(result.Classifications) == 0 {
		return nil, ErrNoCaptureToStore
	}
	return result, nil
}

// Describe returns the raw generated description of an image.
func (g *Gemini) Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	return g.describe(ctx, image, mimeType, prompt)
}

// DescribeFromCamera captures a frame and describes it.
func (g *Gemini) DescribeFromCamera(ctx context.Context, cameraName, prompt string) (string, error) {
	_, frame, err := g.captureFrame(ctx, cameraName)
	if err != nil {
		return "", err
	}
	return g.describe(ctx, frame.Data, frame.MIMEType, prompt)
}

// Properties reports the fixed capability flags.
func (g *Gemini) Properties(ctx context.Context) (Properties, error) {
	return Properties{
		ClassificationsSupported: true,
		DetectionsSupported:      false,
		ObjectPCDsSupported:      false,
	}, nil
}

// Close releases the model client.
func (g *Gemini) Close() error {
	return g.provider.Close()
}

// captureFrame resolves the camera name and acquires one frame. Failures
// come back as *CameraError with the resolved name.
func (g *Gemini) captureFrame(ctx context.Context, cameraName string) (string, *camera.Frame, error) {
	if cameraName == "" {
		cameraName = g.config.DefaultCamera
	}

	cam, err := g.cameras.Get(cameraName)
	if err != nil {
		return cameraName, nil, &CameraError{Camera: cameraName, Err: err}
	}

	frame, err := cam.Image(ctx)
	if err != nil {
		return cameraName, nil, &CameraError{Camera: cameraName, Err: err}
	}
	return cameraName, frame, nil
}

// describe sends the image upstream once. Failures come back as
// *UpstreamError; there is no retry.
func (g *Gemini) describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if prompt == "" {
		prompt = g.config.Prompt
	}

	resp, err := g.provider.Vision(ctx, &inference.VisionRequest{
		Image:    image,
		MIMEType: mimeType,
		Prompt:   prompt,
	})
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	return resp.Text, nil
}

var _ Service = (*Gemini)(nil)
