// Package inference provides a client for remote multimodal inference APIs.
//
// The package abstracts image-plus-prompt analysis behind a Provider
// interface. The production implementation talks to Google's Gemini
// generateContent endpoint; a Mock implementation serves tests.
//
// Example usage:
//
//	provider, _ := inference.NewGemini(
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	    inference.WithModel("gemini-2.0-flash"),
//	)
//	defer provider.Close()
//
//	resp, _ := provider.Vision(ctx, &inference.VisionRequest{
//	    Image:  jpegBytes,
//	    Prompt: "What do you see?",
//	})
//	fmt.Println(resp.Text)
package inference

import (
	"context"
)

// Provider is the inference interface for image analysis.
// All implementations must satisfy this interface.
type Provider interface {
	// Vision analyzes an image with a text prompt.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Name identifies the provider (e.g. "gemini") for error context.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// VisionRequest for image analysis.
type VisionRequest struct {
	// Image is the raw encoded image payload.
	Image []byte

	// MIMEType of the image. Sniffed from the payload when empty.
	MIMEType string

	// Prompt describing what to analyze or ask about the image.
	Prompt string

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness.
	Temperature float64
}

// VisionResponse from image analysis.
type VisionResponse struct {
	// Text is the natural language response.
	Text string

	// Model used for analysis.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}
