package camera

import "fmt"

// Config holds the capture parameters shared by the device-backed sources.
type Config struct {
	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS for continuous sources
	Quality   int `json:"quality"`   // JPEG quality 1-100
}

// Capture bounds. Anything larger is a config mistake, not a real device.
const (
	MaxWidth     = 4608
	MaxHeight    = 2592
	MaxFramerate = 120
)

// DefaultConfig returns the standard capture configuration.
// 640x480 keeps Gemini payloads small without losing scene detail.
func DefaultConfig() Config {
	return Config{
		Width:     640,
		Height:    480,
		Framerate: 15,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
