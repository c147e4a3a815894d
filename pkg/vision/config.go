package vision

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// Config holds service configuration.
type Config struct {
	// APIKey authenticates against the model backend. Required.
	APIKey string

	// DefaultCamera is used when a call names no camera. Required.
	DefaultCamera string

	// Model is the generative model to query. Required.
	Model string

	// Prompt is sent with every frame unless a call overrides it. Required.
	Prompt string

	// MaxTokens caps the generated description length.
	MaxTokens int

	// Temperature controls generation randomness.
	Temperature float64

	// Timeout bounds each upstream request.
	Timeout time.Duration

	// RateLimit paces upstream requests per second; zero disables pacing.
	RateLimit float64

	// RateBurst is the pacing burst size.
	RateBurst int

	// Provider overrides the model client, for tests.
	Provider inference.Provider

	// Logger for service events.
	Logger *slog.Logger
}

// Option configures the service.
type Option func(*Config)

// WithAPIKey sets the model API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDefaultCamera sets the camera used when a call names none.
func WithDefaultCamera(name string) Option {
	return func(c *Config) {
		c.DefaultCamera = name
	}
}

// WithModel sets the generative model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithPrompt sets the description prompt.
func WithPrompt(prompt string) Option {
	return func(c *Config) {
		c.Prompt = prompt
	}
}

// WithMaxTokens caps the generated description length.
func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTemperature sets generation randomness.
func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithTimeout bounds each upstream request.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRateLimit paces upstream requests.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Config) {
		c.RateLimit = rps
		c.RateBurst = burst
	}
}

// WithProvider injects a model client, bypassing the built-in Gemini one.
func WithProvider(p inference.Provider) Option {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the baseline configuration. The four required
// fields have no defaults; Validate reports them when missing.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		RateBurst:   1,
		Logger:      slog.Default(),
	}
}

// Apply applies the options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the required fields and names every missing one.
func (c *Config) Validate() error {
	missing := make([]string, 0, 4)
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.DefaultCamera == "" {
		missing = append(missing, "camera_name")
	}
	if c.Model == "" {
		missing = append(missing, "model")
	}
	if c.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("vision: missing required attributes: %s", strings.Join(missing, ", "))
	}
	return nil
}
