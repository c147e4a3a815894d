// Package config loads and validates the vision service configuration.
//
// Configuration comes from a JSON file (path given on the command line) with
// environment overrides: GEMINI_API_KEY takes precedence over the api_key
// field so keys can stay out of config files.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Camera source types accepted in the cameras list.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceWebcam = "webcam"
	SourceStream = "stream"
	SourcePush   = "push"
)

// Config is the service configuration.
type Config struct {
	// Required. Missing fields fail Validate at startup.
	APIKey     string `mapstructure:"api_key"`
	CameraName string `mapstructure:"camera_name"`
	Model      string `mapstructure:"model"`
	Prompt     string `mapstructure:"prompt"`

	// Server
	Listen       string `mapstructure:"listen"`
	AllowOrigins string `mapstructure:"allow_origins"`
	LogLevel     string `mapstructure:"log_level"`

	// Upstream request defaults
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`

	// Outbound pacing. Zero disables the limiter.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// Push cameras reject frames older than this.
	FrameMaxAge time.Duration `mapstructure:"frame_max_age"`

	// Cameras to register at startup. camera_name must name one of these.
	Cameras []Camera `mapstructure:"cameras"`
}

// Camera describes one camera source.
type Camera struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`

	// Source parameters. Which ones apply depends on Type.
	Path     string        `mapstructure:"path"`     // file
	URL      string        `mapstructure:"url"`      // http, stream (signalling)
	Producer string        `mapstructure:"producer"` // stream; empty takes the first producer
	Device   int           `mapstructure:"device"`   // webcam
	Width    int           `mapstructure:"width"`    // webcam
	Height   int           `mapstructure:"height"`   // webcam
	Quality  int           `mapstructure:"quality"`  // webcam JPEG quality
	MaxAge   time.Duration `mapstructure:"max_age"`  // push staleness override
}

// Load reads the config file at path and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("listen", ":8090")
	v.SetDefault("allow_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("max_tokens", 1000)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("frame_max_age", "10s")

	v.BindEnv("api_key", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and camera definitions.
// All missing required fields are reported in a single error.
func (c *Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.CameraName == "" {
		missing = append(missing, "camera_name")
	}
	if c.Model == "" {
		missing = append(missing, "model")
	}
	if c.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}

	if len(c.Cameras) == 0 {
		return fmt.Errorf("config: no cameras defined")
	}

	names := make(map[string]bool, len(c.Cameras))
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if err := cam.validate(); err != nil {
			return err
		}
		if names[cam.Name] {
			return fmt.Errorf("config: duplicate camera name %q", cam.Name)
		}
		names[cam.Name] = true
	}

	if !names[c.CameraName] {
		return fmt.Errorf("config: camera_name %q does not match any configured camera (have: %s)",
			c.CameraName, strings.Join(sortedKeys(names), ", "))
	}
	return nil
}

func (cam *Camera) validate() error {
	if cam.Name == "" {
		return fmt.Errorf("config: camera with empty name")
	}
	switch cam.Type {
	case SourceFile:
		if cam.Path == "" {
			return fmt.Errorf("config: camera %q: file source requires path", cam.Name)
		}
	case SourceHTTP:
		if cam.URL == "" {
			return fmt.Errorf("config: camera %q: http source requires url", cam.Name)
		}
	case SourceStream:
		if cam.URL == "" {
			return fmt.Errorf("config: camera %q: stream source requires url", cam.Name)
		}
	case SourceWebcam, SourcePush:
		// Device 0 and the shared frame_max_age are valid defaults.
	default:
		return fmt.Errorf("config: camera %q: unknown type %q", cam.Name, cam.Type)
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
