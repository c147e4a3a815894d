package camera

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// File serves a still image from disk. The file is re-read on every Image
// call, so replacing it on disk changes what the camera sees.
type File struct {
	name string
	path string
}

// NewFile creates a camera backed by an image file.
func NewFile(name, path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("camera %s: %w", name, err)
	}
	return &File{name: name, path: path}, nil
}

// Name returns the registered camera name.
func (f *File) Name() string { return f.name }

// Image reads the backing file and returns it as a frame.
func (f *File) Image(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("camera %s: read %s: %w", f.name, f.path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("camera %s: %w", f.name, ErrNoFrame)
	}

	return &Frame{
		Data:       data,
		MIMEType:   inference.DetectImageMIME(data),
		CapturedAt: time.Now(),
	}, nil
}

// Close is a no-op for file cameras.
func (f *File) Close() error { return nil }

var _ Camera = (*File)(nil)
