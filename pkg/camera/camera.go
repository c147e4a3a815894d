// Package camera provides the image sources the vision service reads from.
//
// A Camera yields one encoded frame per Image call. Sources cover a still
// file on disk, an HTTP snapshot endpoint, a local webcam, a WebRTC stream,
// and a push buffer fed by remote agents. All sources are safe for
// concurrent use.
package camera

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for camera lookup and frame acquisition.
var (
	// ErrNotFound indicates the requested camera name is not registered.
	ErrNotFound = errors.New("camera: not found")

	// ErrNoFrame indicates the source has not produced a frame yet.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrStaleFrame indicates the newest frame is older than the source allows.
	ErrStaleFrame = errors.New("camera: frame too old")
)

// Frame is one captured image.
type Frame struct {
	// Data is the encoded image bytes.
	Data []byte

	// MIMEType describes the encoding, e.g. "image/jpeg".
	MIMEType string

	// Width and Height are in pixels. Zero when the source does not decode
	// the image to find out.
	Width  int
	Height int

	// CapturedAt is when the frame was acquired.
	CapturedAt time.Time
}

// Camera produces frames on demand.
type Camera interface {
	// Name returns the registered camera name.
	Name() string

	// Image captures and returns the current frame.
	Image(ctx context.Context) (*Frame, error)

	// Close releases the underlying device or connection.
	Close() error
}
