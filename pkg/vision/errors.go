package vision

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotImplemented is returned by the detection and point-cloud
	// operations, which this service does not provide.
	ErrNotImplemented = errors.New("vision: method not implemented")

	// ErrNoCaptureToStore rejects a ForStorage capture that produced no
	// classifications.
	ErrNoCaptureToStore = errors.New("vision: no classifications to store")
)

// CameraError reports a failure acquiring a frame, before anything was sent
// upstream. The camera name is the resolved one, after default fallback.
type CameraError struct {
	Camera string
	Err    error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("vision: camera %q: %v", e.Camera, e.Err)
}

func (e *CameraError) Unwrap() error { return e.Err }

// UpstreamError reports a failure from the model backend: network trouble,
// auth rejection, quota, or an unusable reply.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vision: upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
