package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// Webcam captures frames from a local video device through OpenCV.
type Webcam struct {
	name    string
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex // Protects capture
	closed  bool
}

// NewWebcam opens the video device and applies the capture configuration.
// device accepts anything gocv understands: an index ("0") or a path
// ("/dev/video0").
func NewWebcam(name, device string, cfg Config) (*Webcam, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera %s: invalid config: %v", name, errs)
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("camera %s: open device %s: %w", name, device, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Webcam{name: name, config: cfg, capture: capture}, nil
}

// Name returns the registered camera name.
func (w *Webcam) Name() string { return w.name }

// Image grabs one frame from the device and encodes it as JPEG.
func (w *Webcam) Image(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("camera %s: device closed", w.name)
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := w.capture.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("camera %s: %w", w.name, ErrNoFrame)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, w.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("camera %s: encode jpeg: %w", w.name, err)
	}
	defer buf.Close()

	// The buffer is freed on Close; the frame needs its own copy.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return &Frame{
		Data:       data,
		MIMEType:   inference.MIMEJPEG,
		Width:      img.Cols(),
		Height:     img.Rows(),
		CapturedAt: time.Now(),
	}, nil
}

// Close releases the video device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.capture.Close()
}

var _ Camera = (*Webcam)(nil)
