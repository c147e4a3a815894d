package camera

import (
	"context"
	"sync"
	"time"

	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// testJPEG is a minimal JPEG header, enough for MIME sniffing in tests.
var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

// Mock is a test camera. Override ImageFunc or CloseFunc to control
// behavior; calls are counted either way.
type Mock struct {
	ImageFunc func(ctx context.Context) (*Frame, error)
	CloseFunc func() error

	name string

	mu       sync.Mutex
	captures int
	closes   int
}

// NewMock creates a mock camera that returns a tiny static JPEG.
func NewMock(name string) *Mock {
	return &Mock{name: name}
}

// NewMockWithFrame creates a mock camera that always returns frame.
func NewMockWithFrame(name string, frame *Frame) *Mock {
	return &Mock{
		name: name,
		ImageFunc: func(ctx context.Context) (*Frame, error) {
			return frame, nil
		},
	}
}

// NewMockWithError creates a mock camera whose Image always fails with err.
func NewMockWithError(name string, err error) *Mock {
	return &Mock{
		name: name,
		ImageFunc: func(ctx context.Context) (*Frame, error) {
			return nil, err
		},
	}
}

// Name returns the mock camera name.
func (m *Mock) Name() string { return m.name }

// Image returns the configured frame.
func (m *Mock) Image(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()

	if m.ImageFunc != nil {
		return m.ImageFunc(ctx)
	}
	return &Frame{
		Data:       testJPEG,
		MIMEType:   inference.MIMEJPEG,
		CapturedAt: time.Now(),
	}, nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Captures returns how many times Image was called.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// Closes returns how many times Close was called.
func (m *Mock) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

var _ Camera = (*Mock)(nil)
