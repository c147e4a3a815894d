package camera

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Push holds the most recent frame delivered from outside, typically by a
// remote agent streaming over the ingest hub. Image returns that frame as
// long as it is fresh enough.
type Push struct {
	name   string
	maxAge time.Duration

	mu    sync.RWMutex
	frame *Frame
}

// NewPush creates a push camera. maxAge bounds how old the latest frame may
// be before Image refuses to serve it; zero means frames never expire.
func NewPush(name string, maxAge time.Duration) *Push {
	return &Push{name: name, maxAge: maxAge}
}

// Name returns the registered camera name.
func (p *Push) Name() string { return p.name }

// SetFrame stores data as the latest frame, stamped now.
func (p *Push) SetFrame(data []byte, mimeType string, width, height int) {
	if len(data) == 0 {
		return
	}

	p.mu.Lock()
	p.frame = &Frame{
		Data:       data,
		MIMEType:   mimeType,
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
	}
	p.mu.Unlock()
}

// Image returns the latest pushed frame.
func (p *Push) Image(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	frame := p.frame
	p.mu.RUnlock()

	if frame == nil {
		return nil, fmt.Errorf("camera %s: %w", p.name, ErrNoFrame)
	}
	if p.maxAge > 0 {
		if age := time.Since(frame.CapturedAt); age > p.maxAge {
			return nil, fmt.Errorf("camera %s: %w (age %s)", p.name, ErrStaleFrame, age.Round(time.Millisecond))
		}
	}
	return frame, nil
}

// LastSeen reports when the latest frame arrived, zero if none has.
func (p *Push) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.frame == nil {
		return time.Time{}
	}
	return p.frame.CapturedAt
}

// Close drops the cached frame.
func (p *Push) Close() error {
	p.mu.Lock()
	p.frame = nil
	p.mu.Unlock()
	return nil
}

var _ Camera = (*Push)(nil)
