package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/williamjhyland/gemini-vision-service/internal/httpc"
	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
)

// maxSnapshotBytes caps how much we read from a snapshot endpoint.
const maxSnapshotBytes = 32 << 20

// HTTP fetches frames from a snapshot URL, the kind most IP cameras expose
// at /snapshot.jpg or /shot.jpg.
type HTTP struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTP creates a camera backed by a snapshot endpoint. A nil client uses
// the shared pooled client.
func NewHTTP(name, url string, client *http.Client) (*HTTP, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("camera %s: snapshot url must be http(s), got %q", name, url)
	}
	if client == nil {
		client = httpc.Client
	}
	return &HTTP{name: name, url: url, client: client}, nil
}

// Name returns the registered camera name.
func (h *HTTP) Name() string { return h.name }

// Image fetches one snapshot from the endpoint.
func (h *HTTP) Image(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", h.name, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera %s: fetch snapshot: %w", h.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("camera %s: snapshot returned status %d", h.name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("camera %s: read snapshot: %w", h.name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("camera %s: %w", h.name, ErrNoFrame)
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = inference.DetectImageMIME(data)
	}

	return &Frame{
		Data:       data,
		MIMEType:   mime,
		CapturedAt: time.Now(),
	}, nil
}

// Close is a no-op; the HTTP client is shared.
func (h *HTTP) Close() error { return nil }

var _ Camera = (*HTTP)(nil)
