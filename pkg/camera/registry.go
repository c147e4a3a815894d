package camera

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the configured cameras by name.
type Registry struct {
	mu      sync.RWMutex
	cameras map[string]Camera
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cameras: make(map[string]Camera),
	}
}

// Register adds a camera. Registering a name twice is an error.
func (r *Registry) Register(cam Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cam.Name()
	if name == "" {
		return fmt.Errorf("camera: empty name")
	}
	if _, exists := r.cameras[name]; exists {
		return fmt.Errorf("camera: %q already registered", name)
	}
	r.cameras[name] = cam
	return nil
}

// Get returns the camera registered under name.
func (r *Registry) Get(name string) (Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.cameras[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return cam, nil
}

// Names returns the registered camera names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cameras))
	for name := range r.cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered cameras.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cameras)
}

// Close closes every camera and reports the failures in one error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []string
	for name, cam := range r.cameras {
		if err := cam.Close(); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
		}
	}
	r.cameras = make(map[string]Camera)

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("camera: close: %s", strings.Join(failed, "; "))
	}
	return nil
}
