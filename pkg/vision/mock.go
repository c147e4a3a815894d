package vision

import (
	"context"
	"sync"
)

// MockCall records one invocation of a mock method.
type MockCall struct {
	Method string
	Input  interface{}
}

// Mock is a Service for tests. Set the function fields to control behavior;
// unset ones fall back to canned responses. Calls are recorded either way.
type Mock struct {
	ClassificationsFunc           func(ctx context.Context, image []byte, mimeType string, n int) ([]Classification, error)
	ClassificationsFromCameraFunc func(ctx context.Context, cameraName string, n int) ([]Classification, error)
	CaptureAllFromCameraFunc      func(ctx context.Context, cameraName string, opts CaptureOptions) (*Capture, error)
	DescribeFunc                  func(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
	DescribeFromCameraFunc        func(ctx context.Context, cameraName, prompt string) (string, error)
	CloseFunc                     func() error

	mu    sync.Mutex
	calls []MockCall
}

// NewMock creates a mock that answers every classification with
// "a mock classification".
func NewMock() *Mock {
	return &Mock{}
}

// NewMockWithError creates a mock whose classification and describe calls
// fail with err.
func NewMockWithError(err error) *Mock {
	return &Mock{
		ClassificationsFunc: func(ctx context.Context, image []byte, mimeType string, n int) ([]Classification, error) {
			return nil, err
		},
		ClassificationsFromCameraFunc: func(ctx context.Context, cameraName string, n int) ([]Classification, error) {
			return nil, err
		},
		CaptureAllFromCameraFunc: func(ctx context.Context, cameraName string, opts CaptureOptions) (*Capture, error) {
			return nil, err
		},
		DescribeFunc: func(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
			return "", err
		},
		DescribeFromCameraFunc: func(ctx context.Context, cameraName, prompt string) (string, error) {
			return "", err
		},
	}
}

func (m *Mock) record(method string, input interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Input: input})
}

// Classifications implements Service.
func (m *Mock) Classifications(ctx context.Context, image []byte, mimeType string, n int) ([]Classification, error) {
	m.record("Classifications", n)
	if m.ClassificationsFunc != nil {
		return m.ClassificationsFunc(ctx, image, mimeType, n)
	}
	return []Classification{{Label: "a mock classification", Confidence: generatedConfidence}}, nil
}

// ClassificationsFromCamera implements Service.
func (m *Mock) ClassificationsFromCamera(ctx context.Context, cameraName string, n int) ([]Classification, error) {
	m.record("ClassificationsFromCamera", cameraName)
	if m.ClassificationsFromCameraFunc != nil {
		return m.ClassificationsFromCameraFunc(ctx, cameraName, n)
	}
	return []Classification{{Label: "a mock classification", Confidence: generatedConfidence}}, nil
}

// Detections implements Service.
func (m *Mock) Detections(ctx context.Context, image []byte, mimeType string) ([]Detection, error) {
	m.record("Detections", nil)
	return nil, ErrNotImplemented
}

// DetectionsFromCamera implements Service.
func (m *Mock) DetectionsFromCamera(ctx context.Context, cameraName string) ([]Detection, error) {
	m.record("DetectionsFromCamera", cameraName)
	return nil, ErrNotImplemented
}

// ObjectPointClouds implements Service.
func (m *Mock) ObjectPointClouds(ctx context.Context, cameraName string) error {
	m.record("ObjectPointClouds", cameraName)
	return ErrNotImplemented
}

// CaptureAllFromCamera implements Service.
func (m *Mock) CaptureAllFromCamera(ctx context.Context, cameraName string, opts CaptureOptions) (*Capture, error) {
	m.record("CaptureAllFromCamera", opts)
	if m.CaptureAllFromCameraFunc != nil {
		return m.CaptureAllFromCameraFunc(ctx, cameraName, opts)
	}
	result := &Capture{ID: "mock-capture", Camera: cameraName}
	if opts.ReturnClassifications {
		result.Classifications = []Classification{{Label: "a mock classification", Confidence: generatedConfidence}}
	}
	return result, nil
}

// Describe implements Service.
func (m *Mock) Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	m.record("Describe", prompt)
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, image, mimeType, prompt)
	}
	return "a mock description", nil
}

// DescribeFromCamera implements Service.
func (m *Mock) DescribeFromCamera(ctx context.Context, cameraName, prompt string) (string, error) {
	m.record("DescribeFromCamera", cameraName)
	if m.DescribeFromCameraFunc != nil {
		return m.DescribeFromCameraFunc(ctx, cameraName, prompt)
	}
	return "a mock description", nil
}

// Properties implements Service.
func (m *Mock) Properties(ctx context.Context) (Properties, error) {
	m.record("Properties", nil)
	return Properties{ClassificationsSupported: true}, nil
}

// Close implements Service.
func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Service = (*Mock)(nil)
