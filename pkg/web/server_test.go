package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/hub"
	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
	"github.com/williamjhyland/gemini-vision-service/pkg/ingest"
	"github.com/williamjhyland/gemini-vision-service/pkg/vision"
)

var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

type testServer struct {
	srv      *Server
	cam      *camera.Mock
	provider *inference.Mock
	results  *hub.Hub
}

func newTestServer(t *testing.T, provider *inference.Mock) *testServer {
	t.Helper()

	cam := camera.NewMockWithFrame("front", &camera.Frame{
		Data:       testJPEG,
		MIMEType:   "image/jpeg",
		CapturedAt: time.Now(),
	})
	registry := camera.NewRegistry()
	if err := registry.Register(cam); err != nil {
		t.Fatalf("register camera: %v", err)
	}

	svc, err := vision.NewGemini(registry,
		vision.WithAPIKey("test-key"),
		vision.WithDefaultCamera("front"),
		vision.WithModel("gemini-2.0-flash"),
		vision.WithPrompt("What do you see?"),
		vision.WithProvider(provider),
	)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	results := hub.New("results", nil)
	srv := New(Config{
		Listen:        ":0",
		Model:         "gemini-2.0-flash",
		DefaultCamera: "front",
	}, svc, registry, results, ingest.NewHub(nil), nil)

	return &testServer{srv: srv, cam: cam, provider: provider, results: results}
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	resp.Body.Close()
	return resp, data
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "GET", "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status struct {
		Service string   `json:"service"`
		Status  string   `json:"status"`
		Model   string   `json:"model"`
		Camera  string   `json:"camera"`
		Cameras []string `json:"cameras"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("expected status ok, got %q", status.Status)
	}
	if status.Model != "gemini-2.0-flash" {
		t.Errorf("expected model in status, got %q", status.Model)
	}
	if status.Camera != "front" {
		t.Errorf("expected default camera front, got %q", status.Camera)
	}
	if len(status.Cameras) != 1 || status.Cameras[0] != "front" {
		t.Errorf("expected cameras [front], got %v", status.Cameras)
	}
}

func TestPropertiesEndpoint(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "GET", "/api/properties", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var props vision.Properties
	if err := json.Unmarshal(body, &props); err != nil {
		t.Fatalf("unmarshal properties: %v", err)
	}
	if !props.ClassificationsSupported {
		t.Error("expected classifications to be supported")
	}
	if props.DetectionsSupported || props.ObjectPCDsSupported {
		t.Errorf("expected detections and point clouds unsupported, got %+v", props)
	}
}

func TestCamerasEndpoint(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "GET", "/api/cameras", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var list struct {
		Cameras []string `json:"cameras"`
		Count   int      `json:"count"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("unmarshal cameras: %v", err)
	}
	if list.Count != 1 || len(list.Cameras) != 1 || list.Cameras[0] != "front" {
		t.Errorf("expected one camera named front, got %+v", list)
	}
}

func TestClassifyCamera(t *testing.T) {
	ts := newTestServer(t, inference.NewMockWithText("a wooden desk"))

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications/front", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Camera          string                  `json:"camera"`
		Classifications []vision.Classification `json:"classifications"`
		TookMs          int64                   `json:"took_ms"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Camera != "front" {
		t.Errorf("expected camera front, got %q", result.Camera)
	}
	if len(result.Classifications) != 1 {
		t.Fatalf("expected 1 classification, got %d", len(result.Classifications))
	}
	if result.Classifications[0].Label != "a wooden desk" {
		t.Errorf("unexpected label %q", result.Classifications[0].Label)
	}
	if result.Classifications[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", result.Classifications[0].Confidence)
	}
	if ts.cam.Captures() != 1 {
		t.Errorf("expected 1 capture, got %d", ts.cam.Captures())
	}
	if n := ts.provider.CallCount("Vision"); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
}

func TestClassifyCameraCountNotInterpreted(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications/front?count=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Classifications []vision.Classification `json:"classifications"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Classifications) != 1 {
		t.Errorf("expected a single classification regardless of count, got %d", len(result.Classifications))
	}
}

func TestClassifyUnknownCamera(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}

	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Kind != "camera" {
		t.Errorf("expected kind camera, got %q", errResp.Kind)
	}
	if !strings.Contains(errResp.Error, "ghost") {
		t.Errorf("expected error to name the camera, got %q", errResp.Error)
	}
	if n := ts.provider.CallCount("Vision"); n != 0 {
		t.Errorf("expected no upstream calls, got %d", n)
	}
}

func TestClassifyCameraFailure(t *testing.T) {
	provider := inference.NewMock()

	broken := camera.NewMockWithError("side", io.ErrUnexpectedEOF)
	registry := camera.NewRegistry()
	if err := registry.Register(broken); err != nil {
		t.Fatalf("register camera: %v", err)
	}

	svc, err := vision.NewGemini(registry,
		vision.WithAPIKey("test-key"),
		vision.WithDefaultCamera("side"),
		vision.WithModel("gemini-2.0-flash"),
		vision.WithPrompt("What do you see?"),
		vision.WithProvider(provider),
	)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	srv := New(Config{Listen: ":0"}, svc, registry, hub.New("results", nil), nil, nil)

	resp, body := doJSON(t, srv, "POST", "/api/classifications/side", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.StatusCode, body)
	}

	var errResp struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Kind != "camera" {
		t.Errorf("expected kind camera, got %q", errResp.Kind)
	}
	if n := provider.CallCount("Vision"); n != 0 {
		t.Errorf("expected no upstream calls after capture failure, got %d", n)
	}
}

func TestClassifyUpstreamFailure(t *testing.T) {
	apiErr := &inference.APIError{
		StatusCode: 429,
		Message:    "quota exhausted",
		Provider:   "gemini",
	}
	ts := newTestServer(t, inference.NewMockWithError(apiErr))

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications/front", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.StatusCode, body)
	}

	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Kind != "upstream" {
		t.Errorf("expected kind upstream, got %q", errResp.Kind)
	}
	if !strings.Contains(errResp.Error, "quota exhausted") {
		t.Errorf("expected upstream message, got %q", errResp.Error)
	}

	// One capture and one upstream call: failures are not retried.
	if ts.cam.Captures() != 1 {
		t.Errorf("expected 1 capture, got %d", ts.cam.Captures())
	}
	if n := ts.provider.CallCount("Vision"); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
}

func TestClassifyPostedImage(t *testing.T) {
	ts := newTestServer(t, inference.NewMockWithText("a red apple"))

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications", map[string]interface{}{
		"image": testJPEG,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Classifications []vision.Classification `json:"classifications"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Classifications) != 1 || result.Classifications[0].Label != "a red apple" {
		t.Errorf("unexpected classifications %+v", result.Classifications)
	}
	if ts.cam.Captures() != 0 {
		t.Errorf("posted image should not touch cameras, got %d captures", ts.cam.Captures())
	}
}

func TestClassifyBadBody(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	req := httptest.NewRequest("POST", "/api/classifications", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.App().Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestClassifyMissingImage(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "POST", "/api/classifications", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
	}
	if n := ts.provider.CallCount("Vision"); n != 0 {
		t.Errorf("expected no upstream calls, got %d", n)
	}
}

func TestDescribeCamera(t *testing.T) {
	var gotPrompt string
	provider := inference.NewMock()
	provider.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		gotPrompt = req.Prompt
		return &inference.VisionResponse{Text: "yes, there is a mug", Model: "mock-model"}, nil
	}
	ts := newTestServer(t, provider)

	resp, body := doJSON(t, ts.srv, "POST", "/api/describe/front", map[string]interface{}{
		"prompt": "Is there a mug on the desk?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Camera      string `json:"camera"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Description != "yes, there is a mug" {
		t.Errorf("unexpected description %q", result.Description)
	}
	if gotPrompt != "Is there a mug on the desk?" {
		t.Errorf("expected prompt override, got %q", gotPrompt)
	}
}

func TestDescribeCameraDefaultPrompt(t *testing.T) {
	var gotPrompt string
	provider := inference.NewMock()
	provider.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		gotPrompt = req.Prompt
		return &inference.VisionResponse{Text: "a desk", Model: "mock-model"}, nil
	}
	ts := newTestServer(t, provider)

	resp, body := doJSON(t, ts.srv, "POST", "/api/describe/front", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if gotPrompt != "What do you see?" {
		t.Errorf("expected configured prompt, got %q", gotPrompt)
	}
}

func TestDetectionsNotImplemented(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	for _, path := range []string{"/api/detections/front", "/api/detections"} {
		resp, body := doJSON(t, ts.srv, "POST", path, nil)
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("%s: expected 501, got %d: %s", path, resp.StatusCode, body)
		}
	}
	if n := ts.provider.CallCount("Vision"); n != 0 {
		t.Errorf("expected no upstream calls for detections, got %d", n)
	}
	if ts.cam.Captures() != 0 {
		t.Errorf("expected no captures for detections, got %d", ts.cam.Captures())
	}
}

func TestCaptureAll(t *testing.T) {
	ts := newTestServer(t, inference.NewMockWithText("a laptop"))

	resp, body := doJSON(t, ts.srv, "POST", "/api/captureall/front", map[string]interface{}{
		"return_image":           true,
		"return_classifications": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var capture vision.Capture
	if err := json.Unmarshal(body, &capture); err != nil {
		t.Fatalf("unmarshal capture: %v", err)
	}
	if capture.ID == "" {
		t.Error("expected a capture ID")
	}
	if capture.Camera != "front" {
		t.Errorf("expected camera front, got %q", capture.Camera)
	}
	if !bytes.Equal(capture.Image, testJPEG) {
		t.Error("expected the captured image bytes")
	}
	if len(capture.Classifications) != 1 || capture.Classifications[0].Label != "a laptop" {
		t.Errorf("unexpected classifications %+v", capture.Classifications)
	}
}

func TestCaptureAllForStorageWithoutClassifications(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, body := doJSON(t, ts.srv, "POST", "/api/captureall/front", map[string]interface{}{
		"return_image": true,
		"for_storage":  true,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	// Generate at least one observed request first.
	doJSON(t, ts.srv, "GET", "/api/status", nil)

	resp, body := doJSON(t, ts.srv, "GET", "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "vision_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestResultsUpgradeRequired(t *testing.T) {
	ts := newTestServer(t, inference.NewMock())

	resp, _ := doJSON(t, ts.srv, "GET", "/ws/results", nil)
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}

func TestClassificationBroadcast(t *testing.T) {
	ts := newTestServer(t, inference.NewMockWithText("a potted plant"))

	go ts.results.Run()
	defer ts.results.Stop()

	go func() {
		ts.srv.App().Listen(":18092")
	}()
	defer ts.srv.App().Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gorillaws.DefaultDialer.Dial("ws://localhost:18092/ws/results", nil)
	if err != nil {
		t.Fatalf("dial results socket: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	httpResp, err := http.Post("http://localhost:18092/api/classifications/front", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger classification: %v", err)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var event classificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Event != "classification" {
		t.Errorf("expected classification event, got %q", event.Event)
	}
	if event.Camera != "front" {
		t.Errorf("expected camera front, got %q", event.Camera)
	}
	if len(event.Classifications) != 1 || event.Classifications[0].Label != "a potted plant" {
		t.Errorf("unexpected classifications %+v", event.Classifications)
	}
	if event.Model != "gemini-2.0-flash" {
		t.Errorf("expected model on event, got %q", event.Model)
	}
}

func TestMockServiceOverHTTP(t *testing.T) {
	svc := vision.NewMock()
	registry := camera.NewRegistry()
	srv := New(Config{Listen: ":0", Model: "mock"}, svc, registry, hub.New("results", nil), nil, nil)

	resp, body := doJSON(t, srv, "POST", "/api/classifications/front", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Classifications []vision.Classification `json:"classifications"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Classifications) != 1 || result.Classifications[0].Label != "a mock classification" {
		t.Errorf("unexpected classifications %+v", result.Classifications)
	}
	if n := svc.CallCount("ClassificationsFromCamera"); n != 1 {
		t.Errorf("expected 1 service call, got %d", n)
	}

	resp, _ = doJSON(t, srv, "POST", "/api/detections/front", nil)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501 from mock detections, got %d", resp.StatusCode)
	}
}
