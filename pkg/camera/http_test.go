package camera

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPCamera(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(testJPEG)
	}))
	defer server.Close()

	cam, err := NewHTTP("ipcam", server.URL+"/snapshot.jpg", server.Client())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	frame, err := cam.Image(context.Background())
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if frame.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q", frame.MIMEType)
	}
	if len(frame.Data) != len(testJPEG) {
		t.Errorf("Data length = %d, want %d", len(frame.Data), len(testJPEG))
	}
}

func TestHTTPCameraSniffsMissingContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(testJPEG)
	}))
	defer server.Close()

	cam, _ := NewHTTP("ipcam", server.URL, server.Client())
	frame, err := cam.Image(context.Background())
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if frame.MIMEType != "image/jpeg" {
		t.Errorf("MIMEType = %q, want sniffed image/jpeg", frame.MIMEType)
	}
}

func TestHTTPCameraErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cam, _ := NewHTTP("ipcam", server.URL, server.Client())
	if _, err := cam.Image(context.Background()); err == nil {
		t.Error("non-200 snapshot should be an error")
	}
}

func TestHTTPCameraRejectsBadURL(t *testing.T) {
	if _, err := NewHTTP("ipcam", "ftp://example.test/cam", nil); err == nil {
		t.Error("non-http scheme should be rejected")
	}
}
