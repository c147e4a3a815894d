// camagent streams frames from a local camera source to a vision
// service over WebSocket.
//
// The service side registers a push camera with the same name; every
// frame this agent sends becomes that camera's current image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/protocol"
)

var (
	server    = flag.String("server", "ws://localhost:8090", "Vision service base URL")
	agentID   = flag.String("id", "", "Agent ID (default: hostname)")
	camName   = flag.String("name", "", "Push camera name on the service (default: agent ID)")
	imagePath = flag.String("image", "", "Stream an image file")
	imageURL  = flag.String("url", "", "Stream a snapshot URL")
	device    = flag.Int("device", -1, "Stream a local webcam device")
	interval  = flag.Duration("interval", 2*time.Second, "Capture interval")
)

func main() {
	flag.Parse()

	fmt.Println("📡 Camera Agent")
	fmt.Println("===============")

	if *agentID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "agent"
		}
		*agentID = host
	}
	if *camName == "" {
		*camName = *agentID
	}

	cam, err := buildCamera()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer cam.Close()

	fmt.Printf("Agent:    %s\n", *agentID)
	fmt.Printf("Camera:   %s (every %s)\n", *camName, *interval)
	fmt.Printf("Server:   %s\n", *server)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := runSession(ctx, cam); err != nil && ctx.Err() == nil {
			fmt.Printf("⚠️  %v (reconnecting in 5s)\n", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			fmt.Println("\n👋 Goodbye!")
			return
		}
	}
}

func buildCamera() (camera.Camera, error) {
	switch {
	case *imagePath != "":
		return camera.NewFile(*camName, *imagePath)
	case *imageURL != "":
		return camera.NewHTTP(*camName, *imageURL, nil)
	case *device >= 0:
		return camera.NewWebcam(*camName, strconv.Itoa(*device), camera.DefaultConfig())
	default:
		return nil, fmt.Errorf("one of -image, -url or -device is required")
	}
}

// runSession holds one WebSocket connection open, shipping a frame per
// tick until the connection or the context dies.
func runSession(ctx context.Context, cam camera.Camera) error {
	url := strings.TrimRight(*server, "/") + "/ws/agent/" + *agentID

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer ws.Close()
	fmt.Printf("✅ Connected to %s\n", url)

	var writeMu sync.Mutex
	send := func(msg *protocol.Message) error {
		data, err := msg.Bytes()
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return ws.WriteMessage(websocket.TextMessage, data)
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			// Pongs confirm the hub is alive; everything else is ignored.
			if _, err := protocol.ParseMessage(data); err != nil {
				continue
			}
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	var frameID uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case <-pingTicker.C:
			msg, err := protocol.NewPingMessage(*agentID)
			if err != nil {
				continue
			}
			if err := send(msg); err != nil {
				return err
			}
		case <-ticker.C:
			frame, err := cam.Image(ctx)
			if err != nil {
				fmt.Printf("⚠️  capture: %v\n", err)
				continue
			}
			frameID++
			msg, err := protocol.NewFrameMessage(*camName, frame.Width, frame.Height, frame.Data, frameID)
			if err != nil {
				continue
			}
			if err := send(msg); err != nil {
				return err
			}
			fmt.Printf("📤 Frame %d (%d KB)\n", frameID, len(frame.Data)/1024)
		}
	}
}
