// describe points a camera source at Gemini and prints what it sees.
//
// One of -image, -url or -device selects the source. With -watch the
// description repeats on an interval until Ctrl+C.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/vision"
)

var (
	imagePath = flag.String("image", "", "Describe an image file")
	imageURL  = flag.String("url", "", "Describe a snapshot URL")
	device    = flag.Int("device", -1, "Describe frames from a local webcam device")
	prompt    = flag.String("prompt", "Describe what you see in one short sentence.", "Prompt sent with the image")
	model     = flag.String("model", "gemini-2.0-flash", "Gemini model")
	watch     = flag.Duration("watch", 0, "Repeat on this interval until interrupted, e.g. 5s")
)

func main() {
	flag.Parse()

	fmt.Println("👁️  Gemini Describe")
	fmt.Println("===================")

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Println("\n❌ GEMINI_API_KEY not set!")
		fmt.Println("   Get one at: https://aistudio.google.com/apikey")
		fmt.Println("   Then: export GEMINI_API_KEY=your-key")
		os.Exit(1)
	}

	cam, err := buildCamera()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	registry := camera.NewRegistry()
	if err := registry.Register(cam); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	svc, err := vision.NewGemini(registry,
		vision.WithAPIKey(apiKey),
		vision.WithDefaultCamera(cam.Name()),
		vision.WithModel(*model),
		vision.WithPrompt(*prompt),
	)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watch <= 0 {
		if err := describeOnce(ctx, svc); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("🔄 Watching every %s (Ctrl+C to stop)\n\n", *watch)
	ticker := time.NewTicker(*watch)
	defer ticker.Stop()

	for {
		if err := describeOnce(ctx, svc); err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("❌ %v\n", err)
		}
		select {
		case <-ctx.Done():
			fmt.Println("\n👋 Goodbye!")
			return
		case <-ticker.C:
		}
	}
}

func buildCamera() (camera.Camera, error) {
	switch {
	case *imagePath != "":
		return camera.NewFile("cli", *imagePath)
	case *imageURL != "":
		return camera.NewHTTP("cli", *imageURL, nil)
	case *device >= 0:
		return camera.NewWebcam("cli", strconv.Itoa(*device), camera.DefaultConfig())
	default:
		return nil, fmt.Errorf("one of -image, -url or -device is required")
	}
}

func describeOnce(ctx context.Context, svc vision.Service) error {
	start := time.Now()
	text, err := svc.DescribeFromCamera(ctx, "", "")
	if err != nil {
		return err
	}

	fmt.Println("╭───────────────────────────────────────────")
	fmt.Printf("│ 👁️  I see: %s\n", text)
	fmt.Printf("╰─ %dms\n", time.Since(start).Milliseconds())
	return nil
}
