// visiond serves camera classification over HTTP and WebSocket.
//
// It loads a JSON config, registers the configured cameras, connects the
// Gemini backend and serves the API until SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/williamjhyland/gemini-vision-service/internal/config"
	"github.com/williamjhyland/gemini-vision-service/internal/log"
	"github.com/williamjhyland/gemini-vision-service/pkg/camera"
	"github.com/williamjhyland/gemini-vision-service/pkg/hub"
	"github.com/williamjhyland/gemini-vision-service/pkg/inference"
	"github.com/williamjhyland/gemini-vision-service/pkg/ingest"
	"github.com/williamjhyland/gemini-vision-service/pkg/protocol"
	"github.com/williamjhyland/gemini-vision-service/pkg/vision"
	"github.com/williamjhyland/gemini-vision-service/pkg/web"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "config.json", "Path to the JSON config file")
	listenAddr = flag.String("listen", "", "Override the configured listen address")
)

func main() {
	flag.Parse()

	fmt.Println()
	fmt.Println("👁️  Gemini Vision Service v" + version)
	fmt.Println()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, pushCams, err := buildCameras(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	svc, err := vision.NewGemini(registry,
		vision.WithAPIKey(cfg.APIKey),
		vision.WithDefaultCamera(cfg.CameraName),
		vision.WithModel(cfg.Model),
		vision.WithPrompt(cfg.Prompt),
		vision.WithMaxTokens(cfg.MaxTokens),
		vision.WithTemperature(cfg.Temperature),
		vision.WithTimeout(cfg.RequestTimeout),
		vision.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		vision.WithLogger(logger),
	)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	results := hub.New("results", logger)
	go results.Run()
	defer results.Stop()

	agents := ingest.NewHub(logger)
	agents.OnFrame(func(agentID string, frame *protocol.FrameData) {
		deliverFrame(pushCams, agentID, frame, logger)
	})

	srv := web.New(web.Config{
		Listen:        cfg.Listen,
		AllowOrigins:  cfg.AllowOrigins,
		Model:         cfg.Model,
		DefaultCamera: cfg.CameraName,
	}, svc, registry, results, agents, logger)

	fmt.Printf("📷 Cameras: %s (default %s)\n", strings.Join(registry.Names(), ", "), cfg.CameraName)
	fmt.Printf("🧠 Model:   %s\n", cfg.Model)
	fmt.Printf("🌐 Listen:  %s\n", cfg.Listen)
	fmt.Println()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen()
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return srv.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Goodbye!")
}

// buildCameras registers every configured camera. Push cameras are
// returned separately so agent frames can be routed to them.
func buildCameras(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*camera.Registry, map[string]*camera.Push, error) {
	registry := camera.NewRegistry()
	pushCams := make(map[string]*camera.Push)

	for _, cc := range cfg.Cameras {
		var (
			cam camera.Camera
			err error
		)

		switch cc.Type {
		case config.SourceFile:
			cam, err = camera.NewFile(cc.Name, cc.Path)
		case config.SourceHTTP:
			cam, err = camera.NewHTTP(cc.Name, cc.URL, nil)
		case config.SourceWebcam:
			wc := camera.DefaultConfig()
			if cc.Width > 0 {
				wc.Width = cc.Width
			}
			if cc.Height > 0 {
				wc.Height = cc.Height
			}
			if cc.Quality > 0 {
				wc.Quality = cc.Quality
			}
			cam, err = camera.NewWebcam(cc.Name, strconv.Itoa(cc.Device), wc)
		case config.SourceStream:
			cam, err = camera.NewStream(ctx, cc.Name, cc.URL, cc.Producer, logger)
		case config.SourcePush:
			maxAge := cc.MaxAge
			if maxAge == 0 {
				maxAge = cfg.FrameMaxAge
			}
			push := camera.NewPush(cc.Name, maxAge)
			pushCams[cc.Name] = push
			cam = push
		}
		if err != nil {
			registry.Close()
			return nil, nil, fmt.Errorf("camera %q: %w", cc.Name, err)
		}

		if err := registry.Register(cam); err != nil {
			registry.Close()
			return nil, nil, err
		}
		logger.Info("camera registered", "name", cc.Name, "type", cc.Type)
	}

	return registry, pushCams, nil
}

// deliverFrame routes an agent frame to the push camera with the same
// name. Frames for unknown cameras are dropped with a warning.
func deliverFrame(pushCams map[string]*camera.Push, agentID string, frame *protocol.FrameData, logger *slog.Logger) {
	push, ok := pushCams[frame.Camera]
	if !ok {
		logger.Warn("frame for unknown push camera", "agent", agentID, "camera", frame.Camera)
		return
	}

	data, err := frame.DecodeFrameData()
	if err != nil {
		logger.Warn("undecodable frame", "agent", agentID, "camera", frame.Camera, "error", err)
		return
	}

	mimeType := "image/" + frame.Format
	if frame.Format == "" {
		mimeType = inference.DetectImageMIME(data)
	}
	push.SetFrame(data, mimeType, frame.Width, frame.Height)
}
