package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const providerGemini = "gemini"

// Gemini implements the Provider interface for Google's Gemini API.
// It calls the v1beta generateContent endpoint directly; authentication is an
// API key query parameter.
type Gemini struct {
	apiKey  string
	config  *Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if cfg.Model == "" {
		return nil, WrapError(providerGemini, ErrNoModel)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Gemini{
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    client,
		limiter: limiter,
		logger:  cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Name identifies the provider.
func (g *Gemini) Name() string {
	return providerGemini
}

// Vision analyzes an image using Gemini.
func (g *Gemini) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	if len(req.Image) == 0 {
		return nil, WrapError(providerGemini, ErrNoImage)
	}

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = DetectImageMIME(req.Image)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}

	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	parts := []map[string]interface{}{
		{"text": req.Prompt},
		{"inline_data": map[string]string{
			"mime_type": mimeType,
			"data":      base64.StdEncoding.EncodeToString(req.Image),
		}},
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     temp,
			"maxOutputTokens": maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	// Pacing only. A limited request waits for a token and then fires once;
	// failures are never retried here.
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, WrapError(providerGemini, err)
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, ErrNoContent)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("vision request complete",
		"model", model,
		"image_bytes", len(req.Image),
		"latency_ms", latency)

	return &VisionResponse{
		Text:      result.Candidates[0].Content.Parts[0].Text,
		Model:     model,
		LatencyMs: latency,
	}, nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGemini,
	}
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
