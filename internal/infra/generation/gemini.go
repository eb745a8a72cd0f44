package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	maxResponseSize = 4 << 20
)

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// RPS caps outbound calls per second; zero disables the cap.
	RPS     float64
	Timeout time.Duration
}

// Gemini calls the generateContent endpoint with a JSON response mime type.
type Gemini struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
}

func NewGemini(cfg GeminiConfig, log *logrus.Entry) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Gemini{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		log:        log.WithField("provider", "gemini"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction geminiContent   `json:"systemInstruction"`
	GenerationConfig  struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

func (g *Gemini) Generate(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttled: %v", ErrProvider, err)
	}

	req := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
	}
	req.GenerationConfig.ResponseMimeType = "application/json"
	req.GenerationConfig.Temperature = 0.7
	req.GenerationConfig.MaxOutputTokens = 8192

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}

	g.log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start).String(),
	}).Debug("generateContent")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, truncate(respBody, 512))
	}

	text := gjson.GetBytes(respBody, "candidates.0.content.parts.0.text").String()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrProvider)
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: model returned invalid JSON", ErrProvider)
	}
	return json.RawMessage(text), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
