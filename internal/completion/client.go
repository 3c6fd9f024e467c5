// Package completion wraps the text-completion service. One call sends
// one natural-language instruction and gets one reply back; nothing is
// enforced server-side, so replies are parsed defensively.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the completion capability the agents consume.
type Client interface {
	// Generate returns the raw reply text for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStructured asks for JSON and defensively parses the
	// reply. A reply that cannot be parsed yields an empty map, never
	// an error.
	GenerateStructured(ctx context.Context, prompt string) (map[string]any, error)
}

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-2.0-flash"
	requestTimeout = 30 * time.Second
)

// GeminiClient implements Client against the Gemini generateContent
// API. All calls share one rate limiter so the sequential agent loop
// respects the per-minute call budget.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option customizes a GeminiClient.
type Option func(*GeminiClient)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *GeminiClient) { c.baseURL = u }
}

// WithModel selects the model name.
func WithModel(m string) Option {
	return func(c *GeminiClient) { c.model = m }
}

// WithHTTPClient substitutes the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *GeminiClient) { c.httpClient = h }
}

// NewGemini constructs a client. callsPerMinute bounds the aggregate
// request rate across all callers sharing this client.
func NewGemini(apiKey string, callsPerMinute int, logger *zap.Logger, opts ...Option) *GeminiClient {
	if callsPerMinute <= 0 {
		callsPerMinute = 60
	}
	c := &GeminiClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends one prompt and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for call budget: %w", err)
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			MaxOutputTokens:  2048,
			ResponseMimeType: "text/plain",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion service returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion reply: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		c.logger.Warn("completion reply had no candidates")
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// GenerateStructured appends a JSON-only instruction to the prompt and
// parses whatever comes back.
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string) (map[string]any, error) {
	jsonPrompt := prompt + "\n\nIMPORTANT: Return ONLY valid JSON. No text outside of JSON. No markdown. No explanations."

	text, err := c.Generate(ctx, jsonPrompt)
	if err != nil {
		return nil, err
	}
	return ParseStructured(text), nil
}
