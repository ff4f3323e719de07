package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProviderConfig configures the HTTP-backed Embedding Port
// implementation.
type HTTPProviderConfig struct {
	Endpoint string
	Dim      int
	Timeout  time.Duration
}

// httpEmbedRequest and httpEmbedResponse are the wire shapes exchanged with
// the configured embedding endpoint: one text in, one fixed-dimension
// vector out.
type httpEmbedRequest struct {
	Text string `json:"text"`
}

type httpEmbedResponse struct {
	Vector []float32 `json:"vector"`
}

// HTTPProvider is a Provider backed by a single HTTP embedding endpoint,
// following the same request/response/timeout shape as the validator
// port's single-LLM variant.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
}

// NewHTTPProvider constructs an HTTPProvider.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Dimension reports the configured embedding dimension.
func (p *HTTPProvider) Dimension() int { return p.cfg.Dim }

// Embed posts text to the configured endpoint and returns the vector it
// responds with.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(httpEmbedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: endpoint returned status %d", resp.StatusCode)
	}

	var parsed httpEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: unmarshal response: %w", err)
	}
	if len(parsed.Vector) != p.cfg.Dim {
		return nil, fmt.Errorf("%w: endpoint returned %d dimensions, want %d", ErrDimensionMismatch, len(parsed.Vector), p.cfg.Dim)
	}
	return parsed.Vector, nil
}
