package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
)

// HTTPConfig configures the embedding service client.
type HTTPConfig struct {
	// Endpoint is the service base URL; the client posts to <Endpoint>/embed.
	Endpoint string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Model is the embedding model identifier.
	Model string
	// Dimensions declares the expected vector size; 0 trusts the service.
	Dimensions int
	// Timeout bounds one request.
	Timeout time.Duration
}

// HTTPEmbedder calls an external embedding service.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
	dims   int
}

// NewHTTPEmbedder creates a client for the embedding service.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, rerrors.New(rerrors.ErrCodeConfigInvalid, "embedding endpoint is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dims:   cfg.Dimensions,
	}, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (h *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: h.cfg.Model, Text: text})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeEmbeddingBackend, fmt.Errorf("marshal embed request: %w", err))
	}

	url := strings.TrimRight(h.cfg.Endpoint, "/") + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeEmbeddingBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeEmbeddingBackend, fmt.Errorf("embed request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, rerrors.New(rerrors.ErrCodeEmbeddingBackend,
			fmt.Sprintf("embedding service returned %d", resp.StatusCode), nil).
			WithDetail("body", string(snippet))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeEmbeddingBackend, fmt.Errorf("decode embed response: %w", err))
	}
	if len(out.Embedding) == 0 {
		return nil, rerrors.New(rerrors.ErrCodeEmbeddingBackend, "embedding service returned empty vector", nil)
	}
	if h.dims > 0 && len(out.Embedding) != h.dims {
		return nil, rerrors.New(rerrors.ErrCodeEmbeddingBackend,
			fmt.Sprintf("embedding dimension mismatch: want %d, got %d", h.dims, len(out.Embedding)), nil)
	}
	if h.dims == 0 {
		h.dims = len(out.Embedding)
	}
	return out.Embedding, nil
}

func (h *HTTPEmbedder) Dimensions() int { return h.dims }

func (h *HTTPEmbedder) ModelName() string { return h.cfg.Model }

// Available probes the service health endpoint.
func (h *HTTPEmbedder) Available(ctx context.Context) bool {
	url := strings.TrimRight(h.cfg.Endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (h *HTTPEmbedder) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

var _ Embedder = (*HTTPEmbedder)(nil)
