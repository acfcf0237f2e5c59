package vector

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
	"github.com/mohik-agnext/docker-chatbot/internal/search"
)

// RemoteConfig configures the external vector store client.
type RemoteConfig struct {
	// Endpoint is the store base URL; the client posts to <Endpoint>/query.
	Endpoint string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Timeout bounds one request.
	Timeout time.Duration
	// RetryBackoff is the delay before the single retry of a failed call.
	RetryBackoff time.Duration
}

// RemoteClient queries an external vector store over HTTP. A failed call is
// retried once after a short backoff; persistent failure surfaces as a
// retryable backend error, which the orchestrator turns into degradation
// rather than a user-facing failure.
type RemoteClient struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemoteClient creates a client for the vector store.
func NewRemoteClient(cfg RemoteConfig) (*RemoteClient, error) {
	if cfg.Endpoint == "" {
		return nil, rerrors.New(rerrors.ErrCodeConfigInvalid, "vector endpoint is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &RemoteClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type queryRequest struct {
	Vector     []float32 `json:"vector"`
	Namespaces []string  `json:"namespaces"`
	TopK       int       `json:"top_k"`
}

type queryResponse struct {
	Results []struct {
		ChunkID string  `json:"chunk_id"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (r *RemoteClient) Query(ctx context.Context, vec []float32, namespaces []string, topK int) ([]search.RankedResult, error) {
	results, err := r.queryOnce(ctx, vec, namespaces, topK)
	if err == nil {
		return results, nil
	}

	select {
	case <-ctx.Done():
		return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend, ctx.Err())
	case <-time.After(r.cfg.RetryBackoff):
	}
	return r.queryOnce(ctx, vec, namespaces, topK)
}

func (r *RemoteClient) queryOnce(ctx context.Context, vec []float32, namespaces []string, topK int) ([]search.RankedResult, error) {
	body, err := json.Marshal(queryRequest{Vector: vec, Namespaces: namespaces, TopK: topK})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend, fmt.Errorf("marshal query: %w", err))
	}

	url := strings.TrimRight(r.cfg.Endpoint, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend, fmt.Errorf("vector query: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, rerrors.New(rerrors.ErrCodeVectorBackend,
			fmt.Sprintf("vector store returned %d", resp.StatusCode), nil).
			WithDetail("body", string(snippet))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend, fmt.Errorf("decode vector response: %w", err))
	}

	results := make([]search.RankedResult, len(out.Results))
	for i, h := range out.Results {
		results[i] = search.RankedResult{
			ChunkID: h.ChunkID,
			Score:   h.Score,
			Rank:    i + 1,
			Source:  search.SourceVector,
		}
	}
	return results, nil
}

// Available probes the store health endpoint.
func (r *RemoteClient) Available(ctx context.Context) bool {
	url := strings.TrimRight(r.cfg.Endpoint, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (r *RemoteClient) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Client = (*RemoteClient)(nil)
