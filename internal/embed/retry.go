package embed

import (
	"context"
	"log/slog"
	"time"

	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
)

// RetryEmbedder retries failed Embed calls with a fixed backoff. Transient
// embedding service hiccups otherwise force a whole query into lexical-only
// degradation.
type RetryEmbedder struct {
	inner    Embedder
	attempts int
	backoff  time.Duration
}

// NewRetryEmbedder wraps inner. attempts is the total number of tries.
func NewRetryEmbedder(inner Embedder, attempts int, backoff time.Duration) *RetryEmbedder {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &RetryEmbedder{inner: inner, attempts: attempts, backoff: backoff}
}

func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == r.attempts || !rerrors.IsRetryable(err) {
			break
		}
		slog.Debug("embed retry",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, rerrors.Wrap(rerrors.ErrCodeEmbeddingBackend, ctx.Err())
		case <-time.After(r.backoff):
		}
	}
	return nil, lastErr
}

func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

func (r *RetryEmbedder) ModelName() string { return r.inner.ModelName() }

func (r *RetryEmbedder) Available(ctx context.Context) bool { return r.inner.Available(ctx) }

func (r *RetryEmbedder) Close() error { return r.inner.Close() }

var _ Embedder = (*RetryEmbedder)(nil)
