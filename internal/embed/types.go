// Package embed provides query embedding for the vector ranking source:
// an HTTP client for the external embedding service, a deterministic static
// fallback, and decorators for caching and retries.
package embed

import (
	"context"
)

// Embedder converts query text into a dense vector.
type Embedder interface {
	// Embed returns the embedding for text. Implementations must be
	// deterministic for identical text within one model version, or the
	// embedding cache would return inconsistent vectors.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName identifies the model, for logging and stats.
	ModelName() string

	// Available reports whether the backend is reachable. Used by the
	// readiness probe and by degradation decisions.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
