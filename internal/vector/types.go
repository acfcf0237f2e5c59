// Package vector provides the semantic ranking source: clients that turn a
// query embedding into a namespace-scoped ranked list of chunk IDs. Two
// implementations exist, an HTTP client for an external vector store and an
// in-process HNSW index for development and tests.
package vector

import (
	"context"

	"github.com/mohik-agnext/docker-chatbot/internal/search"
)

// Client queries a vector store with a query embedding.
type Client interface {
	// Query returns up to topK chunks nearest the query vector, restricted
	// to the given namespaces, best first with 1-based ranks assigned.
	Query(ctx context.Context, vec []float32, namespaces []string, topK int) ([]search.RankedResult, error)

	// Available reports whether the store is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
