// Package corpus defines the data model the retrieval core consumes from the
// ingestion pipeline: documents, chunks, and the namespace catalog, plus the
// content hash used for cache invalidation. The core never mutates a corpus;
// it only swaps whole snapshots.
package corpus

import (
	"sort"
)

// MaxChunkText is the character budget for one chunk's text body. The
// generation consumer's prompt template assumes this bound.
const MaxChunkText = 800

// Granularity tags the retrieval unit size of a chunk.
type Granularity string

const (
	GranularityDocument Granularity = "document"
	GranularitySection  Granularity = "section"
	GranularityClause   Granularity = "clause"
	GranularityFact     Granularity = "fact"
)

// ValidGranularity reports whether g is one of the known granularity tags.
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityDocument, GranularitySection, GranularityClause, GranularityFact:
		return true
	}
	return false
}

// Document is one ingested policy source. Immutable after ingestion.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Namespace string `json:"namespace"`
}

// Chunk is the minimal retrievable unit. Chunk IDs are globally unique and
// stable across rebuilds so ranks and cache keys remain valid.
type Chunk struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	Namespace   string      `json:"namespace"`
	Granularity Granularity `json:"granularity"`
	Text        string      `json:"text"`
}

// Namespace is a named partition of the corpus used to scope search.
// Every chunk belongs to exactly one namespace.
type Namespace struct {
	// Name is the partition identifier (e.g. "excise_policy_fact").
	Name string `json:"name"`
	// Description is a short semantic descriptor used for selection.
	Description string `json:"description"`
	// Keywords drive the selector's overlap scoring.
	Keywords []string `json:"keywords"`
	// ChunkCount is maintained by the snapshot loader.
	ChunkCount int `json:"chunk_count,omitempty"`
}

// Catalog is the fixed, ordered namespace catalog. Order matters: selection
// ties are broken by catalog position for determinism.
type Catalog []Namespace

// Names returns the namespace names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, ns := range c {
		names[i] = ns.Name
	}
	return names
}

// ByName returns the namespace with the given name, or false.
func (c Catalog) ByName(name string) (Namespace, bool) {
	for _, ns := range c {
		if ns.Name == name {
			return ns, true
		}
	}
	return Namespace{}, false
}

// Contains reports whether the catalog has a namespace with the given name.
func (c Catalog) Contains(name string) bool {
	_, ok := c.ByName(name)
	return ok
}

// SortedNames returns a lexicographically sorted copy of the namespace names.
// Used for deterministic cache keys.
func SortedNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
