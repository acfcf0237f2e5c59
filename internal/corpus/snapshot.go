package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
)

// Snapshot is a complete, immutable corpus version as produced by the
// ingestion pipeline. The core treats it as read-only input.
type Snapshot struct {
	Version     int         `json:"version"`
	ContentHash string      `json:"content_hash,omitempty"`
	Namespaces  []Namespace `json:"namespaces"`
	Documents   []Document  `json:"documents"`
	Chunks      []Chunk     `json:"chunks"`
}

// LoadSnapshot reads and validates a corpus snapshot from a JSON file.
// If the snapshot carries no content hash, one is computed from the chunk
// contents so that cache invalidation works regardless of the producer.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeCorpusLoad, fmt.Errorf("read snapshot %s: %w", path, err))
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeCorpusLoad, fmt.Errorf("parse snapshot %s: %w", path, err))
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}

	if snap.ContentHash == "" {
		snap.ContentHash = snap.ComputeContentHash()
	}
	snap.refreshChunkCounts()

	return &snap, nil
}

// Validate enforces the corpus invariants: unique stable chunk IDs, every
// chunk in exactly one cataloged namespace, bounded text, known granularity.
func (s *Snapshot) Validate() error {
	catalog := Catalog(s.Namespaces)
	if len(catalog) == 0 {
		return rerrors.New(rerrors.ErrCodeCorpusInvalid, "snapshot has no namespaces", nil)
	}

	seenNS := make(map[string]struct{}, len(catalog))
	for _, ns := range catalog {
		if ns.Name == "" {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "namespace with empty name", nil)
		}
		if _, dup := seenNS[ns.Name]; dup {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "duplicate namespace "+ns.Name, nil)
		}
		seenNS[ns.Name] = struct{}{}
	}

	docs := make(map[string]struct{}, len(s.Documents))
	for _, d := range s.Documents {
		if d.ID == "" {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "document with empty id", nil)
		}
		if _, dup := docs[d.ID]; dup {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "duplicate document "+d.ID, nil)
		}
		if !catalog.Contains(d.Namespace) {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("document %s references unknown namespace %q", d.ID, d.Namespace), nil)
		}
		docs[d.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(s.Chunks))
	for _, c := range s.Chunks {
		if c.ID == "" {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "chunk with empty id", nil)
		}
		if _, dup := seen[c.ID]; dup {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid, "duplicate chunk id "+c.ID, nil)
		}
		seen[c.ID] = struct{}{}

		if !catalog.Contains(c.Namespace) {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("chunk %s references unknown namespace %q", c.ID, c.Namespace), nil)
		}
		if _, ok := docs[c.DocumentID]; c.DocumentID != "" && !ok {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("chunk %s references unknown document %q", c.ID, c.DocumentID), nil)
		}
		if !ValidGranularity(c.Granularity) {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("chunk %s has unknown granularity %q", c.ID, c.Granularity), nil)
		}
		if len(c.Text) > MaxChunkText {
			return rerrors.New(rerrors.ErrCodeCorpusInvalid,
				fmt.Sprintf("chunk %s text exceeds %d characters (%d)", c.ID, MaxChunkText, len(c.Text)), nil)
		}
	}

	return nil
}

// ComputeContentHash derives a deterministic hash over the chunk contents
// and their namespace assignments. Chunks are hashed in ID order so the
// hash is independent of snapshot serialization order.
func (s *Snapshot) ComputeContentHash() string {
	ordered := make([]Chunk, len(s.Chunks))
	copy(ordered, s.Chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	h := sha256.New()
	for _, c := range ordered {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
		h.Write([]byte(c.Namespace))
		h.Write([]byte{0})
		h.Write([]byte(c.Granularity))
		h.Write([]byte{0})
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// refreshChunkCounts recomputes per-namespace chunk counts.
func (s *Snapshot) refreshChunkCounts() {
	counts := make(map[string]int, len(s.Namespaces))
	for _, c := range s.Chunks {
		counts[c.Namespace]++
	}
	for i := range s.Namespaces {
		s.Namespaces[i].ChunkCount = counts[s.Namespaces[i].Name]
	}
}

// Catalog returns the snapshot's namespace catalog.
func (s *Snapshot) Catalog() Catalog {
	return Catalog(s.Namespaces)
}
