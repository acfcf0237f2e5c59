package lexical

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
)

// artifactVersion guards the on-disk encoding. Bump on any layout change;
// stale versions are treated as absent and rebuilt from the snapshot.
const artifactVersion = 1

type artifactSpace struct {
	DocLen   map[string]int
	Postings map[string]map[string]int
	TotalLen int
}

type artifactFile struct {
	Version    int
	CorpusHash string
	Params     Params
	Spaces     map[string]artifactSpace
}

// artifactPath names the artifact by corpus hash, so snapshots never share
// or clobber each other's index files.
func artifactPath(dir, corpusHash string) string {
	return filepath.Join(dir, fmt.Sprintf("lexical-%s.idx", corpusHash))
}

// WriteArtifact persists the index under dir, keyed by its corpus hash.
// The write goes to a temp file and is renamed into place, under a file
// lock, so concurrent processes (or a crash mid-write) can never leave a
// half-written artifact behind.
func (ix *Index) WriteArtifact(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("create artifact dir: %w", err))
	}

	path := artifactPath(dir, ix.corpusHash)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("lock artifact: %w", err))
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, ".lexical-*")
	if err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("create temp artifact: %w", err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	payload := artifactFile{
		Version:    artifactVersion,
		CorpusHash: ix.corpusHash,
		Params:     ix.params,
		Spaces:     make(map[string]artifactSpace, len(ix.spaces)),
	}
	for name, sp := range ix.spaces {
		payload.Spaces[name] = artifactSpace{
			DocLen:   sp.docLen,
			Postings: sp.postings,
			TotalLen: sp.totalLen,
		}
	}

	if err := gob.NewEncoder(tmp).Encode(&payload); err != nil {
		_ = tmp.Close()
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("encode artifact: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("close temp artifact: %w", err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("publish artifact: %w", err))
	}
	return path, nil
}

// LoadArtifact loads the artifact for corpusHash from dir. The second return
// is false when no usable artifact exists (missing file, version or
// parameter mismatch, or a corrupt encoding); the caller rebuilds from the
// snapshot in that case. Corruption is not an error: the artifact is a
// cache, the snapshot stays authoritative.
func LoadArtifact(dir, corpusHash string, params Params) (*Index, bool, error) {
	path := artifactPath(dir, corpusHash)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, rerrors.Wrap(rerrors.ErrCodeStoreFailure, fmt.Errorf("open artifact: %w", err))
	}
	defer func() { _ = f.Close() }()

	var payload artifactFile
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, nil
	}
	if payload.Version != artifactVersion || payload.CorpusHash != corpusHash || payload.Params != params {
		return nil, false, nil
	}

	ix := &Index{
		params:     payload.Params,
		analyzer:   NewAnalyzer(),
		corpusHash: payload.CorpusHash,
		spaces:     make(map[string]*space, len(payload.Spaces)),
	}
	for name, sp := range payload.Spaces {
		ix.spaces[name] = &space{
			docLen:   sp.DocLen,
			postings: sp.Postings,
			totalLen: sp.TotalLen,
		}
	}
	return ix, true, nil
}
