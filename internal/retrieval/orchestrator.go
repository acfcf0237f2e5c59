package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohik-agnext/docker-chatbot/internal/cache"
	"github.com/mohik-agnext/docker-chatbot/internal/config"
	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/lexical"
	"github.com/mohik-agnext/docker-chatbot/internal/namespace"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
	"github.com/mohik-agnext/docker-chatbot/internal/store"
	"github.com/mohik-agnext/docker-chatbot/internal/telemetry"
	"github.com/mohik-agnext/docker-chatbot/internal/vector"
)

// Options configures the orchestrator.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Embedder embed.Embedder
	// Vector is the vector store client. Nil means build an in-process
	// index from each snapshot (the "local" provider).
	Vector  vector.Client
	Metrics *telemetry.Metrics
}

// Orchestrator runs the retrieval pipeline: scope selection, parallel
// lexical and vector ranking, fusion, resolution, and result caching.
// A single instance serves all requests concurrently.
type Orchestrator struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *store.Store
	embedder embed.Embedder
	remote   vector.Client
	fusion   *search.Fusion
	results  *cache.Cache[*Response]
	metrics  *telemetry.Metrics

	// rebuildMu serializes Warmup and Rebuild; mu guards the swapped state.
	rebuildMu sync.Mutex
	mu        sync.RWMutex
	ready     bool
	stale     bool
	snap      *corpus.Snapshot
	lexIndex  *lexical.Index
	selector  *namespace.Selector
	localVec  *vector.LocalIndex
}

// New creates an orchestrator. Call Warmup before serving requests.
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics(0, 0)
	}
	cfg := opts.Config
	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		store:    opts.Store,
		embedder: opts.Embedder,
		remote:   opts.Vector,
		fusion: search.NewFusion(cfg.Search.RRFConstant, search.Weights{
			Lexical: cfg.Search.LexicalWeight,
			Vector:  cfg.Search.VectorWeight,
		}),
		results: cache.New[*Response](cfg.Cache.Capacity, cfg.Cache.TTL),
		metrics: metrics,
	}
}

// Ready reports whether warm-up has completed.
func (o *Orchestrator) Ready() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready
}

// MarkStale flags the corpus snapshot as changed. The next request (or an
// explicit Rebuild) reloads it before serving.
func (o *Orchestrator) MarkStale() {
	o.mu.Lock()
	o.stale = true
	o.mu.Unlock()
	o.log.Info("corpus marked stale")
}

// Warmup loads the snapshot and builds all derived state. Until it returns,
// Retrieve rejects requests with a retryable not-ready error.
func (o *Orchestrator) Warmup(ctx context.Context) error {
	start := time.Now()
	if err := o.rebuild(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	o.ready = true
	o.mu.Unlock()
	o.log.Info("warmup complete", slog.Duration("took", time.Since(start)))
	return nil
}

// Rebuild reloads the snapshot and swaps in fresh indexes. Concurrent
// requests keep being served from the old state until the swap.
func (o *Orchestrator) Rebuild(ctx context.Context) error {
	return o.rebuild(ctx)
}

func (o *Orchestrator) rebuild(ctx context.Context) error {
	o.rebuildMu.Lock()
	defer o.rebuildMu.Unlock()
	return o.rebuildLocked(ctx)
}

// rebuildIfStale rebuilds only when the stale flag is still set once the
// rebuild lock is held. Concurrent requests that all saw the flag queue up
// here; the first one rebuilds and the rest return without repeating it.
func (o *Orchestrator) rebuildIfStale(ctx context.Context) error {
	o.rebuildMu.Lock()
	defer o.rebuildMu.Unlock()

	o.mu.RLock()
	stale := o.stale
	o.mu.RUnlock()
	if !stale {
		return nil
	}
	return o.rebuildLocked(ctx)
}

func (o *Orchestrator) rebuildLocked(ctx context.Context) error {
	snap, err := corpus.LoadSnapshot(o.cfg.Corpus.SnapshotPath)
	if err != nil {
		return err
	}

	// The store records which corpus version it holds; a stale signal for an
	// unchanged snapshot skips the row churn.
	stored, err := o.store.GetState(ctx, store.StateCorpusHash)
	if err != nil {
		return err
	}
	if stored != snap.ContentHash {
		if err := o.store.ReplaceSnapshot(ctx, snap); err != nil {
			return err
		}
	}

	params := lexical.Params{K1: o.cfg.Search.BM25K1, B: o.cfg.Search.BM25B}
	lexIndex, cached, err := lexical.LoadArtifact(o.cfg.Cache.ArtifactDir, snap.ContentHash, params)
	if err != nil {
		return err
	}
	if !cached {
		lexIndex = lexical.Build(snap, params)
		if _, err := lexIndex.WriteArtifact(o.cfg.Cache.ArtifactDir); err != nil {
			// The artifact only speeds up the next start; the in-memory
			// index is already usable.
			o.log.Warn("lexical artifact write failed", slog.String("error", err.Error()))
		}
	}
	o.log.Info("lexical index ready",
		slog.Bool("from_artifact", cached),
		slog.Int("chunks", lexIndex.DocCount()),
		slog.Int("terms", lexIndex.TermCount()))

	var localVec *vector.LocalIndex
	if o.remote == nil {
		localVec, err = vector.BuildLocalIndex(ctx, snap, o.embedder)
		if err != nil {
			return err
		}
		o.log.Info("vector index ready", slog.Int("vectors", localVec.Count()))
	}

	selector := namespace.NewSelector(snap.Catalog(), namespace.Config{
		MaxNamespaces: o.cfg.Selector.MaxNamespaces,
		MinScore:      o.cfg.Selector.MinScore,
		Defaults:      o.cfg.Selector.DefaultNamespaces,
		MemoSize:      256,
	})

	o.mu.Lock()
	o.snap = snap
	o.lexIndex = lexIndex
	o.selector = selector
	o.localVec = localVec
	o.stale = false
	o.mu.Unlock()

	// Entries are keyed by corpus hash, so old entries can only miss now.
	o.results.Purge()

	o.log.Info("corpus loaded",
		slog.String("corpus_hash", snap.ContentHash),
		slog.Int("namespaces", len(snap.Namespaces)),
		slog.Int("chunks", len(snap.Chunks)))
	return nil
}

// vectorClient returns the active vector client.
func (o *Orchestrator) vectorClient() vector.Client {
	if o.remote != nil {
		return o.remote
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.localVec
}

// Retrieve answers one query. On a cache miss both ranking sources run in
// parallel; when the vector source fails the response is served degraded
// from the lexical index alone.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	o.mu.RLock()
	ready, staleFlag := o.ready, o.stale
	o.mu.RUnlock()
	if !ready {
		return nil, rerrors.NotReady()
	}
	if staleFlag {
		if err := o.rebuildIfStale(ctx); err != nil {
			return nil, err
		}
	}

	o.mu.RLock()
	snap := o.snap
	lexIndex := o.lexIndex
	selector := o.selector
	o.mu.RUnlock()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &Response{
			Query:      req.Query,
			Namespaces: []string{},
			Results:    []Result{},
			CorpusHash: snap.ContentHash,
			Took:       time.Since(start),
		}, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = o.cfg.Search.DefaultTopK
	}
	if topK > o.cfg.Search.MaxTopK {
		topK = o.cfg.Search.MaxTopK
	}

	namespaces, err := o.resolveScope(snap, selector, req.Namespaces, query)
	if err != nil {
		return nil, err
	}

	key := cache.Key(cache.KeyInputs{
		Query:         query,
		Namespaces:    namespaces,
		TopK:          topK,
		RRFConstant:   o.fusion.K,
		LexicalWeight: o.fusion.W.Lexical,
		VectorWeight:  o.fusion.W.Vector,
		CorpusHash:    snap.ContentHash,
	})
	if cached, ok := o.results.Get(key); ok {
		resp := *cached
		resp.CacheHit = true
		resp.Took = time.Since(start)
		o.record(query, namespaces, &resp, nil)
		return &resp, nil
	}

	lexResults, vecResults, degradedReason := o.rankParallel(ctx, lexIndex, query, namespaces, topK)

	fused := o.fusion.Fuse(lexResults, vecResults)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	results, err := o.resolve(ctx, fused)
	if err != nil {
		o.record(query, namespaces, nil, err)
		return nil, err
	}

	resp := &Response{
		Query:          query,
		Namespaces:     namespaces,
		Results:        results,
		Degraded:       degradedReason != "",
		DegradedReason: degradedReason,
		CorpusHash:     snap.ContentHash,
		Took:           time.Since(start),
	}
	o.results.Set(key, resp)
	o.record(query, namespaces, resp, nil)
	return resp, nil
}

// resolveScope validates explicit namespaces or runs the selector.
func (o *Orchestrator) resolveScope(snap *corpus.Snapshot, selector *namespace.Selector, explicit []string, query string) ([]string, error) {
	if len(explicit) == 0 {
		return selector.Select(query), nil
	}
	catalog := snap.Catalog()
	valid := make([]string, 0, len(explicit))
	for _, name := range explicit {
		if catalog.Contains(name) {
			valid = append(valid, name)
		} else {
			o.log.Warn("unknown namespace requested", slog.String("namespace", name))
		}
	}
	if len(valid) == 0 {
		return nil, rerrors.New(rerrors.ErrCodeScopeSelection,
			fmt.Sprintf("none of the requested namespaces exist: %s", strings.Join(explicit, ", ")), nil)
	}
	if len(valid) > o.cfg.Selector.MaxNamespaces {
		valid = valid[:o.cfg.Selector.MaxNamespaces]
	}
	return valid, nil
}

// rankParallel runs both ranking sources concurrently. The request timeout
// applies to the vector path only: the lexical index is in-memory and always
// finishes, which guarantees at least one source for degraded answers even
// when the embedding service hangs until the deadline.
func (o *Orchestrator) rankParallel(ctx context.Context, lexIndex *lexical.Index, query string, namespaces []string, topK int) (lex, vec []search.RankedResult, degradedReason string) {
	vecCtx, cancel := context.WithTimeout(ctx, o.cfg.Search.RequestTimeout)
	defer cancel()

	var vecErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		lex = lexIndex.Search(query, namespaces, topK)
		return nil
	})
	g.Go(func() error {
		client := o.vectorClient()
		if client == nil {
			vecErr = rerrors.VectorBackendError("no vector backend configured", nil)
			return nil
		}
		qv, embErr := o.embedder.Embed(vecCtx, query)
		if embErr != nil {
			vecErr = embErr
			return nil
		}
		vec, vecErr = client.Query(vecCtx, qv, namespaces, topK)
		return nil
	})
	_ = g.Wait()

	// Vector unavailability is never a user-facing failure. The response
	// carries whatever the lexical source found, possibly nothing, with the
	// degraded flag as the only trace.
	if vecErr != nil {
		o.log.Warn("vector source failed, serving lexical-only",
			slog.String("error", vecErr.Error()))
		vec = nil
		degradedReason = string(search.SourceVector)
	}
	return lex, vec, degradedReason
}

// resolve turns fused chunk IDs into full results via the metadata store.
func (o *Orchestrator) resolve(ctx context.Context, fused []search.FusedResult) ([]Result, error) {
	rctx := context.WithoutCancel(ctx)

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := o.store.GetChunks(rctx, ids)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string)
	for _, c := range chunks {
		if c.DocumentID == "" {
			continue
		}
		if _, seen := titles[c.DocumentID]; seen {
			continue
		}
		doc, found, err := o.store.GetDocument(rctx, c.DocumentID)
		if err != nil {
			return nil, err
		}
		if found {
			titles[c.DocumentID] = doc.Title
		}
	}

	results := make([]Result, 0, len(fused))
	for i, f := range fused {
		c, ok := chunks[f.ChunkID]
		if !ok {
			// Index and store disagree; skip rather than serve a ghost.
			o.log.Warn("fused chunk missing from store", slog.String("chunk_id", f.ChunkID))
			continue
		}
		results = append(results, Result{
			ChunkID:       c.ID,
			DocumentID:    c.DocumentID,
			DocumentTitle: titles[c.DocumentID],
			Namespace:     c.Namespace,
			Granularity:   c.Granularity,
			Text:          c.Text,
			Score:         f.Score,
			Rank:          i + 1,
			Sources:       f.Sources,
		})
	}
	return results, nil
}

func (o *Orchestrator) record(query string, namespaces []string, resp *Response, err error) {
	e := telemetry.Event{
		Query:      query,
		Namespaces: namespaces,
		Failed:     err != nil,
		Timestamp:  time.Now(),
	}
	if resp != nil {
		e.ResultCount = len(resp.Results)
		e.CacheHit = resp.CacheHit
		e.Degraded = resp.Degraded
		e.Latency = resp.Took
	}
	o.metrics.Record(e)
}

// Stats returns the engine's operational snapshot.
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	o.mu.RLock()
	ready := o.ready
	snap := o.snap
	o.mu.RUnlock()

	stats := &Stats{
		Ready:       ready,
		ResultCache: cacheStats(o.results),
		Queries:     o.metrics.Snapshot(),
	}
	if o.embedder != nil {
		stats.Backends.Embedding = o.embedder.Available(ctx)
	}
	if client := o.vectorClient(); client != nil {
		stats.Backends.Vector = client.Available(ctx)
	}
	if snap != nil {
		stats.CorpusHash = snap.ContentHash
		n, err := o.store.ChunkCount(ctx)
		if err != nil {
			return nil, err
		}
		stats.ChunkCount = n
		counts, err := o.store.NamespaceCounts(ctx)
		if err != nil {
			return nil, err
		}
		stats.NamespaceCounts = counts
	}
	if ce, ok := o.embedder.(*embed.CachedEmbedder); ok {
		hits, misses := ce.Stats()
		cs := CacheStats{Hits: hits, Misses: misses}
		if total := hits + misses; total > 0 {
			cs.HitRate = float64(hits) / float64(total)
		}
		stats.EmbeddingCache = &cs
	}
	return stats, nil
}

// Close releases backend resources.
func (o *Orchestrator) Close() error {
	var firstErr error
	if o.embedder != nil {
		if err := o.embedder.Close(); err != nil {
			firstErr = err
		}
	}
	if o.remote != nil {
		if err := o.remote.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if o.store != nil {
		if err := o.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
