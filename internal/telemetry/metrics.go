// Package telemetry collects local retrieval metrics: latency distribution,
// cache effectiveness, degradation counts, and recent zero-result queries.
// Everything stays in memory and is served by the stats surface; nothing is
// reported externally.
package telemetry

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// Event is one completed retrieval request.
type Event struct {
	Query       string
	Namespaces  []string
	ResultCount int
	CacheHit    bool
	Degraded    bool
	Failed      bool
	Latency     time.Duration
	Timestamp   time.Time
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// TermCount is a query term and how often it was seen.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	CacheHits           int64                   `json:"cache_hits"`
	CacheHitRate        float64                 `json:"cache_hit_rate"`
	DegradedCount       int64                   `json:"degraded_count"`
	FailedCount         int64                   `json:"failed_count"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	AvgLatencyMillis    float64                 `json:"avg_latency_ms"`
	TopTerms            []TermCount             `json:"top_terms"`
	NamespaceCounts     map[string]int64        `json:"namespace_counts"`
	Since               time.Time               `json:"since"`
}

// Metrics collects retrieval telemetry. Safe for concurrent use.
type Metrics struct {
	mu sync.RWMutex

	totalQueries    int64
	cacheHits       int64
	degradedCount   int64
	failedCount     int64
	zeroResultCount int64
	totalLatency    time.Duration
	latencies       map[LatencyBucket]int64
	namespaces      map[string]int64
	zeroResults     *CircularBuffer[string]
	topTerms        *lru.Cache[string, int64]
	startTime       time.Time
}

// NewMetrics creates an empty collector. termCapacity bounds the tracked
// term set; zeroCapacity bounds the zero-result query buffer.
func NewMetrics(termCapacity, zeroCapacity int) *Metrics {
	if termCapacity <= 0 {
		termCapacity = 100
	}
	topTerms, _ := lru.New[string, int64](termCapacity)
	return &Metrics{
		latencies:   make(map[LatencyBucket]int64),
		namespaces:  make(map[string]int64),
		zeroResults: NewCircularBuffer[string](zeroCapacity),
		topTerms:    topTerms,
		startTime:   time.Now(),
	}
}

// Record captures one completed request.
func (m *Metrics) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	m.totalLatency += e.Latency
	m.latencies[LatencyToBucket(e.Latency)]++

	if e.CacheHit {
		m.cacheHits++
	}
	if e.Degraded {
		m.degradedCount++
	}
	if e.Failed {
		m.failedCount++
	}
	if e.ResultCount == 0 && !e.Failed {
		m.zeroResultCount++
		m.zeroResults.Add(e.Query)
	}
	for _, ns := range e.Namespaces {
		m.namespaces[ns]++
	}
	for _, term := range extractTerms(e.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
}

// Snapshot returns the current metrics.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}
	namespaces := make(map[string]int64, len(m.namespaces))
	for k, v := range m.namespaces {
		namespaces[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	for i := 0; i < len(topTerms); i++ {
		for j := i + 1; j < len(topTerms); j++ {
			if topTerms[j].Count > topTerms[i].Count {
				topTerms[i], topTerms[j] = topTerms[j], topTerms[i]
			}
		}
	}

	var hitRate, avgMillis float64
	if m.totalQueries > 0 {
		hitRate = float64(m.cacheHits) / float64(m.totalQueries)
		avgMillis = float64(m.totalLatency.Milliseconds()) / float64(m.totalQueries)
	}

	return &Snapshot{
		TotalQueries:        m.totalQueries,
		CacheHits:           m.cacheHits,
		CacheHitRate:        hitRate,
		DegradedCount:       m.degradedCount,
		FailedCount:         m.failedCount,
		ZeroResultCount:     m.zeroResultCount,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		AvgLatencyMillis:    avgMillis,
		TopTerms:            topTerms,
		NamespaceCounts:     namespaces,
		Since:               m.startTime,
	}
}

// extractTerms lowercases the query and keeps words of length >= 3.
func extractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(strings.TrimSpace(query))) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}
