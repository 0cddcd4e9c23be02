// Package telemetry keeps in-process statistics about search queries.
// Nothing leaves the process; the numbers are reported by index_status.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a search latency histogram bucket.
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

// QueryEvent is one completed search.
type QueryEvent struct {
	Query       string
	ResultCount int
	Latency     time.Duration
}

// TermCount is a query term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	TopTerms            []TermCount             `json:"top_terms,omitempty"`
	ZeroResultQueries   []string                `json:"zero_result_queries,omitempty"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	// Since is when recording started, RFC 3339.
	Since string `json:"since"`
}

// Config sizes the bounded collections.
type Config struct {
	// TopTermsCapacity bounds the tracked terms; least recently seen go first.
	TopTermsCapacity int
	// ZeroResultsCapacity bounds the remembered zero-result queries.
	ZeroResultsCapacity int
	// RecentQueriesCapacity bounds the window used to detect repeats.
	RecentQueriesCapacity int
	// TopTermsReported caps TopTerms in a Snapshot.
	TopTermsReported int
}

// DefaultConfig returns the default capacities.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   20,
		RecentQueriesCapacity: 500,
		TopTermsReported:      10,
	}
}

// QueryMetrics aggregates QueryEvents. It is safe for concurrent use.
type QueryMetrics struct {
	mu  sync.Mutex
	cfg Config

	total       int64
	zeroResults int64
	repeats     int64
	latencies   map[LatencyBucket]int64
	since       time.Time

	terms  *lru.Cache[string, int64]
	recent *lru.Cache[string, struct{}]
	// zeroRing holds the last zero-result queries, oldest at zeroHead once full.
	zeroRing []string
	zeroHead int
}

// NewQueryMetrics creates an empty QueryMetrics. Non-positive capacities
// fall back to DefaultConfig.
func NewQueryMetrics(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}
	if cfg.TopTermsReported <= 0 {
		cfg.TopTermsReported = def.TopTermsReported
	}

	// lru.New only fails for a non-positive size.
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryMetrics{
		cfg:       cfg,
		latencies: make(map[LatencyBucket]int64),
		since:     time.Now(),
		terms:     terms,
		recent:    recent,
		zeroRing:  make([]string, 0, cfg.ZeroResultsCapacity),
	}
}

// Record adds one search to the metrics.
func (m *QueryMetrics) Record(ev QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(ev.Latency)]++

	for _, term := range ExtractTerms(ev.Query) {
		n, _ := m.terms.Get(term)
		m.terms.Add(term, n+1)
	}

	if ev.ResultCount == 0 {
		m.zeroResults++
		if len(m.zeroRing) < cap(m.zeroRing) {
			m.zeroRing = append(m.zeroRing, ev.Query)
		} else {
			m.zeroRing[m.zeroHead] = ev.Query
			m.zeroHead = (m.zeroHead + 1) % len(m.zeroRing)
		}
	}

	key := hashQuery(ev.Query)
	if _, ok := m.recent.Get(key); ok {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot copies the current metrics. TopTerms is sorted by count, then
// term.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.terms.Len())
	for _, k := range m.terms.Keys() {
		if n, ok := m.terms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: n})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > m.cfg.TopTermsReported {
		terms = terms[:m.cfg.TopTermsReported]
	}

	zero := make([]string, 0, len(m.zeroRing))
	zero = append(zero, m.zeroRing[m.zeroHead:]...)
	zero = append(zero, m.zeroRing[:m.zeroHead]...)

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return Snapshot{
		TotalQueries:        m.total,
		ZeroResultCount:     m.zeroResults,
		ExactRepeatCount:    m.repeats,
		TopTerms:            terms,
		ZeroResultQueries:   zero,
		LatencyDistribution: latencies,
		Since:               m.since.Format(time.RFC3339),
	}
}

// ExtractTerms lowercases query and returns its words of three or more
// characters.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}
