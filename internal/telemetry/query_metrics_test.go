package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, LatencyToBucket(tt.d))
		})
	}
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"vector", "search"}, ExtractTerms("  Vector SEARCH in go "))
	assert.Nil(t, ExtractTerms("a an"))
	assert.Nil(t, ExtractTerms(""))
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given
	m := NewQueryMetrics(DefaultConfig())

	// When: a mix of searches is recorded
	m.Record(QueryEvent{Query: "chunk overlap", ResultCount: 3, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "Chunk Overlap ", ResultCount: 3, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "missing topic", ResultCount: 0, Latency: 5 * time.Millisecond})

	// Then
	s := m.Snapshot()
	assert.EqualValues(t, 3, s.TotalQueries)
	assert.EqualValues(t, 1, s.ZeroResultCount)
	assert.EqualValues(t, 1, s.ExactRepeatCount)
	assert.Equal(t, []string{"missing topic"}, s.ZeroResultQueries)
	assert.Equal(t, map[LatencyBucket]int64{BucketP10: 2, BucketP50: 1}, s.LatencyDistribution)
	require.Len(t, s.TopTerms, 4)
	assert.Equal(t, TermCount{Term: "chunk", Count: 2}, s.TopTerms[0])
	assert.Equal(t, TermCount{Term: "overlap", Count: 2}, s.TopTerms[1])
	_, err := time.Parse(time.RFC3339, s.Since)
	assert.NoError(t, err)
}

func TestQueryMetrics_Bounds(t *testing.T) {
	m := NewQueryMetrics(Config{ZeroResultsCapacity: 2, TopTermsReported: 1})

	for i := range 4 {
		m.Record(QueryEvent{Query: fmt.Sprintf("query%d", i)})
	}
	m.Record(QueryEvent{Query: "query3", ResultCount: 1})

	s := m.Snapshot()
	// Only the last two zero-result queries are kept, oldest first.
	assert.Equal(t, []string{"query2", "query3"}, s.ZeroResultQueries)
	assert.EqualValues(t, 4, s.ZeroResultCount)
	require.Len(t, s.TopTerms, 1)
	assert.Equal(t, TermCount{Term: "query3", Count: 2}, s.TopTerms[0])
}

func TestQueryMetrics_Concurrent(t *testing.T) {
	m := NewQueryMetrics(DefaultConfig())
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				m.Record(QueryEvent{Query: fmt.Sprintf("term%d", (i+j)%7), ResultCount: j % 2})
				_ = m.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 500, m.Snapshot().TotalQueries)
}
