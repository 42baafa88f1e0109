package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsSameInstance(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordQuery(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordQuery(false, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(false, errors.New("boom"))

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(4), queries["total"])
	assert.Equal(t, uint64(1), queries["errors"])
	assert.Equal(t, uint64(2), queries["cache_hits"])
	assert.Equal(t, uint64(1), queries["cache_misses"])
	assert.InDelta(t, 2.0/3.0, queries["cache_hit_rate"].(float64), 1e-9)
}

func TestRecordRetrievalAndGeneration(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(0, errors.New("boom"))

	m.RecordGeneration(time.Second, nil)

	stats := m.Stats()
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	assert.InDelta(t, 0.2, retrieval["avg_duration_secs"].(float64), 1e-6)

	generation := stats["generation"].(map[string]interface{})
	assert.Equal(t, uint64(1), generation["total"])
	assert.InDelta(t, 1.0, generation["avg_duration_secs"].(float64), 1e-6)
}

func TestRecordIndexing(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordIndexing(2, 17, nil)
	m.RecordIndexing(0, 0, errors.New("boom"))

	stats := m.Stats()
	indexing := stats["indexing"].(map[string]interface{})
	assert.Equal(t, uint64(2), indexing["documents_indexed"])
	assert.Equal(t, uint64(17), indexing["chunks_indexed"])
	assert.Equal(t, uint64(1), indexing["errors"])
}

func TestRecordEvaluation(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordEvaluation(false)
	m.RecordEvaluation(true)

	stats := m.Stats()
	evaluation := stats["evaluation"].(map[string]interface{})
	assert.Equal(t, uint64(2), evaluation["total"])
	assert.Equal(t, uint64(1), evaluation["failed"])
}

func TestReset(t *testing.T) {
	m := &Metrics{startTime: time.Now()}
	m.RecordQuery(false, nil)
	m.RecordRetrieval(time.Second, nil)

	m.Reset()

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	require.Equal(t, uint64(0), queries["total"])
	retrieval := stats["retrieval"].(map[string]interface{})
	require.Equal(t, uint64(0), retrieval["total"])
}
