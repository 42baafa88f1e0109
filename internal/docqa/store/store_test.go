package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/errors"
)

type fakeClient struct {
	ensureErr  error
	insertErr  error
	searchErr  error
	dropErr    error
	statsCount int64

	inserted []milvus.Entry
	results  []milvus.SearchResult
	dropped  bool
}

func (f *fakeClient) EnsureCollection(ctx context.Context, name string, dim int) error {
	return f.ensureErr
}

func (f *fakeClient) Insert(ctx context.Context, collection string, entries []milvus.Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, entries...)
	return nil
}

func (f *fakeClient) Search(ctx context.Context, collection string, vector []float32, topK int) ([]milvus.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if topK < len(f.results) {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeClient) DropCollection(ctx context.Context, collection string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = true
	return nil
}

func (f *fakeClient) GetCollectionStats(ctx context.Context, collection string) (int64, error) {
	return f.statsCount, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func newReadyIndex(t *testing.T, client *fakeClient, embedder *fakeEmbedder) *MilvusIndex {
	t.Helper()
	idx := newMilvusIndex(client, embedder, "documents", 3)
	require.NoError(t, idx.Ensure(context.Background()))
	return idx
}

func TestAddBeforeEnsure(t *testing.T) {
	idx := newMilvusIndex(&fakeClient{}, &fakeEmbedder{}, "documents", 3)

	_, err := idx.Add(context.Background(), []model.Segment{{Content: "x"}})
	assert.True(t, stderrors.Is(err, errors.ErrCollectionNotReady))

	_, err = idx.Search(context.Background(), "q", 4)
	assert.True(t, stderrors.Is(err, errors.ErrCollectionNotReady))
}

func TestAddGeneratesFreshIDs(t *testing.T) {
	client := &fakeClient{}
	idx := newReadyIndex(t, client, &fakeEmbedder{vector: []float32{1, 0, 0}})

	segments := []model.Segment{
		{Content: "first", Metadata: map[string]any{"source": "a.txt"}},
		{Content: "second", Metadata: map[string]any{"source": "a.txt"}},
	}

	ids, err := idx.Add(context.Background(), segments)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	require.Len(t, client.inserted, 2)
	assert.Equal(t, "first", client.inserted[0].Content)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal([]byte(client.inserted[0].Metadata), &metadata))
	assert.Equal(t, "a.txt", metadata["source"])
}

func TestAddEmptyBatch(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	idx := newReadyIndex(t, &fakeClient{}, embedder)

	ids, err := idx.Add(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, embedder.calls)
}

func TestAddEmbedFailureFailsWholeBatch(t *testing.T) {
	client := &fakeClient{}
	idx := newReadyIndex(t, client, &fakeEmbedder{err: stderrors.New("provider down")})

	_, err := idx.Add(context.Background(), []model.Segment{{Content: "x"}, {Content: "y"}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrProvider))
	assert.Empty(t, client.inserted)
}

func TestAddInsertFailure(t *testing.T) {
	client := &fakeClient{insertErr: stderrors.New("milvus down")}
	idx := newReadyIndex(t, client, &fakeEmbedder{vector: []float32{1}})

	_, err := idx.Add(context.Background(), []model.Segment{{Content: "x"}})
	assert.True(t, stderrors.Is(err, errors.ErrIndex))
}

func TestSearchNormalizesScores(t *testing.T) {
	client := &fakeClient{
		results: []milvus.SearchResult{
			{ID: "id-1", Score: 1.0, Content: "best match", Metadata: `{"source":"a.txt"}`},
			{ID: "id-2", Score: 0.0, Content: "middling", Metadata: `{"source":"b.txt"}`},
			{ID: "id-3", Score: -1.0, Content: "worst"},
		},
	}
	idx := newReadyIndex(t, client, &fakeEmbedder{vector: []float32{1, 0, 0}})

	matches, err := idx.Search(context.Background(), "query", 4)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
	assert.InDelta(t, 0.5, float64(matches[1].Score), 1e-6)
	assert.InDelta(t, 0.0, float64(matches[2].Score), 1e-6)

	assert.Equal(t, "a.txt", matches[0].Metadata["source"])
	assert.Nil(t, matches[2].Metadata)
}

func TestSearchEmptyCollection(t *testing.T) {
	idx := newReadyIndex(t, &fakeClient{}, &fakeEmbedder{vector: []float32{1}})

	matches, err := idx.Search(context.Background(), "query", 4)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchHonorsTopK(t *testing.T) {
	client := &fakeClient{
		results: []milvus.SearchResult{
			{ID: "1", Score: 0.9}, {ID: "2", Score: 0.8}, {ID: "3", Score: 0.7},
		},
	}
	idx := newReadyIndex(t, client, &fakeEmbedder{vector: []float32{1}})

	matches, err := idx.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestDropMakesIndexNotReady(t *testing.T) {
	client := &fakeClient{}
	idx := newReadyIndex(t, client, &fakeEmbedder{vector: []float32{1}})

	require.NoError(t, idx.Drop(context.Background()))
	assert.True(t, client.dropped)
	assert.False(t, idx.Ready())

	_, err := idx.Search(context.Background(), "q", 4)
	assert.True(t, stderrors.Is(err, errors.ErrCollectionNotReady))

	// Ensure restores readiness.
	require.NoError(t, idx.Ensure(context.Background()))
	assert.True(t, idx.Ready())
}

func TestStats(t *testing.T) {
	idx := newReadyIndex(t, &fakeClient{statsCount: 42}, &fakeEmbedder{vector: []float32{1}})

	stats, err := idx.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "documents", stats.CollectionName)
	assert.Equal(t, int64(42), stats.TotalDocuments)
	assert.Equal(t, 3, stats.Dimension)
}
