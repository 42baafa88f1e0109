// Package store provides the vector index over document segments.
package store

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm"
)

// VectorIndex stores embedded segments and retrieves the closest matches
// for a query.
type VectorIndex interface {
	// Ensure creates the backing collection if needed and marks the index
	// ready. Safe to call repeatedly.
	Ensure(ctx context.Context) error

	// Add embeds and stores segments. Either the whole batch is stored or
	// none of it. Returns the generated entry IDs.
	Add(ctx context.Context, segments []model.Segment) ([]string, error)

	// Search returns up to topK matches ordered by descending score.
	Search(ctx context.Context, query string, topK int) ([]model.Match, error)

	// Drop removes the collection. The index is not ready again until
	// Ensure is called.
	Drop(ctx context.Context) error

	// Stats reports the collection name, entry count, and dimension.
	Stats(ctx context.Context) (*model.CollectionStats, error)

	// Ready reports whether the collection is usable.
	Ready() bool
}

// vectorClient is the slice of the Milvus client the index uses.
type vectorClient interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Insert(ctx context.Context, collectionName string, entries []milvus.Entry) error
	Search(ctx context.Context, collectionName string, vector []float32, topK int) ([]milvus.SearchResult, error)
	DropCollection(ctx context.Context, collectionName string) error
	GetCollectionStats(ctx context.Context, collectionName string) (int64, error)
}

// MilvusIndex is the Milvus-backed VectorIndex.
type MilvusIndex struct {
	client     vectorClient
	embedder   llm.EmbeddingProvider
	collection string
	dimension  int
	ready      atomic.Bool
}

var _ VectorIndex = (*MilvusIndex)(nil)

// NewMilvusIndex creates a vector index on the given collection. The index
// is not ready until Ensure is called.
func NewMilvusIndex(client *milvus.Client, embedder llm.EmbeddingProvider, collection string, dimension int) *MilvusIndex {
	return newMilvusIndex(client, embedder, collection, dimension)
}

func newMilvusIndex(client vectorClient, embedder llm.EmbeddingProvider, collection string, dimension int) *MilvusIndex {
	return &MilvusIndex{
		client:     client,
		embedder:   embedder,
		collection: collection,
		dimension:  dimension,
	}
}

// Ensure implements VectorIndex.
func (m *MilvusIndex) Ensure(ctx context.Context) error {
	if err := m.client.EnsureCollection(ctx, m.collection, m.dimension); err != nil {
		return errors.ErrIndex.WithCause(err)
	}
	m.ready.Store(true)
	return nil
}

// Ready implements VectorIndex.
func (m *MilvusIndex) Ready() bool {
	return m.ready.Load()
}

// Add implements VectorIndex.
func (m *MilvusIndex) Add(ctx context.Context, segments []model.Segment) ([]string, error) {
	if !m.ready.Load() {
		return nil, errors.ErrCollectionNotReady
	}
	if len(segments) == 0 {
		return nil, nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}

	embeddings, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, errors.ErrProvider.WithCause(err)
	}

	entries := make([]milvus.Entry, len(segments))
	ids := make([]string, len(segments))
	for i, seg := range segments {
		metadata, err := json.Marshal(seg.Metadata)
		if err != nil {
			return nil, errors.ErrIndex.WithCause(err)
		}
		ids[i] = uuid.NewString()
		entries[i] = milvus.Entry{
			ID:        ids[i],
			Embedding: embeddings[i],
			Content:   seg.Content,
			Metadata:  string(metadata),
		}
	}

	if err := m.client.Insert(ctx, m.collection, entries); err != nil {
		return nil, errors.ErrIndex.WithCause(err)
	}

	logger.Infow("Segments indexed", "collection", m.collection, "count", len(entries))
	return ids, nil
}

// Search implements VectorIndex. Cosine scores are normalized to [0, 1].
func (m *MilvusIndex) Search(ctx context.Context, query string, topK int) ([]model.Match, error) {
	if !m.ready.Load() {
		return nil, errors.ErrCollectionNotReady
	}

	vector, err := m.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrProvider.WithCause(err)
	}

	results, err := m.client.Search(ctx, m.collection, vector, topK)
	if err != nil {
		return nil, errors.ErrIndex.WithCause(err)
	}

	matches := make([]model.Match, 0, len(results))
	for _, r := range results {
		var metadata map[string]any
		if r.Metadata != "" {
			if err := json.Unmarshal([]byte(r.Metadata), &metadata); err != nil {
				logger.Warnw("Failed to decode segment metadata", "id", r.ID, "error", err)
			}
		}
		matches = append(matches, model.Match{
			ID: r.ID,
			Segment: model.Segment{
				Content:  r.Content,
				Metadata: metadata,
			},
			Score: (r.Score + 1) / 2,
		})
	}

	return matches, nil
}

// Drop implements VectorIndex.
func (m *MilvusIndex) Drop(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.collection); err != nil {
		return errors.ErrIndex.WithCause(err)
	}
	m.ready.Store(false)
	logger.Infow("Collection dropped", "collection", m.collection)
	return nil
}

// Stats implements VectorIndex.
func (m *MilvusIndex) Stats(ctx context.Context) (*model.CollectionStats, error) {
	count, err := m.client.GetCollectionStats(ctx, m.collection)
	if err != nil {
		return nil, errors.ErrIndex.WithCause(err)
	}

	return &model.CollectionStats{
		CollectionName: m.collection,
		TotalDocuments: count,
		Dimension:      m.dimension,
	}, nil
}
