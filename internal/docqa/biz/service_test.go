package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
	qaopts "github.com/kart-io/docqa/pkg/options/qa"
)

type fakeIndex struct {
	ready       bool
	matches     []model.Match
	added       []model.Segment
	addErr      error
	searchErr   error
	dropErr     error
	searchCalls int
	dropped     bool
	stats       *model.CollectionStats
}

func (f *fakeIndex) Ensure(ctx context.Context) error {
	f.ready = true
	return nil
}

func (f *fakeIndex) Ready() bool { return f.ready }

func (f *fakeIndex) Add(ctx context.Context, segments []model.Segment) ([]string, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, segments...)
	ids := make([]string, len(segments))
	for i := range segments {
		ids[i] = "id-" + strings.Repeat("x", i+1)
	}
	return ids, nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, topK int) ([]model.Match, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) Drop(ctx context.Context) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = true
	f.ready = false
	return nil
}

func (f *fakeIndex) Stats(ctx context.Context) (*model.CollectionStats, error) {
	return f.stats, nil
}

type fakeProvider struct {
	answer        string
	generateErr   error
	streamErr     error
	fragments     []string
	generateCalls int
	lastPrompt    string
	vector        []float32
	embedErr      error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt, system string) (string, error) {
	f.generateCalls++
	f.lastPrompt = prompt
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.answer, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, prompt, system string) (<-chan string, <-chan error, error) {
	if f.streamErr != nil {
		return nil, nil, f.streamErr
	}
	f.lastPrompt = prompt
	fragments := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(fragments)
		defer close(errs)
		for _, frag := range f.fragments {
			select {
			case fragments <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return fragments, errs, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func parisMatches() []model.Match {
	return []model.Match{
		{
			ID:      "m1",
			Segment: model.Segment{Content: "Paris is the capital of France.", Metadata: map[string]any{"source": "france.txt"}},
			Score:   0.95,
		},
		{
			ID:      "m2",
			Segment: model.Segment{Content: "France is a country in Europe.", Metadata: map[string]any{"source": "france.txt"}},
			Score:   0.80,
		},
	}
}

func newTestService(t *testing.T, index *fakeIndex, provider *fakeProvider) *Service {
	t.Helper()
	svc, err := NewService(index, provider, provider, NewQueryCache(nil, nil), qaopts.NewOptions())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestAnswer(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{answer: "The capital of France is Paris.", vector: []float32{1}}
	svc := newTestService(t, index, provider)

	answer, err := svc.Answer(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "What is the capital of France?", answer.Question)
	assert.Equal(t, "The capital of France is Paris.", answer.Answer)
	assert.Nil(t, answer.Sources)
	assert.Nil(t, answer.Evaluation)
	assert.GreaterOrEqual(t, answer.QueryTime, 0.0)

	// The retrieved context and the question both reach the prompt.
	assert.Contains(t, provider.lastPrompt, "Paris is the capital of France.")
	assert.Contains(t, provider.lastPrompt, "From france.txt")
	assert.Contains(t, provider.lastPrompt, "What is the capital of France?")
}

func TestAnswerWithSources(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{answer: "Paris.", vector: []float32{1}}
	svc := newTestService(t, index, provider)

	answer, err := svc.AnswerWithSources(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "m1", answer.Sources[0].ID)
	// One retrieval serves both the prompt and the sources.
	assert.Equal(t, 1, index.searchCalls)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	index := &fakeIndex{ready: true}
	provider := &fakeProvider{vector: []float32{1}}
	svc := newTestService(t, index, provider)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Answer(context.Background(), q)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ErrValidation))
	}

	// Validation failures never touch the index or the provider.
	assert.Zero(t, index.searchCalls)
	assert.Zero(t, provider.generateCalls)
}

func TestAnswerQuestionTooLong(t *testing.T) {
	svc := newTestService(t, &fakeIndex{ready: true}, &fakeProvider{vector: []float32{1}})

	_, err := svc.Answer(context.Background(), strings.Repeat("x", 3000))
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestAnswerNoMatches(t *testing.T) {
	index := &fakeIndex{ready: true}
	provider := &fakeProvider{answer: "I could not find it in the indexed documents.", vector: []float32{1}}
	svc := newTestService(t, index, provider)

	answer, err := svc.Answer(context.Background(), "What is the airspeed of an unladen swallow?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Answer)
	assert.Contains(t, provider.lastPrompt, "No relevant documents were found.")
}

func TestAnswerRetrievalFailure(t *testing.T) {
	index := &fakeIndex{ready: true, searchErr: errors.ErrCollectionNotReady}
	provider := &fakeProvider{vector: []float32{1}}
	svc := newTestService(t, index, provider)

	_, err := svc.Answer(context.Background(), "question?")
	assert.True(t, stderrors.Is(err, errors.ErrCollectionNotReady))
	assert.Zero(t, provider.generateCalls)
}

func TestAnswerGenerationFailure(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{generateErr: stderrors.New("model offline"), vector: []float32{1}}
	svc := newTestService(t, index, provider)

	_, err := svc.Answer(context.Background(), "question?")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrProvider))
}

func TestAnswerStream(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{fragments: []string{"Paris ", "is ", "the answer."}, vector: []float32{1}}
	svc := newTestService(t, index, provider)

	fragments, errs, err := svc.AnswerStream(context.Background(), "What is the capital?")
	require.NoError(t, err)

	var got []string
	for frag := range fragments {
		got = append(got, frag)
	}
	assert.Equal(t, []string{"Paris ", "is ", "the answer."}, got)
	assert.NoError(t, <-errs)
}

func TestAnswerStreamValidation(t *testing.T) {
	svc := newTestService(t, &fakeIndex{ready: true}, &fakeProvider{vector: []float32{1}})

	_, _, err := svc.AnswerStream(context.Background(), "  ")
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestAnswerWithEvaluation(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{answer: `["Paris is the capital of France."]`, vector: []float32{1, 0}}
	svc := newTestService(t, index, provider)

	answer, err := svc.AnswerWithEvaluation(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	require.NotNil(t, answer.Evaluation)
	assert.GreaterOrEqual(t, answer.Evaluation.EvaluationTime, 0.0)
}

func TestAnswerWithEvaluationFailureKeepsAnswer(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	// Generation succeeds for the answer; the embedder breaks during
	// evaluation.
	provider := &fakeProvider{answer: "Paris.", vector: []float32{1}, embedErr: stderrors.New("embed down")}
	svc := newTestService(t, index, provider)

	answer, err := svc.AnswerWithEvaluation(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", answer.Answer)
	require.NotNil(t, answer.Evaluation)
	assert.Nil(t, answer.Evaluation.AnswerRelevancy)
	assert.NotEmpty(t, answer.Evaluation.Error)
}

func TestCloseBeforeEvaluationKeepsAnswer(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	provider := &fakeProvider{answer: "Paris.", vector: []float32{1}}
	svc, err := NewService(index, provider, provider, NewQueryCache(nil, nil), qaopts.NewOptions())
	require.NoError(t, err)

	// Closing first pins the evaluator to "never constructed"; a later
	// evaluation request must still answer, with only an error in the
	// scores.
	svc.Close()

	answer, err := svc.AnswerWithEvaluation(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Answer)
	require.NotNil(t, answer.Evaluation)
	assert.Nil(t, answer.Evaluation.Faithfulness)
	assert.Nil(t, answer.Evaluation.AnswerRelevancy)
	assert.NotEmpty(t, answer.Evaluation.Error)

	// A second Close stays safe.
	svc.Close()
}

func TestSearch(t *testing.T) {
	index := &fakeIndex{ready: true, matches: parisMatches()}
	svc := newTestService(t, index, &fakeProvider{vector: []float32{1}})

	matches, err := svc.Search(context.Background(), "capital of France", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// k <= 0 falls back to the configured default.
	matches, err = svc.Search(context.Background(), "capital of France", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestIngestUpload(t *testing.T) {
	index := &fakeIndex{ready: true}
	svc := newTestService(t, index, &fakeProvider{vector: []float32{1}})

	result, err := svc.IngestUpload(context.Background(), strings.NewReader("Paris is the capital of France."), "france.txt")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChunksCreated)
	assert.Len(t, result.DocumentIDs, 1)
	require.Len(t, index.added, 1)
	assert.Equal(t, "france.txt", index.added[0].Metadata["source"])
}

func TestIngestUploadEmptyDocument(t *testing.T) {
	index := &fakeIndex{ready: true}
	svc := newTestService(t, index, &fakeProvider{vector: []float32{1}})

	result, err := svc.IngestUpload(context.Background(), strings.NewReader("   "), "empty.txt")
	require.NoError(t, err)
	assert.Zero(t, result.ChunksCreated)
	assert.Empty(t, index.added)
}

func TestIngestUploadUnsupported(t *testing.T) {
	svc := newTestService(t, &fakeIndex{ready: true}, &fakeProvider{vector: []float32{1}})

	_, err := svc.IngestUpload(context.Background(), strings.NewReader("x"), "data.bin")
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedFormat))
}

func TestDropCollection(t *testing.T) {
	index := &fakeIndex{ready: true}
	svc := newTestService(t, index, &fakeProvider{vector: []float32{1}})

	require.NoError(t, svc.DropCollection(context.Background()))
	assert.True(t, index.dropped)
	assert.False(t, svc.Ready())
}

func TestStats(t *testing.T) {
	index := &fakeIndex{ready: true, stats: &model.CollectionStats{CollectionName: "documents", TotalDocuments: 7, Dimension: 768}}
	svc := newTestService(t, index, &fakeProvider{vector: []float32{1}})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.TotalDocuments)
}
