// Package biz implements the document question answering pipeline:
// ingestion, retrieval, answer generation, and evaluation.
package biz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/loader"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/evaluator"
	"github.com/kart-io/docqa/internal/pkg/splitter"
	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm"
	qaopts "github.com/kart-io/docqa/pkg/options/qa"
)

// Service is the question answering pipeline.
type Service struct {
	index    store.VectorIndex
	chat     llm.ChatProvider
	embedder llm.EmbeddingProvider
	split    *splitter.Splitter
	cache    *QueryCache
	metrics  *metrics.Metrics
	opts     *qaopts.Options

	// The evaluator is built on first use; most queries never need it.
	evalOnce sync.Once
	eval     *evaluator.Evaluator
	evalErr  error
}

// NewService creates the question answering service.
func NewService(index store.VectorIndex, chat llm.ChatProvider, embedder llm.EmbeddingProvider, cache *QueryCache, opts *qaopts.Options) (*Service, error) {
	split, err := splitter.New(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, errors.ErrValidation.WithCause(err)
	}

	return &Service{
		index:    index,
		chat:     chat,
		embedder: embedder,
		split:    split,
		cache:    cache,
		metrics:  metrics.Get(),
		opts:     opts,
	}, nil
}

// Close releases resources held by the service. Closing before the
// first evaluation prevents the evaluator from ever being constructed;
// the read of s.eval below is synchronized by the same Once.
func (s *Service) Close() {
	s.evalOnce.Do(func() {
		s.evalErr = fmt.Errorf("service is closed")
	})
	if s.eval != nil {
		s.eval.Close()
	}
}

// evaluator returns the lazily constructed evaluator.
func (s *Service) evaluatorInstance() (*evaluator.Evaluator, error) {
	s.evalOnce.Do(func() {
		s.eval, s.evalErr = evaluator.New(s.chat, s.embedder, s.opts.EvalWorkers,
			evaluator.WithQuestionCount(s.opts.EvalQuestions))
	})
	return s.eval, s.evalErr
}

// IngestUpload chunks and indexes an uploaded document.
func (s *Service) IngestUpload(ctx context.Context, r io.Reader, filename string) (*model.UploadResult, error) {
	segments, err := loader.LoadUpload(r, filename)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, err
	}
	return s.ingest(ctx, segments, 1)
}

// IngestDir chunks and indexes every supported document in a directory.
func (s *Service) IngestDir(ctx context.Context, dir string) ([]string, *model.UploadResult, error) {
	segments, files, err := loader.LoadDir(dir)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, nil, err
	}
	result, err := s.ingest(ctx, segments, len(files))
	if err != nil {
		return nil, nil, err
	}
	return files, result, nil
}

func (s *Service) ingest(ctx context.Context, segments []model.Segment, documents int) (*model.UploadResult, error) {
	chunks := s.split.SplitSegments(segments)
	if len(chunks) == 0 {
		return &model.UploadResult{ChunksCreated: 0, DocumentIDs: []string{}}, nil
	}

	ids, err := s.index.Add(ctx, chunks)
	if err != nil {
		s.metrics.RecordIndexing(0, 0, err)
		return nil, err
	}

	s.metrics.RecordIndexing(documents, len(chunks), nil)
	logger.Infow("Documents ingested", "documents", documents, "chunks", len(chunks))

	return &model.UploadResult{
		ChunksCreated: len(chunks),
		DocumentIDs:   ids,
	}, nil
}

// Search retrieves the closest matches for a question without generating
// an answer. k <= 0 uses the configured default.
func (s *Service) Search(ctx context.Context, question string, k int) ([]model.Match, error) {
	question, err := s.validateQuestion(question)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.opts.TopK
	}

	start := time.Now()
	matches, err := s.index.Search(ctx, question, k)
	s.metrics.RecordRetrieval(time.Since(start), err)
	return matches, err
}

// Answer generates an answer without source attribution.
func (s *Service) Answer(ctx context.Context, question string) (*model.Answer, error) {
	answer, err := s.answerWithRetrieval(ctx, question, false)
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// AnswerWithSources generates an answer and returns the matches it was
// grounded on. Retrieval runs once; the same matches feed the prompt and
// the response.
func (s *Service) AnswerWithSources(ctx context.Context, question string) (*model.Answer, error) {
	return s.answerWithRetrieval(ctx, question, true)
}

func (s *Service) answerWithRetrieval(ctx context.Context, question string, withSources bool) (*model.Answer, error) {
	question, err := s.validateQuestion(question)
	if err != nil {
		return nil, err
	}

	if cached := s.cache.Get(ctx, question); cached != nil {
		s.metrics.RecordQuery(true, nil)
		cached.Question = question
		if !withSources {
			cached.Sources = nil
		}
		return cached, nil
	}

	start := time.Now()

	matches, err := s.retrieve(ctx, question)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	text, err := s.generate(ctx, question, matches)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, err
	}

	answer := &model.Answer{
		Question:  question,
		Answer:    text,
		QueryTime: time.Since(start).Seconds(),
	}
	if withSources {
		answer.Sources = matches
	}

	s.metrics.RecordQuery(false, nil)
	s.cache.Set(ctx, question, &model.Answer{
		Question:  question,
		Answer:    text,
		Sources:   matches,
		QueryTime: answer.QueryTime,
	})

	logger.Infow("Question answered",
		"question", textutil.TruncateString(question, 120),
		"matches", len(matches),
		"query_time", answer.QueryTime,
	)
	return answer, nil
}

// AnswerStream generates the answer as a stream of fragments. Retrieval
// and prompt construction happen before the first fragment; generation is
// lazy after that. Cancelling the context stops generation.
func (s *Service) AnswerStream(ctx context.Context, question string) (<-chan string, <-chan error, error) {
	question, err := s.validateQuestion(question)
	if err != nil {
		return nil, nil, err
	}

	matches, err := s.retrieve(ctx, question)
	if err != nil {
		s.metrics.RecordQuery(false, err)
		return nil, nil, err
	}

	prompt := s.buildPrompt(question, matches)

	start := time.Now()
	fragments, errs, err := s.chat.GenerateStream(ctx, prompt, "")
	if err != nil {
		s.metrics.RecordGeneration(time.Since(start), err)
		s.metrics.RecordQuery(false, err)
		return nil, nil, errors.ErrProvider.WithCause(err)
	}

	s.metrics.RecordQuery(false, nil)
	return fragments, errs, nil
}

// AnswerWithEvaluation generates an answer with sources and then scores
// it. Evaluation runs strictly after generation and cannot change or
// invalidate the answer; a failed evaluation yields scores carrying only
// an error.
func (s *Service) AnswerWithEvaluation(ctx context.Context, question string) (*model.Answer, error) {
	answer, err := s.AnswerWithSources(ctx, question)
	if err != nil {
		return nil, err
	}

	answer.Evaluation = s.evaluate(ctx, question, answer)
	return answer, nil
}

func (s *Service) evaluate(ctx context.Context, question string, answer *model.Answer) *model.EvaluationScores {
	eval, err := s.evaluatorInstance()
	if err != nil {
		s.metrics.RecordEvaluation(true)
		logger.Warnw("Evaluator unavailable", "error", err)
		return &model.EvaluationScores{Error: fmt.Sprintf("evaluator unavailable: %v", err)}
	}

	contexts := make([]string, len(answer.Sources))
	for i, m := range answer.Sources {
		contexts[i] = m.Content
	}

	scores := eval.Evaluate(ctx, question, answer.Answer, contexts)
	s.metrics.RecordEvaluation(scores.Error != "")
	return scores
}

func (s *Service) retrieve(ctx context.Context, question string) ([]model.Match, error) {
	start := time.Now()
	matches, err := s.index.Search(ctx, question, s.opts.TopK)
	s.metrics.RecordRetrieval(time.Since(start), err)
	return matches, err
}

func (s *Service) generate(ctx context.Context, question string, matches []model.Match) (string, error) {
	prompt := s.buildPrompt(question, matches)

	start := time.Now()
	text, err := s.chat.Generate(ctx, prompt, "")
	s.metrics.RecordGeneration(time.Since(start), err)
	if err != nil {
		return "", errors.ErrProvider.WithCause(err)
	}

	return strings.TrimSpace(text), nil
}

// buildPrompt renders the prompt template with the retrieved context.
// Each match is numbered and cites its source file.
func (s *Service) buildPrompt(question string, matches []model.Match) string {
	var sb strings.Builder
	if len(matches) == 0 {
		sb.WriteString("No relevant documents were found.")
	}
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		source := "unknown"
		if v, ok := m.Metadata["source"].(string); ok && v != "" {
			source = v
		}
		fmt.Fprintf(&sb, "[%d] From %s:\n%s", i+1, source, m.Content)
	}

	prompt := strings.ReplaceAll(s.opts.PromptTemplate, "{{context}}", sb.String())
	return strings.ReplaceAll(prompt, "{{question}}", question)
}

// validateQuestion trims and bounds-checks the question. No provider or
// index call happens for an invalid question.
func (s *Service) validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.ErrValidation.WithMessage("question must not be empty")
	}
	if s.opts.MaxQuestionLen > 0 && utf8.RuneCountInString(question) > s.opts.MaxQuestionLen {
		return "", errors.ErrValidation.WithMessagef("question exceeds %d characters", s.opts.MaxQuestionLen)
	}
	return question, nil
}

// Stats reports collection statistics.
func (s *Service) Stats(ctx context.Context) (*model.CollectionStats, error) {
	return s.index.Stats(ctx)
}

// DropCollection removes the indexed documents and clears the cache.
func (s *Service) DropCollection(ctx context.Context) error {
	if err := s.index.Drop(ctx); err != nil {
		return err
	}
	if err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("Failed to clear query cache after drop", "error", err)
	}
	return nil
}

// EnsureCollection creates the collection if needed.
func (s *Service) EnsureCollection(ctx context.Context) error {
	return s.index.Ensure(ctx)
}

// Ready reports whether the index is usable.
func (s *Service) Ready() bool {
	return s.index.Ready()
}
