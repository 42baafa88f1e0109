// Package evaluator scores generated answers against their retrieved
// context, following the Ragas approach.
//
// Two metrics are produced:
//   - Faithfulness: the fraction of claims in the answer supported by the
//     retrieved context.
//   - Answer relevancy: semantic similarity between the original question
//     and questions regenerated from the answer.
//
// Evaluation is advisory. Evaluate never returns an error and never
// panics; failures are reported inside the returned scores with the failed
// metrics left absent.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/llm"
)

const (
	defaultQuestionCount = 3
	defaultWorkers       = 4
)

// Evaluator scores answers for faithfulness and relevancy.
type Evaluator struct {
	chatProvider  llm.ChatProvider
	embedProvider llm.EmbeddingProvider
	workers       *pool.Pool
	questionCount int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithQuestionCount sets how many questions are regenerated from the answer
// for the relevancy metric.
func WithQuestionCount(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.questionCount = n
		}
	}
}

// New creates an evaluator. Claim verification runs on a bounded worker
// pool of the given size; workers <= 0 uses the default.
func New(chatProvider llm.ChatProvider, embedProvider llm.EmbeddingProvider, workers int, opts ...Option) (*Evaluator, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	p, err := pool.New("evaluator", &pool.Config{
		Capacity:       workers,
		ExpiryDuration: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator pool: %w", err)
	}

	e := &Evaluator{
		chatProvider:  chatProvider,
		embedProvider: embedProvider,
		workers:       p,
		questionCount: defaultQuestionCount,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the worker pool.
func (e *Evaluator) Close() {
	e.workers.Release()
}

// Evaluate scores the answer. Both metrics are attempted; a metric that
// fails stays nil and its error is recorded in the result. An absent score
// is not a zero score.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, contexts []string) (scores *model.EvaluationScores) {
	start := time.Now()
	scores = &model.EvaluationScores{}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("Evaluation panic recovered", "panic", fmt.Sprintf("%v", r))
			scores.Faithfulness = nil
			scores.AnswerRelevancy = nil
			scores.Error = fmt.Sprintf("evaluation panic: %v", r)
		}
		scores.EvaluationTime = time.Since(start).Seconds()
	}()

	var errs []string

	faithfulness, err := e.evaluateFaithfulness(ctx, answer, contexts)
	if err != nil {
		logger.Warnw("Faithfulness evaluation failed", "error", err)
		errs = append(errs, fmt.Sprintf("faithfulness: %v", err))
	} else {
		scores.Faithfulness = &faithfulness
	}

	relevancy, err := e.evaluateAnswerRelevancy(ctx, answer, question)
	if err != nil {
		logger.Warnw("Answer relevancy evaluation failed", "error", err)
		errs = append(errs, fmt.Sprintf("answer relevancy: %v", err))
	} else {
		scores.AnswerRelevancy = &relevancy
	}

	if len(errs) > 0 {
		scores.Error = strings.Join(errs, "; ")
	}

	return scores
}

// evaluateFaithfulness extracts claims from the answer and checks each one
// against the combined retrieved context. An answer with no extractable
// claims is trivially faithful.
func (e *Evaluator) evaluateFaithfulness(ctx context.Context, answer string, contexts []string) (float64, error) {
	if answer == "" || len(contexts) == 0 {
		return 0, fmt.Errorf("empty answer or contexts")
	}

	claims, err := e.extractClaims(ctx, answer)
	if err != nil {
		return 0, fmt.Errorf("failed to extract claims: %w", err)
	}

	if len(claims) == 0 {
		return 1.0, nil
	}

	combinedContext := strings.Join(contexts, "\n\n")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		supported int
	)

	for _, claim := range claims {
		claim := claim
		wg.Add(1)
		verify := func() {
			defer wg.Done()
			ok, err := e.verifyClaim(ctx, claim, combinedContext)
			if err != nil {
				logger.Warnw("Claim verification failed", "error", err)
				return
			}
			if ok {
				mu.Lock()
				supported++
				mu.Unlock()
			}
		}
		// Run inline when the pool cannot take the task.
		if err := e.workers.Submit(verify); err != nil {
			verify()
		}
	}
	wg.Wait()

	return float64(supported) / float64(len(claims)), nil
}

// evaluateAnswerRelevancy regenerates questions from the answer and compares
// them to the original question in embedding space.
func (e *Evaluator) evaluateAnswerRelevancy(ctx context.Context, answer, question string) (float64, error) {
	if answer == "" || question == "" {
		return 0, fmt.Errorf("empty answer or question")
	}

	generated, err := e.generateQuestions(ctx, answer, e.questionCount)
	if err != nil {
		return 0, fmt.Errorf("failed to generate questions: %w", err)
	}
	if len(generated) == 0 {
		return 0, fmt.Errorf("no questions generated")
	}

	questionEmbed, err := e.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return 0, fmt.Errorf("failed to embed question: %w", err)
	}

	genEmbeds, err := e.embedProvider.Embed(ctx, generated)
	if err != nil {
		return 0, fmt.Errorf("failed to embed generated questions: %w", err)
	}

	var total float64
	for _, genEmbed := range genEmbeds {
		total += textutil.CosineSimilarity(questionEmbed, genEmbed)
	}

	return textutil.NormalizeCosineSimilarity(total / float64(len(genEmbeds))), nil
}

func (e *Evaluator) extractClaims(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(`Extract all factual claims from the following text. Each claim must be a standalone, verifiable statement.

Text:
%s

Return the claims as a JSON array of strings, for example:
["claim 1", "claim 2", "claim 3"]

Return only the JSON array, nothing else.`, text)

	response, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	claims, err := textutil.ParseJSONArray(response)
	if err != nil {
		// Fall back to line splitting when the model ignores the format.
		claims = textutil.SplitByLines(response, 5)
	}

	return claims, nil
}

func (e *Evaluator) verifyClaim(ctx context.Context, claim, context string) (bool, error) {
	prompt := fmt.Sprintf(`Determine whether the following claim is supported by, or can be inferred from, the given context.

Claim: %s

Context:
%s

Answer only "yes" or "no".`, claim, context)

	response, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return false, err
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return strings.Contains(response, "yes") || strings.Contains(response, "true"), nil
}

func (e *Evaluator) generateQuestions(ctx context.Context, answer string, count int) ([]string, error) {
	prompt := fmt.Sprintf(`Given the following answer, generate %d questions that could have led to this answer.

Answer:
%s

Return the questions as a JSON array of strings, for example:
["question 1?", "question 2?", "question 3?"]

Return only the JSON array, nothing else.`, count, answer)

	response, err := e.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	questions, err := textutil.ParseJSONArray(response)
	if err != nil {
		questions = textutil.SplitByLines(response, 5)
	}

	return questions, nil
}
