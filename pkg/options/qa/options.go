// Package qa provides question answering pipeline configuration options.
package qa

import (
	"fmt"

	"github.com/kart-io/docqa/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// DefaultPromptTemplate is the default prompt for answer generation.
// The model is instructed to stay inside the retrieved context.
const DefaultPromptTemplate = `You are a helpful assistant that answers questions based on the provided context.
Use only the following context to answer the question. If the context does not
contain the answer, say that you could not find it in the indexed documents.

Context:
{{context}}

Question: {{question}}

Answer:`

// Options contains question answering pipeline configuration.
type Options struct {
	// ChunkSize is the chunk size in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of matches retrieved for a question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// PromptTemplate is the generation prompt with {{context}} and
	// {{question}} placeholders.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`

	// MaxQuestionLen is the maximum accepted question length in runes.
	MaxQuestionLen int `json:"max-question-len" mapstructure:"max-question-len"`

	// EvalWorkers is the size of the evaluation worker pool.
	EvalWorkers int `json:"eval-workers" mapstructure:"eval-workers"`

	// EvalQuestions is how many questions the relevancy metric generates
	// from an answer.
	EvalQuestions int `json:"eval-questions" mapstructure:"eval-questions"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:      512,
		ChunkOverlap:   50,
		TopK:           4,
		Collection:     "documents",
		EmbeddingDim:   768, // nomic-embed-text dimension
		PromptTemplate: DefaultPromptTemplate,
		MaxQuestionLen: 2048,
		EvalWorkers:    4,
		EvalQuestions:  3,
	}
}

// AddFlags adds flags for QA options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"qa.chunk-size", o.ChunkSize, "Chunk size in runes.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"qa.chunk-overlap", o.ChunkOverlap, "Overlap between chunks in runes.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"qa.top-k", o.TopK, "Number of matches retrieved per question.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"qa.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"qa.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.MaxQuestionLen, options.Join(prefixes...)+"qa.max-question-len", o.MaxQuestionLen, "Maximum question length in runes.")
	fs.IntVar(&o.EvalWorkers, options.Join(prefixes...)+"qa.eval-workers", o.EvalWorkers, "Evaluation worker pool size.")
	fs.IntVar(&o.EvalQuestions, options.Join(prefixes...)+"qa.eval-questions", o.EvalQuestions, "Questions generated per relevancy evaluation.")
}

// Validate validates the QA options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("qa.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("qa.chunk-overlap must satisfy 0 <= overlap < chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("qa.top-k must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("qa.collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("qa.embedding-dim must be positive"))
	}
	if o.EvalWorkers <= 0 {
		errs = append(errs, fmt.Errorf("qa.eval-workers must be positive"))
	}
	return errs
}

// Complete completes the QA options with defaults.
func (o *Options) Complete() error {
	if o.PromptTemplate == "" {
		o.PromptTemplate = DefaultPromptTemplate
	}
	if o.EvalQuestions <= 0 {
		o.EvalQuestions = 3
	}
	return nil
}
