// Package model provides shared data models for the docqa service.
package model

// Segment is a unit of document text with free-form metadata.
// The loader produces segments, the splitter cuts them into chunks,
// and the vector index stores one entry per chunk.
type Segment struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CloneMetadata returns a shallow copy of the segment metadata.
// Chunks derived from a segment must not share the same map.
func (s Segment) CloneMetadata() map[string]any {
	if s.Metadata == nil {
		return nil
	}
	md := make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		md[k] = v
	}
	return md
}

// Match is a retrieved segment with its similarity score in [0, 1].
type Match struct {
	ID string `json:"id"`
	Segment
	Score float32 `json:"score"`
}

// EvaluationScores holds answer quality metrics. A nil metric means the
// metric was not computed, which is different from a zero score. Error is
// set when evaluation itself failed; in that case both metrics are nil.
type EvaluationScores struct {
	Faithfulness    *float64 `json:"faithfulness,omitempty"`
	AnswerRelevancy *float64 `json:"answer_relevancy,omitempty"`
	EvaluationTime  float64  `json:"evaluation_time,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Answer is the result of the question answering pipeline. Question
// carries the (trimmed) question the answer responds to.
type Answer struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Sources    []Match           `json:"sources,omitempty"`
	QueryTime  float64           `json:"query_time"`
	Evaluation *EvaluationScores `json:"evaluation,omitempty"`
}

// CollectionStats describes the state of the vector collection.
type CollectionStats struct {
	CollectionName string `json:"collection_name"`
	TotalDocuments int64  `json:"total_documents"`
	Dimension      int    `json:"dimension"`
}

// UploadResult is returned after ingesting an uploaded document.
type UploadResult struct {
	ChunksCreated int      `json:"chunks_created"`
	DocumentIDs   []string `json:"document_ids"`
}
