// Package splitter splits document text into overlapping chunks along
// natural boundaries.
//
// Splitting is recursive: the text is first broken on paragraph breaks,
// then lines, sentence endings, clauses, words, and finally single
// characters, descending only when a piece still exceeds the chunk size.
// Sizes are measured in Unicode characters, not bytes.
package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/docqa/internal/model"
)

// defaultSeparators orders boundaries from coarse to fine.
var defaultSeparators = []string{
	"\n\n", // paragraph
	"\n",   // line
	". ",   // sentence
	"! ",   // sentence
	"? ",   // sentence
	"; ",   // clause
	", ",   // phrase
	" ",    // word
	"",     // character
}

// Splitter splits text into chunks of at most ChunkSize characters with
// ChunkOverlap characters carried between adjacent chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a splitter. The overlap must satisfy 0 <= overlap < size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}

	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}, nil
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// ChunkOverlap returns the configured chunk overlap.
func (s *Splitter) ChunkOverlap() int {
	return s.chunkOverlap
}

// Split splits text into chunks. Empty or whitespace-only input produces
// zero chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitRecursive(text, s.separators)
}

// SplitSegments splits each segment's content, producing one segment per
// chunk. Chunks inherit a copy of the parent metadata annotated with the
// chunk position.
func (s *Splitter) SplitSegments(segments []model.Segment) []model.Segment {
	var result []model.Segment

	for _, seg := range segments {
		chunks := s.Split(seg.Content)
		for i, chunk := range chunks {
			metadata := seg.CloneMetadata()
			metadata["chunk_index"] = i
			metadata["chunk_total"] = len(chunks)
			result = append(result, model.Segment{
				Content:  chunk,
				Metadata: metadata,
			})
		}
	}

	return result
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	finalChunks := make([]string, 0)

	separator := separators[len(separators)-1]
	var newSeparators []string

	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			newSeparators = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = splitByRunes(text, s.chunkSize)
	} else {
		splits = strings.Split(text, separator)
	}

	goodSplits := make([]string, 0)
	for _, split := range splits {
		if utf8.RuneCountInString(split) < s.chunkSize {
			goodSplits = append(goodSplits, split)
			continue
		}

		if len(goodSplits) > 0 {
			finalChunks = append(finalChunks, s.mergeSplits(goodSplits, separator)...)
			goodSplits = goodSplits[:0]
		}

		if len(newSeparators) == 0 {
			finalChunks = append(finalChunks, split)
		} else {
			finalChunks = append(finalChunks, s.splitRecursive(split, newSeparators)...)
		}
	}

	if len(goodSplits) > 0 {
		finalChunks = append(finalChunks, s.mergeSplits(goodSplits, separator)...)
	}

	return finalChunks
}

// mergeSplits packs consecutive splits into chunks up to the size limit,
// carrying trailing splits into the next chunk to provide the overlap.
func (s *Splitter) mergeSplits(splits []string, separator string) []string {
	separatorLen := utf8.RuneCountInString(separator)

	docs := make([]string, 0)
	currentDoc := make([]string, 0)
	total := 0

	for _, split := range splits {
		length := utf8.RuneCountInString(split)

		if total+length+(len(currentDoc)*separatorLen) > s.chunkSize {
			if len(currentDoc) > 0 {
				if doc := joinSplits(currentDoc, separator); doc != "" {
					docs = append(docs, doc)
				}

				for total > s.chunkOverlap || (total+length+(len(currentDoc)*separatorLen) > s.chunkSize && total > 0) {
					total -= utf8.RuneCountInString(currentDoc[0]) + separatorLen
					currentDoc = currentDoc[1:]
				}
			}
		}

		currentDoc = append(currentDoc, split)
		total += length + separatorLen
	}

	if len(currentDoc) > 0 {
		if doc := joinSplits(currentDoc, separator); doc != "" {
			docs = append(docs, doc)
		}
	}

	return docs
}

func joinSplits(splits []string, separator string) string {
	return strings.TrimSpace(strings.Join(splits, separator))
}

// splitByRunes hard-splits text into pieces of at most size characters.
// Last resort for text with no usable boundary.
func splitByRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
