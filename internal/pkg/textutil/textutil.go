// Package textutil provides text processing helpers for retrieval and
// evaluation.
package textutil

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity computes the cosine similarity of two vectors.
// The result is in [-1, 1]; mismatched or empty vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity maps a cosine similarity to [0, 1].
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}

// TruncateString truncates a string to at most maxLen Unicode characters.
// Long questions pass through here before they reach the logs.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var jsonArrayRegex = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseJSONArray extracts and parses the first JSON array found in the text.
// Model output often wraps the array in prose, so everything around it is
// ignored.
func ParseJSONArray(s string) ([]string, error) {
	match := jsonArrayRegex.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found")
	}

	var result []string
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return nil, err
	}
	return result, nil
}

var listMarkerRegex = regexp.MustCompile(`^[\d\.\-\*\)]+\s*`)

// SplitByLines splits text into lines, stripping list markers and quotes.
// Only lines longer than minLen are kept. Used as a fallback when a model
// ignores the JSON array instruction.
func SplitByLines(s string, minLen int) []string {
	if minLen <= 0 {
		minLen = 5
	}

	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = listMarkerRegex.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		if line != "" && len(line) > minLen {
			result = append(result, line)
		}
	}
	return result
}
