package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizeCosineSimilarity(1), 1e-9)
	assert.InDelta(t, 0.0, NormalizeCosineSimilarity(-1), 1e-9)
	assert.InDelta(t, 0.5, NormalizeCosineSimilarity(0), 1e-9)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "he", TruncateString("hello", 2))
	// Truncation counts runes, not bytes.
	assert.Equal(t, "héllo", TruncateString("héllo", 5))
	assert.Equal(t, "hé", TruncateString("héllo", 2))
}

func TestParseJSONArray(t *testing.T) {
	got, err := ParseJSONArray(`["a", "b", "c"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	// Arrays embedded in prose are extracted.
	got, err = ParseJSONArray(`Here are the claims:
["claim one", "claim two"]
Let me know if you need more.`)
	require.NoError(t, err)
	assert.Equal(t, []string{"claim one", "claim two"}, got)

	_, err = ParseJSONArray("no array here")
	assert.Error(t, err)

	_, err = ParseJSONArray(`[1, 2, 3]`)
	assert.Error(t, err)
}

func TestSplitByLines(t *testing.T) {
	input := `1. First claim about something
2. Second claim about something else
- third bulleted claim here
short

"a quoted claim about quoting"`

	got := SplitByLines(input, 5)
	assert.Equal(t, []string{
		"First claim about something",
		"Second claim about something else",
		"third bulleted claim here",
		"a quoted claim about quoting",
	}, got)
}
