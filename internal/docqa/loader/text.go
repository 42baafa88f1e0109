package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// TextLoader reads the whole file as a single segment. The chunker handles
// the actual splitting.
type TextLoader struct{}

var _ Loader = (*TextLoader)(nil)

// Extensions implements Loader.
func (l *TextLoader) Extensions() []string {
	return []string{".txt", ".md"}
}

// Load implements Loader.
func (l *TextLoader) Load(path string, source string) ([]model.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to read file: %w", err))
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}

	return []model.Segment{{
		Content: content,
		Metadata: map[string]any{
			"source": source,
			"format": "text",
		},
	}}, nil
}
