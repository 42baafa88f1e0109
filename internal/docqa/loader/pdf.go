package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// PDFLoader extracts one segment per page. Pages that cannot be parsed or
// contain no text are skipped.
type PDFLoader struct{}

var _ Loader = (*PDFLoader)(nil)

// Extensions implements Loader.
func (l *PDFLoader) Extensions() []string {
	return []string{".pdf"}
}

// Load implements Loader.
func (l *PDFLoader) Load(path string, source string) ([]model.Segment, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to open pdf: %w", err))
	}
	defer f.Close()

	pageCount := reader.NumPage()
	segments := make([]model.Segment, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		segments = append(segments, model.Segment{
			Content: text,
			Metadata: map[string]any{
				"source":      source,
				"format":      "pdf",
				"page":        i,
				"total_pages": pageCount,
			},
		})
	}

	return segments, nil
}
