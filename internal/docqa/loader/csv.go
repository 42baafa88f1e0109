package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/errors"
)

// CSVLoader extracts one segment per data row. The header row supplies
// column names, and each row is rendered as "column: value" lines so the
// embedding carries the column semantics.
type CSVLoader struct{}

var _ Loader = (*CSVLoader)(nil)

// Extensions implements Loader.
func (l *CSVLoader) Extensions() []string {
	return []string{".csv"}
}

// Load implements Loader.
func (l *CSVLoader) Load(path string, source string) ([]model.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to open csv: %w", err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to read csv header: %w", err))
	}

	var segments []model.Segment
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ErrLoadFailed.WithCause(fmt.Errorf("failed to read csv row: %w", err))
		}
		row++

		var sb strings.Builder
		for i, value := range record {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(strings.TrimSpace(value))
		}

		content := strings.TrimSpace(sb.String())
		if content == "" {
			continue
		}

		segments = append(segments, model.Segment{
			Content: content,
			Metadata: map[string]any{
				"source": source,
				"format": "csv",
				"row":    row,
			},
		})
	}

	return segments, nil
}
