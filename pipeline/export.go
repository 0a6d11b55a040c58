// Package pipeline serialises crawl results to disk.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.ProductRecord) error
	Close() error
	Validate() error
}

// NewWriter opens the writer for format. Dual output puts the JSONL file
// next to filename.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "dual":
		return NewDualWriter(filename, JSONCompanion(filename))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// JSONCompanion derives the JSONL path written alongside a CSV file.
func JSONCompanion(filename string) string {
	return strings.TrimSuffix(filename, ".csv") + ".jsonl"
}

// Export overwrites filename with records, in accumulation order.
func Export(format, filename string, records []*models.ProductRecord) (err error) {
	writer, err := NewWriter(format, filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close writer: %w", closeErr))
		}
	}()

	if err := writer.Write(records); err != nil {
		return err
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}
	return nil
}
