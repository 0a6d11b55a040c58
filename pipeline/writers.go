package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// Header is the fixed CSV column order.
var Header = []string{"title", "link", "old_price", "special_price", "after_special_price", "discount_price", "picture_image"}

// Row renders rec in Header order. Absent identity fields become empty cells.
func Row(rec *models.ProductRecord) []string {
	return []string{
		deref(rec.Title),
		deref(rec.Link),
		rec.OldPrice,
		rec.SpecialPrice,
		rec.AfterSpecialPrice,
		rec.DiscountPrice,
		deref(rec.PictureImage),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CSVWriter writes records to a UTF-8 CSV file that starts with a byte
// order mark. Rows end in CRLF; a field is quoted only when it contains a
// comma, a double quote or a line break, and its text is never altered.
type CSVWriter struct {
	file *os.File
	bom  io.WriteCloser
	buf  *bufio.Writer
}

// NewCSVWriter truncates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	bom := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	cw := &CSVWriter{
		file: f,
		bom:  bom,
		buf:  bufio.NewWriter(bom),
	}
	cw.writeRow(Header)
	if err := cw.buf.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []*models.ProductRecord) error {
	for _, rec := range records {
		if rec == nil {
			continue
		}
		cw.writeRow(Row(rec))
	}
	if err := cw.buf.Flush(); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

// writeRow buffers one row. bufio.Writer keeps the first error, so it is
// checked on Flush.
func (cw *CSVWriter) writeRow(fields []string) {
	for i, field := range fields {
		if i > 0 {
			cw.buf.WriteByte(',')
		}
		if !strings.ContainsAny(field, ",\"\r\n") {
			cw.buf.WriteString(field)
			continue
		}
		cw.buf.WriteByte('"')
		cw.buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		cw.buf.WriteByte('"')
	}
	cw.buf.WriteString("\r\n")
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	if err := cw.buf.Flush(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	if err := cw.bom.Close(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv encoder: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateFile(cw.file, "csv")
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.ProductRecord) error {
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := jw.encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate accepts an empty file: a crawl with no items yields no lines.
func (jw *JSONWriter) Validate() error {
	if _, err := jw.file.Stat(); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

func validateFile(f *os.File, kind string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
