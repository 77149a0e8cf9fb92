package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content. Title and Notes describe the
// table; the PDF exporter always prints them, the CSV exporter only when
// asked to.
type Dataset struct {
	Title   string
	Notes   []string
	Headers []string
	Rows    []map[string]string
}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithDelimiter switches the field separator, e.g. ';' for spreadsheet
// locales that use the comma as decimal mark.
func WithDelimiter(r rune) CSVOption {
	return func(e *CSVExporter) { e.delimiter = r }
}

// WithPreamble writes the title and notes as single-cell rows, followed by an
// empty row, before the header.
func WithPreamble() CSVOption {
	return func(e *CSVExporter) { e.preamble = true }
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	delimiter rune
	preamble  bool
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{delimiter: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render produces UTF-8 CSV bytes prefixed with a byte order mark so that
// spreadsheet tools detect Arabic text correctly.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	buf.WriteString("\ufeff")
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter

	if e.preamble {
		var lines []string
		if data.Title != "" {
			lines = append(lines, data.Title)
		}
		lines = append(lines, data.Notes...)
		for _, line := range lines {
			if err := writer.Write([]string{line}); err != nil {
				return nil, fmt.Errorf("write csv preamble: %w", err)
			}
		}
		if len(lines) > 0 {
			writer.Flush()
			buf.WriteString("\n")
		}
	}

	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
