package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

var errNoHeaders = errors.New("csv requires at least one header")

// CSVExporter writes an agenda as comma separated rows in header order.
type CSVExporter struct {
	// Escape prefixes cells that a spreadsheet would evaluate as a formula.
	Escape bool
}

// NewCSVExporter builds a CSV exporter with formula escaping on.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Escape: true}
}

// Render writes the header row followed by one record per row.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errNoHeaders
	}
	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = e.cell(row[header])
		}
		records = append(records, record)
	}

	var buf bytes.Buffer
	if err := csv.NewWriter(&buf).WriteAll(records); err != nil {
		return nil, fmt.Errorf("write agenda csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVExporter) cell(value string) string {
	if e.Escape && value != "" && strings.ContainsRune("=+-@", rune(value[0])) {
		return "'" + value
	}
	return value
}
