package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// Aliases maps normalized header names to canonical column names. Headers not
	// listed are kept under their normalized name.
	Aliases map[string]string

	// Required lists canonical columns that must appear in the header.
	Required []string

	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool
}

// Row is one CSV record addressed by canonical column name.
type Row struct {
	Line   int
	fields map[string]string
}

// Get returns the trimmed value of column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.fields[column])
}

// Empty reports whether every field of the row is blank.
func (r Row) Empty() bool {
	for _, v := range r.fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeader lowercases and trims a header cell and strips a UTF-8 BOM.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// ProcessFile opens filename and runs ProcessCSV over it.
func ProcessFile[T any](filename string, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	csvFile, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	if fi, err := csvFile.Stat(); err != nil || fi.Size() == 0 {
		return nil, fmt.Errorf("CSV file is empty or cannot be read")
	}

	return ProcessCSV(csvFile, parser, opts)
}

// ProcessCSV reads CSV from r, maps columns by header and parses each row into T.
// Blank rows are skipped.
func ProcessCSV[T any](r io.Reader, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV has no header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if canonical, ok := opts.Aliases[name]; ok {
			name = canonical
		}
		columns[i] = name
		present[name] = true
	}
	for _, req := range opts.Required {
		if !present[req] {
			return nil, fmt.Errorf("CSV is missing required column %q", req)
		}
	}

	var items []T
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn("Error reading record", "error", err)
			continue
		}
		line, _ := reader.FieldPos(0)

		row := Row{Line: line, fields: make(map[string]string, len(columns))}
		for i, value := range record {
			if i < len(columns) && columns[i] != "" {
				row.fields[columns[i]] = value
			}
		}
		if row.Empty() {
			continue
		}

		item, err := parser(row)
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("invalid record on line %d: %w", line, err)
		}

		items = append(items, item)
	}

	return items, nil
}
