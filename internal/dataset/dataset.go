// Package dataset loads the bundled drug–excipient compound sheet into immutable records.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Column headers of the source spreadsheet.
const (
	ColumnDrugName      = "DRUG NAME"
	ColumnStructureCode = "SMILE CODE (drug)"
	ColumnExcipientName = "EXCIPIENT NAME"
)

//go:embed data/compounds.json
var embedded []byte

// Record is one compound row. IDs are assigned at load time in source order, starting at 1.
type Record struct {
	ID            int    `json:"id"`
	DrugName      string `json:"drugName"`
	StructureCode string `json:"structureCode"`
	ExcipientName string `json:"excipientName"`
}

// DataLoadError is fatal: no partial dataset is ever returned alongside it.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// Load normalizes header-keyed rows. Missing fields become "" and every field is trimmed.
func Load(rows []map[string]any) ([]Record, error) {
	if rows == nil {
		return nil, &DataLoadError{Source: "rows", Err: errors.New("dataset is absent")}
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			return nil, &DataLoadError{Source: "rows", Err: fmt.Errorf("row %d is not an object", i+1)}
		}
		records = append(records, Record{
			ID:            i + 1,
			DrugName:      field(row, ColumnDrugName),
			StructureCode: field(row, ColumnStructureCode),
			ExcipientName: field(row, ColumnExcipientName),
		})
	}
	return records, nil
}

// LoadJSON reads a JSON array of header-keyed objects. The array must be the whole document.
func LoadJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, &DataLoadError{Source: "json", Err: err}
	}
	if rows == nil {
		return nil, &DataLoadError{Source: "json", Err: errors.New("document is null")}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DataLoadError{Source: "json", Err: errors.New("trailing data after array")}
	}
	return Load(rows)
}

// LoadCSV reads a CSV export of the same sheet. Columns are matched by header name,
// ignoring case and surrounding whitespace.
func LoadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	lines, err := reader.ReadAll()
	if err != nil {
		return nil, &DataLoadError{Source: "csv", Err: err}
	}
	if len(lines) == 0 {
		return nil, &DataLoadError{Source: "csv", Err: errors.New("empty file")}
	}

	header := make([]string, len(lines[0]))
	known := 0
	for i, cell := range lines[0] {
		header[i] = canonicalHeader(cell)
		if header[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, &DataLoadError{Source: "csv", Err: errors.New("no known columns in header")}
	}

	rows := make([]map[string]any, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := make(map[string]any, len(header))
		for i, cell := range line {
			if i < len(header) && header[i] != "" {
				row[header[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return Load(rows)
}

// LoadFile dispatches on the file extension.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataLoadError{Source: filepath.Base(path), Err: err}
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return LoadJSON(bytes.NewReader(data))
	case ".csv":
		return LoadCSV(bytes.NewReader(data))
	default:
		return nil, &DataLoadError{Source: filepath.Base(path), Err: fmt.Errorf("unsupported extension %q", ext)}
	}
}

// Open loads the file at path, or the bundled dataset when path is empty.
func Open(path string) ([]Record, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Default returns the dataset bundled into the binary.
func Default() ([]Record, error) {
	return LoadJSON(bytes.NewReader(embedded))
}

func field(row map[string]any, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func canonicalHeader(cell string) string {
	cell = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
	for _, col := range []string{ColumnDrugName, ColumnStructureCode, ColumnExcipientName} {
		if strings.EqualFold(cell, col) {
			return col
		}
	}
	return ""
}
