// Package importer reads inventory spreadsheets into normalized records.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmpty           = errors.New("inventory file has no data rows")
	ErrUnsupportedType = errors.New("unsupported inventory file type")
)

// Row maps a normalized column header to its raw cell text.
type Row map[string]string

// Table is a parsed sheet.
type Table struct {
	Columns []string
	Rows    []Row
}

// Parse dispatches on the file extension.
func Parse(filename string, r io.Reader) (Table, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read inventory csv: %w", err)
	}
	return fromRecords(records)
}

// ParseXLSX reads the first worksheet of an xlsx workbook.
func ParseXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open inventory workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmpty
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, ErrEmpty
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = HeaderKey(h)
	}
	t := Table{Columns: header}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, key := range header {
			if key == "" || i >= len(rec) {
				continue
			}
			if _, dup := row[key]; dup {
				continue
			}
			row[key] = strings.TrimSpace(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return Table{}, ErrEmpty
	}
	return t, nil
}

var unitSuffix = regexp.MustCompile(`\s*\([^)]*\)`)

// HeaderKey normalizes a column header: unit suffixes such as "(ft)" are
// dropped, the rest is lower-cased with spaces and dashes as underscores.
func HeaderKey(h string) string {
	h = unitSuffix.ReplaceAllString(h, "")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Join(strings.Fields(h), "_")
	return strings.ReplaceAll(h, "-", "_")
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
