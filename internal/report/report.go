// Package report renders allocation results as CSV, HTML, XLSX and text.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"stowplan/internal/allocation"
)

type Kind string

const (
	KindCSV  Kind = "CSV"
	KindHTML Kind = "HTML"
	KindText Kind = "TEXT"
	KindXLSX Kind = "XLSX"
)

// ParseKind accepts a kind name or file extension in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "CSV":
		return KindCSV, nil
	case "HTML", "HTM":
		return KindHTML, nil
	case "TEXT", "TXT":
		return KindText, nil
	case "XLSX", "EXCEL":
		return KindXLSX, nil
	}
	return "", fmt.Errorf("unknown report type %q (want CSV, HTML, TEXT or XLSX)", s)
}

func (k Kind) Extension() string {
	if k == KindText {
		return "txt"
	}
	return strings.ToLower(string(k))
}

func (k Kind) ContentType() string {
	switch k {
	case KindCSV:
		return "text/csv; charset=utf-8"
	case KindHTML:
		return "text/html; charset=utf-8"
	case KindXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Meta describes the run a report is about.
type Meta struct {
	Title         string
	WarehouseName string
	UploadName    string
	BSF           float64
	GeneratedAt   time.Time
}

// Render writes res in the given format.
func Render(w io.Writer, kind Kind, meta Meta, res allocation.Result) error {
	switch kind {
	case KindCSV:
		return CSV(w, res)
	case KindHTML:
		return HTML(w, meta, res)
	case KindText:
		return Table(w, meta, res)
	case KindXLSX:
		return XLSX(w, meta, res)
	}
	return fmt.Errorf("unknown report type %q", kind)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName builds a filesystem-safe report name such as
// "Sample_Allocation_CSV_20250102_150405.csv".
func FileName(title string, kind Kind, at time.Time) string {
	base := strings.Trim(unsafeName.ReplaceAllString(title, "_"), "_")
	if base == "" {
		base = "Allocation"
	}
	return fmt.Sprintf("%s_%s_%s.%s", base, kind, at.UTC().Format("20060102_150405"), kind.Extension())
}

// Export renders res and uploads it under destURL, which may be any afs URL
// (file://, mem://, ...). It returns the written location.
func Export(ctx context.Context, fs afs.Service, destURL string, kind Kind, meta Meta, res allocation.Result) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, kind, meta, res); err != nil {
		return "", err
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	location := url.Join(destURL, FileName(meta.Title, kind, meta.GeneratedAt))
	if err := fs.Upload(ctx, location, file.DefaultFileOsMode, &buf); err != nil {
		return "", fmt.Errorf("upload report to %s: %w", location, err)
	}
	return location, nil
}
