package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"stowplan/internal/allocation"
	"stowplan/internal/domain"
	"stowplan/internal/events"
	"stowplan/internal/importer"
	"stowplan/internal/logging"
	"stowplan/internal/observability"
)

type ImportOptions struct {
	Filename string
	Reader   io.Reader
	// Name defaults to the file name without extension.
	Name  string
	Site  string
	Site2 string
	// BSF defaults to the configured allocation.default_bsf.
	BSF *float64
}

// UploadOptions creates an upload from rows that are already tabular. Keys
// are column headers and may use any accepted alias.
type UploadOptions struct {
	Name  string
	Site  string
	Site2 string
	BSF   *float64
	Rows  []map[string]string
}

// ImportResult is a stored upload plus the rows that needed attention.
type ImportResult struct {
	Upload    domain.Upload       `json:"upload"`
	Stats     importer.Stats      `json:"stats"`
	RowErrors []importer.RowError `json:"row_errors"`
}

// ImportInventory parses a CSV or XLSX file and stores its items as a new
// upload.
func (s Service) ImportInventory(ctx context.Context, opts ImportOptions) (ImportResult, error) {
	ctx, span := observability.StartSpan(ctx, "inventory.import", "upload", "", attribute.String("filename", opts.Filename))
	defer span.End()

	if !s.Config.AllowsExtension(opts.Filename) {
		return ImportResult{}, fmt.Errorf("%w: file type of %q is not allowed (allowed: %s)",
			ErrInvalidInput, opts.Filename, strings.Join(s.Config.Import.AllowedExtensions, ", "))
	}
	if opts.Reader == nil {
		return ImportResult{}, fmt.Errorf("%w: no file content", ErrInvalidInput)
	}
	table, err := importer.Parse(opts.Filename, opts.Reader)
	if err != nil {
		span.RecordError(err)
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if opts.Name == "" {
		base := filepath.Base(opts.Filename)
		opts.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	res, err := s.storeUpload(ctx, uploadSpec{
		name: opts.Name, filename: filepath.Base(opts.Filename), site: opts.Site, site2: opts.Site2, bsf: opts.BSF,
	}, table)
	if err != nil {
		span.RecordError(err)
		return ImportResult{}, err
	}
	span.SetAttributes(attribute.String("upload_id", res.Upload.ID), attribute.Int("rows", len(table.Rows)))
	return res, nil
}

// CreateUpload stores rows submitted as structured data.
func (s Service) CreateUpload(ctx context.Context, opts UploadOptions) (ImportResult, error) {
	ctx, span := observability.StartSpan(ctx, "inventory.create", "upload", "")
	defer span.End()

	if strings.TrimSpace(opts.Name) == "" {
		return ImportResult{}, fmt.Errorf("%w: upload name is required", ErrInvalidInput)
	}
	table := importer.Table{}
	seen := map[string]bool{}
	for _, raw := range opts.Rows {
		row := make(importer.Row, len(raw))
		for k, v := range raw {
			key := importer.HeaderKey(k)
			row[key] = strings.TrimSpace(v)
			if !seen[key] {
				seen[key] = true
				table.Columns = append(table.Columns, key)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if len(table.Rows) == 0 {
		return ImportResult{}, fmt.Errorf("%w: no rows", ErrInvalidInput)
	}
	return s.storeUpload(ctx, uploadSpec{name: opts.Name, site: opts.Site, site2: opts.Site2, bsf: opts.BSF}, table)
}

type uploadSpec struct {
	name, filename, site, site2 string
	bsf                         *float64
}

func (s Service) storeUpload(ctx context.Context, spec uploadSpec, table importer.Table) (ImportResult, error) {
	if max := s.Config.Import.MaxRows; max > 0 && len(table.Rows) > max {
		return ImportResult{}, fmt.Errorf("%w: %d rows exceeds the import limit of %d", ErrInvalidInput, len(table.Rows), max)
	}
	if spec.bsf != nil {
		if err := allocation.ValidateBSF(*spec.bsf); err != nil {
			return ImportResult{}, err
		}
	}
	records, rowErrs := importer.Normalize(table.Rows)
	s.Metrics.ObserveImport(len(records), len(table.Rows)-len(records))
	if len(records) == 0 {
		return ImportResult{}, fmt.Errorf("%w: no usable inventory rows (%d rejected)", ErrInvalidInput, len(rowErrs))
	}
	return s.persistUpload(ctx, spec, records, rowErrs, table.Columns, len(table.Rows))
}

// persistUpload stores normalized records as one upload.
func (s Service) persistUpload(ctx context.Context, spec uploadSpec, records []importer.Record, rowErrs []importer.RowError, columns []string, totalRows int) (ImportResult, error) {
	bsf := s.Config.Allocation.DefaultBSF
	if spec.bsf != nil {
		bsf = *spec.bsf
	}
	if err := allocation.ValidateBSF(bsf); err != nil {
		return ImportResult{}, err
	}
	stats := importer.Summarize(records)
	res := ImportResult{
		Stats:     stats,
		RowErrors: rowErrs,
	}
	if res.RowErrors == nil {
		res.RowErrors = []importer.RowError{}
	}
	now := s.now()
	res.Upload = domain.Upload{
		ID:           newID(),
		Name:         strings.TrimSpace(spec.name),
		Filename:     spec.filename,
		Site:         spec.site,
		Site2:        spec.site2,
		TotalItems:   stats.TotalItems,
		TotalEntries: stats.TotalEntries,
		TotalWeight:  stats.TotalWeight,
		TotalArea:    stats.TotalArea,
		BSF:          bsf,
		Metadata: map[string]any{
			"columns":    columns,
			"total_rows": totalRows,
			"row_errors": len(rowErrs),
			"categories": stats.Categories,
		},
		UploadedAt: now,
	}
	items, err := itemsFromRecords(res.Upload.ID, records, now)
	if err != nil {
		return ImportResult{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.InsertUpload(ctx, tx, res.Upload); err != nil {
			return fmt.Errorf("insert upload: %w", err)
		}
		if err := s.Repo.InsertItems(ctx, tx, items); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		return s.Events.Append(ctx, tx, events.UploadCreated, "upload", res.Upload.ID, actor(ctx), events.EventPayload{
			"name": res.Upload.Name, "entries": stats.TotalEntries, "rejected_rows": totalRows - len(records),
		})
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.Logger.Info(ctx, "inventory stored",
		logging.String("upload_id", res.Upload.ID),
		logging.Int("entries", stats.TotalEntries),
		logging.Int("units", stats.TotalItems),
		logging.Int("row_errors", len(rowErrs)))
	return res, nil
}

func itemsFromRecords(uploadID string, records []importer.Record, now string) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, len(records))
	for _, r := range records {
		var raw string
		if len(r.Raw) > 0 {
			data, err := json.Marshal(r.Raw)
			if err != nil {
				return nil, err
			}
			raw = string(data)
		}
		items = append(items, domain.InventoryItem{
			ID:                      newID(),
			UploadID:                uploadID,
			Name:                    r.Name,
			Description:             r.Description,
			Quantity:                r.Quantity,
			Category:                r.Category,
			Weight:                  r.Weight,
			Length:                  r.Length,
			Width:                   r.Width,
			Height:                  r.Height,
			Area:                    r.Area,
			PSF:                     r.PSF,
			ServiceBranch:           r.ServiceBranch,
			PriorityOrder:           r.PriorityOrder,
			RequiresClimateControl:  r.RequiresClimateControl,
			RequiresSpecialHandling: r.RequiresSpecialHandling,
			RowData:                 raw,
			CreatedAt:               now,
		})
	}
	return items, nil
}

// GetUpload returns the upload with its items.
func (s Service) GetUpload(ctx context.Context, id string) (domain.Upload, error) {
	u, err := s.Repo.GetUpload(ctx, id)
	if err != nil {
		return domain.Upload{}, err
	}
	if u.Items, err = s.Repo.ListItems(ctx, id); err != nil {
		return domain.Upload{}, err
	}
	return u, nil
}

func (s Service) ListUploads(ctx context.Context) ([]domain.Upload, error) {
	return s.Repo.ListUploads(ctx)
}

// DeleteUpload removes the upload, its items and its allocation runs.
func (s Service) DeleteUpload(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.DeleteUpload(ctx, tx, id); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.UploadDeleted, "upload", id, actor(ctx), nil)
	})
}
