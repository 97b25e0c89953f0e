package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"stowplan/internal/domain"
)

const runColumns = `id,upload_id,warehouse_id,result_name,bsf_factor,total_allocated,total_failed,overall_fit,result_json,created_at`

func scanRun(s interface{ Scan(...any) error }) (domain.AllocationRun, error) {
	var a domain.AllocationRun
	err := s.Scan(&a.ID, &a.UploadID, &a.WarehouseID, &a.Name, &a.BSF, &a.TotalAllocated, &a.TotalFailed, &a.OverallFit, &a.ResultJSON, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAllocationRun(ctx context.Context, tx *sql.Tx, a domain.AllocationRun) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO allocation_runs(`+runColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.UploadID, a.WarehouseID, a.Name, a.BSF, a.TotalAllocated, a.TotalFailed, a.OverallFit, a.ResultJSON, a.CreatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetAllocationRun(ctx context.Context, id string) (domain.AllocationRun, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM allocation_runs WHERE id=?`, id))
}

type RunFilters struct {
	UploadID    string
	WarehouseID string
}

// ListAllocationRuns returns runs newest first.
func (r Repo) ListAllocationRuns(ctx context.Context, f RunFilters) ([]domain.AllocationRun, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UploadID != "" {
		clauses = append(clauses, "upload_id=?")
		args = append(args, f.UploadID)
	}
	if f.WarehouseID != "" {
		clauses = append(clauses, "warehouse_id=?")
		args = append(args, f.WarehouseID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM allocation_runs WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AllocationRun
	for rows.Next() {
		a, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) DeleteAllocationRun(ctx context.Context, tx *sql.Tx, id string) error {
	return r.deleteByID(ctx, tx, "allocation_runs", id)
}

func (r Repo) InsertSavedReport(ctx context.Context, tx *sql.Tx, s domain.SavedReport) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO saved_reports(id,allocation_id,report_name,report_type,location,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.AllocationID, s.Name, s.Type, nullable(s.Location), s.CreatedAt)
	return mapWriteErr(err)
}

func (r Repo) ListSavedReports(ctx context.Context, allocationID string) ([]domain.SavedReport, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,allocation_id,report_name,report_type,COALESCE(location,''),created_at FROM saved_reports WHERE allocation_id=? ORDER BY created_at DESC, id`, allocationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SavedReport
	for rows.Next() {
		var s domain.SavedReport
		if err := rows.Scan(&s.ID, &s.AllocationID, &s.Name, &s.Type, &s.Location, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// ClearAll removes every planning record. Events are kept.
func (r Repo) ClearAll(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"saved_reports", "allocation_runs", "inventory_items", "uploads", "zones", "warehouses"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}
