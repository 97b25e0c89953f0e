package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stowplan/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("already exists")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r Repo) q(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// mapWriteErr turns sqlite constraint failures into ErrConflict.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// update runs a dynamic UPDATE with the given SET fragments.
func (r Repo) update(ctx context.Context, tx *sql.Tx, table, id string, fields []string, args []any) error {
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, table, strings.Join(fields, ","))
	return expectAffected(r.q(tx).ExecContext(ctx, query, args...))
}

func (r Repo) deleteByID(ctx context.Context, tx *sql.Tx, table, id string) error {
	return expectAffected(r.q(tx).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, table), id))
}

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}

// LatestEvents returns events newest first. Cursor excludes ids at or above it.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`,
		strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than afterID, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the newest event id, or 0 when the log is empty.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}
