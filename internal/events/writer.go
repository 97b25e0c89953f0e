package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	WarehouseCreated = "warehouse.created"
	WarehouseUpdated = "warehouse.updated"
	WarehouseDeleted = "warehouse.deleted"
	ZoneAdded        = "zone.added"
	ZoneUpdated      = "zone.updated"
	ZoneDeleted      = "zone.deleted"
	UploadCreated    = "upload.created"
	UploadDeleted    = "upload.deleted"
	AllocationRun    = "allocation.run"
	AllocationDelete = "allocation.deleted"
	ReportSaved      = "report.saved"
	SeedLoaded       = "seed.loaded"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	if actorID == "" {
		actorID = "system"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
