package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stowplan/internal/allocation"
	"stowplan/internal/domain"
	"stowplan/internal/events"
	"stowplan/internal/logging"
	"stowplan/internal/observability"
	"stowplan/internal/repo"
	"stowplan/internal/report"
)

// Allocation is a stored run with its decoded result.
type Allocation struct {
	domain.AllocationRun
	WarehouseName string            `json:"warehouse_name,omitempty"`
	UploadName    string            `json:"upload_name,omitempty"`
	Result        allocation.Result `json:"result"`
}

type RunOptions struct {
	UploadID    string
	WarehouseID string
	// BSF overrides the upload's broken stow factor when set.
	BSF  *float64
	Name string
}

// RunAllocation loads the warehouse zones and upload items, runs the engine
// and stores the outcome.
func (s Service) RunAllocation(ctx context.Context, opts RunOptions) (Allocation, error) {
	ctx, span := observability.StartSpan(ctx, "allocation.run", "warehouse", opts.WarehouseID,
		attribute.String("upload_id", opts.UploadID))
	defer span.End()

	if opts.UploadID == "" || opts.WarehouseID == "" {
		return Allocation{}, fmt.Errorf("%w: upload_id and warehouse_id are required", ErrInvalidInput)
	}
	w, err := s.GetWarehouse(ctx, opts.WarehouseID)
	if err != nil {
		return Allocation{}, fmt.Errorf("warehouse %s: %w", opts.WarehouseID, err)
	}
	up, err := s.GetUpload(ctx, opts.UploadID)
	if err != nil {
		return Allocation{}, fmt.Errorf("upload %s: %w", opts.UploadID, err)
	}
	bsf := up.BSF
	if opts.BSF != nil {
		bsf = *opts.BSF
	}
	if err := allocation.ValidateBSF(bsf); err != nil {
		return Allocation{}, err
	}
	if len(w.Zones) == 0 {
		return Allocation{}, fmt.Errorf("%w: %s", ErrNoZones, w.Name)
	}
	if len(up.Items) == 0 {
		return Allocation{}, fmt.Errorf("%w: %s", ErrNoItems, up.Name)
	}

	start := time.Now()
	res, err := allocation.Allocate(engineItems(up.Items), engineZones(w.Zones), bsf)
	if err != nil {
		span.RecordError(err)
		return Allocation{}, err
	}
	elapsed := time.Since(start)
	s.Metrics.ObserveRun(res, elapsed)

	body, err := json.Marshal(res)
	if err != nil {
		return Allocation{}, fmt.Errorf("encode result: %w", err)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "Allocation - " + w.Name
	}
	run := domain.AllocationRun{
		ID:             newID(),
		UploadID:       up.ID,
		WarehouseID:    w.ID,
		Name:           name,
		BSF:            bsf,
		TotalAllocated: res.Summary.TotalAllocated,
		TotalFailed:    res.Summary.TotalFailed,
		OverallFit:     res.OverallFit,
		ResultJSON:     string(body),
		CreatedAt:      s.now(),
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.InsertAllocationRun(ctx, tx, run); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
		return s.Events.Append(ctx, tx, events.AllocationRun, "allocation", run.ID, actor(ctx), events.EventPayload{
			"warehouse_id": w.ID, "upload_id": up.ID, "bsf": bsf,
			"allocated": res.Summary.TotalAllocated, "failed": res.Summary.TotalFailed,
		})
	})
	if err != nil {
		return Allocation{}, err
	}
	span.SetAttributes(
		attribute.String("allocation_id", run.ID),
		attribute.Int("allocated", res.Summary.TotalAllocated),
		attribute.Int("failed", res.Summary.TotalFailed),
	)
	s.Logger.Info(ctx, "allocation complete",
		logging.String("allocation_id", run.ID),
		logging.String("warehouse", w.Name),
		logging.Int("allocated", res.Summary.TotalAllocated),
		logging.Int("failed", res.Summary.TotalFailed),
		logging.Float("rate", res.Summary.AllocationRate),
		logging.Any("elapsed", elapsed))
	if !res.OverallFit {
		s.Logger.Warn(ctx, "allocation left items unplaced",
			logging.String("allocation_id", run.ID),
			logging.Any("reasons", res.FailuresByReason()))
	}
	return Allocation{AllocationRun: run, WarehouseName: w.Name, UploadName: up.Name, Result: res}, nil
}

func engineItems(items []domain.InventoryItem) []allocation.Item {
	out := make([]allocation.Item, 0, len(items))
	for _, it := range items {
		out = append(out, allocation.Item{
			ID:                      it.ID,
			Name:                    it.Name,
			Category:                it.Category,
			Quantity:                it.Quantity,
			Weight:                  it.Weight,
			Length:                  it.Length,
			Width:                   it.Width,
			Height:                  it.Height,
			Area:                    it.Area,
			PSF:                     it.PSF,
			RequiresClimateControl:  it.RequiresClimateControl,
			RequiresSpecialHandling: it.RequiresSpecialHandling,
			PriorityOrder:           it.PriorityOrder,
			ServiceBranch:           it.ServiceBranch,
		})
	}
	return out
}

func engineZones(zones []domain.Zone) []allocation.Zone {
	out := make([]allocation.Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, allocation.Zone{
			ID:                z.ID,
			Name:              z.Name,
			Area:              z.Area,
			Height:            z.Height,
			Strength:          z.Strength,
			ClimateControlled: z.ClimateControlled,
			SpecialHandling:   z.SpecialHandling,
		})
	}
	return out
}

// GetAllocation returns a stored run with its decoded result.
func (s Service) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	run, err := s.Repo.GetAllocationRun(ctx, id)
	if err != nil {
		return Allocation{}, err
	}
	a := Allocation{AllocationRun: run}
	if err := json.Unmarshal([]byte(run.ResultJSON), &a.Result); err != nil {
		return Allocation{}, fmt.Errorf("decode allocation %s: %w", id, err)
	}
	if w, err := s.Repo.GetWarehouse(ctx, run.WarehouseID); err == nil {
		a.WarehouseName = w.Name
	}
	if u, err := s.Repo.GetUpload(ctx, run.UploadID); err == nil {
		a.UploadName = u.Name
	}
	return a, nil
}

// ListAllocations returns run headers, newest first.
func (s Service) ListAllocations(ctx context.Context, f repo.RunFilters) ([]domain.AllocationRun, error) {
	return s.Repo.ListAllocationRuns(ctx, f)
}

func (s Service) DeleteAllocation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.DeleteAllocationRun(ctx, tx, id); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.AllocationDelete, "allocation", id, actor(ctx), nil)
	})
}

// RunSummary is one line of a comparison.
type RunSummary struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	WarehouseName      string  `json:"warehouse_name"`
	UploadName         string  `json:"upload_name"`
	BSF                float64 `json:"bsf_factor"`
	TotalAllocated     int     `json:"total_allocated"`
	TotalFailed        int     `json:"total_failed"`
	AllocationRate     float64 `json:"allocation_rate"`
	OverallUtilization float64 `json:"overall_utilization"`
	OverallFit         bool    `json:"overall_fit"`
}

type Comparison struct {
	Results []RunSummary `json:"results"`
	// BestFit has the highest allocation rate; nil when every rate is 0.
	BestFit *RunSummary `json:"best_fit"`
	// BestUtilization has the highest overall utilization; nil when every
	// utilization is 0.
	BestUtilization *RunSummary `json:"best_utilization"`
}

// CompareAllocations summarizes runs side by side. The first run wins ties.
func (s Service) CompareAllocations(ctx context.Context, ids []string) (Comparison, error) {
	if len(ids) == 0 {
		return Comparison{}, fmt.Errorf("%w: at least one allocation id is required", ErrInvalidInput)
	}
	cmp := Comparison{Results: make([]RunSummary, 0, len(ids))}
	for _, id := range ids {
		a, err := s.GetAllocation(ctx, id)
		if err != nil {
			return Comparison{}, fmt.Errorf("allocation %s: %w", id, err)
		}
		sum := a.Result.Summary
		cmp.Results = append(cmp.Results, RunSummary{
			ID:                 a.ID,
			Name:               a.Name,
			WarehouseName:      a.WarehouseName,
			UploadName:         a.UploadName,
			BSF:                a.BSF,
			TotalAllocated:     sum.TotalAllocated,
			TotalFailed:        sum.TotalFailed,
			AllocationRate:     sum.AllocationRate,
			OverallUtilization: sum.OverallUtilization,
			OverallFit:         a.OverallFit,
		})
	}
	var bestRate, bestUtil float64
	for i := range cmp.Results {
		r := &cmp.Results[i]
		if r.AllocationRate > bestRate {
			bestRate = r.AllocationRate
			cmp.BestFit = r
		}
		if r.OverallUtilization > bestUtil {
			bestUtil = r.OverallUtilization
			cmp.BestUtilization = r
		}
	}
	return cmp, nil
}

func (s Service) reportMeta(a Allocation) report.Meta {
	return report.Meta{
		Title:         a.Name,
		WarehouseName: a.WarehouseName,
		UploadName:    a.UploadName,
		BSF:           a.BSF,
		GeneratedAt:   s.clock(),
	}
}

// RenderReport writes a stored run in the given format without saving it.
func (s Service) RenderReport(ctx context.Context, w io.Writer, allocationID string, kind report.Kind) error {
	a, err := s.GetAllocation(ctx, allocationID)
	if err != nil {
		return err
	}
	return report.Render(w, kind, s.reportMeta(a), a.Result)
}

type ExportOptions struct {
	AllocationID string
	Kind         report.Kind
	// Destination is an afs URL; it defaults to reports.destination.
	Destination string
}

// ExportReport renders a run, uploads it and records a saved report.
func (s Service) ExportReport(ctx context.Context, opts ExportOptions) (domain.SavedReport, error) {
	ctx, span := observability.StartSpan(ctx, "report.export", "allocation", opts.AllocationID,
		attribute.String("kind", string(opts.Kind)))
	defer span.End()

	a, err := s.GetAllocation(ctx, opts.AllocationID)
	if err != nil {
		return domain.SavedReport{}, err
	}
	dest := opts.Destination
	if dest == "" {
		dest = s.Config.Reports.Destination
	}
	meta := s.reportMeta(a)
	location, err := report.Export(ctx, s.FS, dest, opts.Kind, meta, a.Result)
	if err != nil {
		span.RecordError(err)
		return domain.SavedReport{}, err
	}
	saved := domain.SavedReport{
		ID:           newID(),
		AllocationID: a.ID,
		Name:         report.FileName(meta.Title, opts.Kind, meta.GeneratedAt),
		Type:         string(opts.Kind),
		Location:     location,
		CreatedAt:    meta.GeneratedAt.Format(time.RFC3339),
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Repo.InsertSavedReport(ctx, tx, saved); err != nil {
			return err
		}
		return s.Events.Append(ctx, tx, events.ReportSaved, "allocation", a.ID, actor(ctx),
			events.EventPayload{"report_id": saved.ID, "type": saved.Type, "location": location})
	})
	if err != nil {
		return domain.SavedReport{}, err
	}
	s.Logger.Info(ctx, "report exported", logging.String("allocation_id", a.ID), logging.String("location", location))
	return saved, nil
}

func (s Service) ListReports(ctx context.Context, allocationID string) ([]domain.SavedReport, error) {
	if _, err := s.Repo.GetAllocationRun(ctx, allocationID); err != nil {
		return nil, err
	}
	return s.Repo.ListSavedReports(ctx, allocationID)
}
