package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"stowplan/internal/domain"
	"stowplan/internal/planner"
	"stowplan/internal/repo"
	"stowplan/internal/report"
)

var (
	readErrors   = []int{http.StatusNotFound}
	createErrors = []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}
)

func registerWarehouses(api huma.API, p planner.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-warehouse",
		Method:        http.MethodPost,
		Path:          "/warehouses",
		Summary:       "Create warehouse",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateWarehouseRequest
	}) (*jsonBody[domain.Warehouse], error) {
		in := planner.WarehouseInput{
			Name:          input.Body.Name,
			WarehouseType: input.Body.WarehouseType,
			Description:   input.Body.Description,
		}
		for _, z := range input.Body.Zones {
			in.Zones = append(in.Zones, z.input())
		}
		w, err := p.CreateWarehouse(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(w), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-warehouses",
		Method:      http.MethodGet,
		Path:        "/warehouses",
		Summary:     "List warehouses",
	}, func(ctx context.Context, _ *struct{}) (*jsonBody[[]domain.Warehouse], error) {
		items, err := p.ListWarehouses(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Warehouse{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-warehouse",
		Method:      http.MethodGet,
		Path:        "/warehouses/{id}",
		Summary:     "Get warehouse with zones",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*jsonBody[domain.Warehouse], error) {
		w, err := p.GetWarehouse(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(w), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-warehouse",
		Method:      http.MethodPatch,
		Path:        "/warehouses/{id}",
		Summary:     "Update warehouse",
		Errors:      createErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateWarehouseRequest
	}) (*jsonBody[domain.Warehouse], error) {
		w, err := p.UpdateWarehouse(ctx, input.ID, planner.WarehousePatch{
			Name:          input.Body.Name,
			WarehouseType: input.Body.WarehouseType,
			Description:   input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(w), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-warehouse",
		Method:        http.MethodDelete,
		Path:          "/warehouses/{id}",
		Summary:       "Delete warehouse, its zones and its allocation runs",
		DefaultStatus: http.StatusNoContent,
		Errors:        readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := p.DeleteWarehouse(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerZones(api huma.API, p planner.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-zone",
		Method:        http.MethodPost,
		Path:          "/warehouses/{id}/zones",
		Summary:       "Add zone",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body ZoneRequest
	}) (*jsonBody[domain.Zone], error) {
		z, err := p.AddZone(ctx, input.ID, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(z), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-zones",
		Method:      http.MethodGet,
		Path:        "/warehouses/{id}/zones",
		Summary:     "List zones in allocation order",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*jsonBody[[]domain.Zone], error) {
		zones, err := p.ListZones(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if zones == nil {
			zones = []domain.Zone{}
		}
		return reply(zones), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-zone",
		Method:      http.MethodPatch,
		Path:        "/zones/{id}",
		Summary:     "Update zone",
		Errors:      createErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateZoneRequest
	}) (*jsonBody[domain.Zone], error) {
		z, err := p.UpdateZone(ctx, input.ID, input.Body.patch())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(z), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-zone",
		Method:        http.MethodDelete,
		Path:          "/zones/{id}",
		Summary:       "Delete zone",
		DefaultStatus: http.StatusNoContent,
		Errors:        readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := p.DeleteZone(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerUploads(api huma.API, p planner.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-upload",
		Method:        http.MethodPost,
		Path:          "/uploads",
		Summary:       "Create inventory upload from rows",
		Description:   "Rows are keyed by column header; any accepted alias (qty, sq ft, hazmat, ...) works.",
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateUploadRequest
	}) (*jsonBody[planner.ImportResult], error) {
		res, err := p.CreateUpload(ctx, input.Body.options())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-uploads",
		Method:      http.MethodGet,
		Path:        "/uploads",
		Summary:     "List inventory uploads",
	}, func(ctx context.Context, _ *struct{}) (*jsonBody[[]domain.Upload], error) {
		items, err := p.ListUploads(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Upload{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-upload",
		Method:      http.MethodGet,
		Path:        "/uploads/{id}",
		Summary:     "Get upload with items",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*jsonBody[domain.Upload], error) {
		u, err := p.GetUpload(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-upload",
		Method:        http.MethodDelete,
		Path:          "/uploads/{id}",
		Summary:       "Delete upload, its items and its allocation runs",
		DefaultStatus: http.StatusNoContent,
		Errors:        readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := p.DeleteUpload(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAllocations(api huma.API, p planner.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "run-allocation",
		Method:        http.MethodPost,
		Path:          "/allocations",
		Summary:       "Run allocation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RunAllocationRequest
	}) (*jsonBody[planner.Allocation], error) {
		a, err := p.RunAllocation(ctx, planner.RunOptions{
			UploadID:    input.Body.UploadID,
			WarehouseID: input.Body.WarehouseID,
			BSF:         input.Body.BSF,
			Name:        input.Body.Name,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-allocations",
		Method:      http.MethodGet,
		Path:        "/allocations",
		Summary:     "List allocation runs, newest first",
	}, func(ctx context.Context, input *struct {
		UploadID    string `query:"upload_id"`
		WarehouseID string `query:"warehouse_id"`
	}) (*jsonBody[[]domain.AllocationRun], error) {
		runs, err := p.ListAllocations(ctx, repo.RunFilters{UploadID: input.UploadID, WarehouseID: input.WarehouseID})
		if err != nil {
			return nil, handleError(err)
		}
		if runs == nil {
			runs = []domain.AllocationRun{}
		}
		return reply(runs), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-allocation",
		Method:      http.MethodGet,
		Path:        "/allocations/{id}",
		Summary:     "Get allocation run with its result",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*jsonBody[planner.Allocation], error) {
		a, err := p.GetAllocation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(a), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-allocation",
		Method:        http.MethodDelete,
		Path:          "/allocations/{id}",
		Summary:       "Delete allocation run",
		DefaultStatus: http.StatusNoContent,
		Errors:        readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := p.DeleteAllocation(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compare-allocations",
		Method:      http.MethodPost,
		Path:        "/allocations/compare",
		Summary:     "Compare allocation runs",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CompareAllocationsRequest
	}) (*jsonBody[planner.Comparison], error) {
		cmp, err := p.CompareAllocations(ctx, input.Body.IDs)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cmp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "export-report",
		Method:        http.MethodPost,
		Path:          "/allocations/{id}/reports",
		Summary:       "Render a report and save it to a storage URL",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body ExportReportRequest
	}) (*jsonBody[domain.SavedReport], error) {
		kind, err := report.ParseKind(input.Body.Type)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		saved, err := p.ExportReport(ctx, planner.ExportOptions{
			AllocationID: input.ID,
			Kind:         kind,
			Destination:  input.Body.Destination,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(saved), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/allocations/{id}/reports",
		Summary:     "List saved reports for an allocation",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*jsonBody[[]domain.SavedReport], error) {
		items, err := p.ListReports(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.SavedReport{}
		}
		return reply(items), nil
	})
}

func registerEvents(api huma.API, p planner.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"warehouse,zone,upload,allocation,seed"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*jsonBody[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := p.Repo.LatestEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []domain.Event{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return reply(resp), nil
	})
}

// registerRawRoutes mounts the endpoints whose bodies are not JSON: file
// imports and rendered reports.
func registerRawRoutes(r chi.Router, basePath string, p planner.Service, maxUpload int64) {
	r.Post(path.Join(basePath, "uploads/import"), func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filename := q.Get("filename")
		if filename == "" {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "filename query parameter is required", nil))
			return
		}
		bsf, perr := parseOptionalFloat("bsf", q.Get("bsf"))
		if perr != nil {
			respondStatusError(w, perr)
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxUpload))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "too_large", err.Error(), nil))
				return
			}
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil))
			return
		}
		res, err := p.ImportInventory(req.Context(), planner.ImportOptions{
			Filename: filename,
			Reader:   bytes.NewReader(data),
			Name:     q.Get("name"),
			Site:     q.Get("site"),
			Site2:    q.Get("site2"),
			BSF:      bsf,
		})
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(res)
	})

	for _, kind := range []report.Kind{report.KindCSV, report.KindHTML, report.KindText, report.KindXLSX} {
		r.Get(path.Join(basePath, "allocations/{id}/report."+kind.Extension()), func(w http.ResponseWriter, req *http.Request) {
			var buf bytes.Buffer
			if err := p.RenderReport(req.Context(), &buf, chi.URLParam(req, "id"), kind); err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			w.Header().Set("Content-Type", kind.ContentType())
			_, _ = w.Write(buf.Bytes())
		})
	}
}
