package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"stowplan/internal/allocation"
	"stowplan/internal/config"
	"stowplan/internal/db"
	"stowplan/internal/domain"
	"stowplan/internal/migrate"
	"stowplan/internal/observability"
	"stowplan/internal/planner"
)

type testServer struct {
	URL     string
	client  *http.Client
	planner planner.Service
	close   func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	cfg := config.Default()
	cfg.Reports.Destination = "mem://localhost/reports"
	p := planner.New(conn, cfg, planner.WithMetrics(metrics))
	handler, err := New(Config{Planner: p, BasePath: "/v0", Auth: auth, Metrics: metrics})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:     "http://" + ln.Addr().String(),
		client:  &http.Client{},
		planner: p,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %T: %v (%s)", v, err, string(data))
	}
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func createWarehouse(t *testing.T, srv *testServer, headers map[string]string) domain.Warehouse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/warehouses", map[string]any{
		"name": "Main",
		"zones": []map[string]any{
			{"name": "High Bay", "area": 1000, "height": 20, "strength": 250},
			{"name": "Cold", "area": 400, "height": 10, "climate_controlled": true},
		},
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create warehouse status %d: %s", res.StatusCode, string(data))
	}
	return decode[domain.Warehouse](t, data)
}

func createUpload(t *testing.T, srv *testServer) domain.Upload {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/uploads", map[string]any{
		"upload_name": "Q1",
		"bsf_factor":  0.5,
		"rows": []map[string]any{
			{"Item Name": "Pallet", "Qty": 2, "Weight (lbs)": 800, "Length": 4, "Width": 4, "Height": 5},
			{"Item Name": "Vaccine Fridge", "Qty": 1, "Weight": 600, "Sq Ft": 24, "Height": 7, "Climate": "yes"},
		},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create upload status %d: %s", res.StatusCode, string(data))
	}
	return decode[planner.ImportResult](t, data).Upload
}

func TestAllocationFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	wh := createWarehouse(t, srv, nil)
	if wh.TotalArea != 1400 || len(wh.Zones) != 2 {
		t.Fatalf("unexpected warehouse: %+v", wh)
	}
	up := createUpload(t, srv)
	if up.TotalEntries != 2 || up.TotalItems != 3 {
		t.Fatalf("unexpected upload totals: %+v", up)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations", map[string]any{
		"upload_id":    up.ID,
		"warehouse_id": wh.ID,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("run allocation status %d: %s", res.StatusCode, string(data))
	}
	run := decode[planner.Allocation](t, data)
	if !run.OverallFit || run.TotalAllocated != 2 || run.BSF != 0.5 {
		t.Fatalf("unexpected run: %+v", run.AllocationRun)
	}
	if run.Result.Summary.AllocationRate != 100 {
		t.Fatalf("expected rate 100, got %v", run.Result.Summary.AllocationRate)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/allocations/"+run.ID+"/report.csv", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("csv report status %d: %s", res.StatusCode, string(data))
	}
	if !strings.HasPrefix(res.Header.Get("Content-Type"), "text/csv") || !strings.Contains(string(data), "Vaccine Fridge") {
		t.Fatalf("unexpected csv report: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations/compare", map[string]any{
		"allocation_ids": []string{run.ID},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compare status %d: %s", res.StatusCode, string(data))
	}
	cmp := decode[planner.Comparison](t, data)
	if cmp.BestFit == nil || cmp.BestFit.ID != run.ID {
		t.Fatalf("unexpected comparison: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations/"+run.ID+"/reports", map[string]any{
		"report_type": "HTML",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("export status %d: %s", res.StatusCode, string(data))
	}
	saved := decode[domain.SavedReport](t, data)
	if !strings.HasPrefix(saved.Location, "mem://localhost/reports/") || !strings.HasSuffix(saved.Location, ".html") {
		t.Fatalf("unexpected report location %q", saved.Location)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/allocations/"+run.ID, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/warehouses/missing", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	if env := decode[errorEnvelope](t, data); env.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %s", string(data))
	}

	createWarehouse(t, srv, nil)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/warehouses", map[string]any{"name": "Main"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d %s", res.StatusCode, string(data))
	}

	empty := createEmptyWarehouse(t, srv)
	up := createUpload(t, srv)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations", map[string]any{
		"upload_id":    up.ID,
		"warehouse_id": empty.ID,
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zoneless warehouse, got %d %s", res.StatusCode, string(data))
	}
	if env := decode[errorEnvelope](t, data); env.Error.Code != "no_zones" {
		t.Fatalf("expected no_zones code, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations", map[string]any{
		"upload_id":    up.ID,
		"warehouse_id": empty.ID,
		"bsf_factor":   1.5,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bsf out of range, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/warehouses/"+empty.ID+"/zones", map[string]any{
		"name": "Flat", "area": -5, "height": 10,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative area, got %d %s", res.StatusCode, string(data))
	}
}

func TestValidationErrorListsEveryField(t *testing.T) {
	joined := errors.Join(
		allocation.ValidationError{Kind: "item", Index: 0, ID: "a", Field: "area", Msg: "must not be negative"},
		allocation.ValidationError{Kind: "zone", Index: 2, Field: "height", Msg: "must be positive"},
	)
	se := handleError(fmt.Errorf("allocate: %w", joined))
	apiErr, ok := se.(*apiError)
	if !ok {
		t.Fatalf("expected *apiError, got %T", se)
	}
	if apiErr.status != http.StatusBadRequest || apiErr.Body.Code != "validation_failed" {
		t.Fatalf("unexpected error %d %s", apiErr.status, apiErr.Body.Code)
	}
	details, ok := apiErr.Body.Details["errors"].([]map[string]any)
	if !ok || len(details) != 2 {
		t.Fatalf("expected 2 detail entries, got %#v", apiErr.Body.Details)
	}
	if details[0]["field"] != "area" || details[1]["field"] != "height" || details[1]["kind"] != "zone" {
		t.Fatalf("unexpected details %#v", details)
	}
}

func createEmptyWarehouse(t *testing.T, srv *testServer) domain.Warehouse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/warehouses", map[string]any{"name": "Empty"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create empty warehouse status %d: %s", res.StatusCode, string(data))
	}
	return decode[domain.Warehouse](t, data)
}

func TestFileImport(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	csv := "Nomenclature,Qty,WT,L,W,HT\nGenerator,1,2000,8,5,6\n,1,1,1,1,1\n"
	res, err := srv.Client().Post(srv.URL+"/v0/uploads/import?filename=gen.csv&bsf=0.4", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("import status %d: %s", res.StatusCode, string(data))
	}
	out := decode[planner.ImportResult](t, data)
	if out.Upload.Name != "gen" || out.Upload.BSF != 0.4 || len(out.RowErrors) != 1 {
		t.Fatalf("unexpected import result: %s", string(data))
	}

	res2, err := srv.Client().Post(srv.URL+"/v0/uploads/import?filename=gen.pdf", "application/pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for pdf, got %d", res2.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "s3cret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/warehouses", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/warehouses", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "planner-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}
	createWarehouse(t, srv, auth)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?type=warehouse.created", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	events := decode[paginatedEvents](t, data)
	if len(events.Items) != 1 || events.Items[0].ActorID != "planner-7" {
		t.Fatalf("expected event by planner-7, got %s", string(data))
	}
}

func TestMetricsAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	wh := createWarehouse(t, srv, nil)
	up := createUpload(t, srv)
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/allocations", map[string]any{"upload_id": up.ID, "warehouse_id": wh.ID}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("run status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "stowplan_allocation_runs_total 1") {
		t.Fatalf("unexpected metrics (%d): %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"/v0/allocations/compare"`) {
		t.Fatalf("unexpected openapi (%d)", res.StatusCode)
	}
}

func TestWebhookDelivery(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	var (
		mu       sync.Mutex
		received []webhookEvent
		headers  []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		headers = append(headers, r.Header.Get("X-Stowplan-Secret"))
		mu.Unlock()
	}))
	defer hook.Close()

	ctx := context.Background()
	d := NewWebhookDispatcher(srv.planner.Repo, []config.WebhookConfig{{
		URL:    hook.URL,
		Events: []string{"warehouse.created"},
		Secret: "shh",
	}}, nil)
	d.Prime(ctx)

	createWarehouse(t, srv, nil)
	createUpload(t, srv)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	if received[0].Type != "warehouse.created" || received[0].EntityKind != "warehouse" || headers[0] != "shh" {
		t.Fatalf("unexpected delivery: %+v (secret %q)", received[0], headers[0])
	}
}
