package stowplansdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Stowplan HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when the server runs without auth.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  30 * time.Second,
	}
}

// Zone is a storage zone (partial).
type Zone struct {
	ID                string  `json:"id,omitempty"`
	Name              string  `json:"name"`
	Area              float64 `json:"area"`
	Height            float64 `json:"height"`
	Strength          float64 `json:"strength,omitempty"`
	ClimateControlled bool    `json:"climate_controlled,omitempty"`
	SpecialHandling   bool    `json:"special_handling,omitempty"`
}

// Warehouse represents the API warehouse model (partial).
type Warehouse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	TotalArea float64 `json:"total_area"`
	Zones     []Zone  `json:"zones,omitempty"`
}

// Upload is a stored inventory upload (partial).
type Upload struct {
	ID           string  `json:"id"`
	Name         string  `json:"upload_name"`
	TotalItems   int     `json:"total_items"`
	TotalEntries int     `json:"total_entries"`
	BSF          float64 `json:"bsf_factor"`
}

// RowError is an inventory row that was rejected or partly read.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Skipped bool   `json:"skipped"`
}

type ImportResult struct {
	Upload    Upload     `json:"upload"`
	RowErrors []RowError `json:"row_errors"`
}

// Summary holds the headline numbers of a run.
type Summary struct {
	TotalItems         int     `json:"total_items"`
	TotalAllocated     int     `json:"total_allocated"`
	TotalFailed        int     `json:"total_failed"`
	AllocationRate     float64 `json:"allocation_rate"`
	OverallUtilization float64 `json:"overall_utilization"`
}

// Failure is an item that could not be placed.
type Failure struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Reason string `json:"failure_reason"`
	Detail string `json:"failure_detail"`
}

// Allocation is a stored allocation run (partial).
type Allocation struct {
	ID          string  `json:"id"`
	Name        string  `json:"result_name"`
	UploadID    string  `json:"upload_id"`
	WarehouseID string  `json:"warehouse_id"`
	BSF         float64 `json:"bsf_factor"`
	OverallFit  bool    `json:"overall_fit"`
	Result      struct {
		Failures []Failure `json:"failures"`
		Summary  Summary   `json:"summary"`
	} `json:"result"`
}

// RunSummary is one line of a comparison.
type RunSummary struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	AllocationRate     float64 `json:"allocation_rate"`
	OverallUtilization float64 `json:"overall_utilization"`
	OverallFit         bool    `json:"overall_fit"`
}

type Comparison struct {
	Results         []RunSummary `json:"results"`
	BestFit         *RunSummary  `json:"best_fit"`
	BestUtilization *RunSummary  `json:"best_utilization"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health reports whether the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var resp []Warehouse
	err := c.do(ctx, http.MethodGet, "warehouses", nil, &resp)
	return resp, err
}

// CreateWarehouse creates a warehouse with its zones.
func (c *Client) CreateWarehouse(ctx context.Context, name string, zones []Zone) (Warehouse, error) {
	body := map[string]any{"name": name, "zones": zones}
	var resp Warehouse
	err := c.do(ctx, http.MethodPost, "warehouses", body, &resp)
	return resp, err
}

// CreateUpload stores inventory rows keyed by column header. A zero bsf
// leaves the server default.
func (c *Client) CreateUpload(ctx context.Context, name string, bsf float64, rows []map[string]any) (ImportResult, error) {
	body := map[string]any{"upload_name": name, "rows": rows}
	if bsf > 0 {
		body["bsf_factor"] = bsf
	}
	var resp ImportResult
	err := c.do(ctx, http.MethodPost, "uploads", body, &resp)
	return resp, err
}

// RunAllocation allocates an upload into a warehouse using the upload's BSF.
func (c *Client) RunAllocation(ctx context.Context, uploadID, warehouseID string) (Allocation, error) {
	body := map[string]any{"upload_id": uploadID, "warehouse_id": warehouseID}
	var resp Allocation
	err := c.do(ctx, http.MethodPost, "allocations", body, &resp)
	return resp, err
}

func (c *Client) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	var resp Allocation
	err := c.do(ctx, http.MethodGet, "allocations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CompareAllocations(ctx context.Context, ids ...string) (Comparison, error) {
	var resp Comparison
	err := c.do(ctx, http.MethodPost, "allocations/compare", map[string]any{"allocation_ids": ids}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}
