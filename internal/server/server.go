package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stowplan/internal/allocation"
	"stowplan/internal/logging"
	"stowplan/internal/observability"
	"stowplan/internal/planner"
	"stowplan/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Planner  planner.Service
	BasePath string
	Auth     AuthConfig
	// Metrics is served at /metrics when set.
	Metrics *observability.Metrics
	Logger  logging.Logger
	// MaxUploadBytes caps file imports; 0 means 32 MiB.
	MaxUploadBytes int64
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"warehouse not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the planning API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// request schema failures are the caller's fault
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Logger))

	hcfg := huma.DefaultConfig("Stowplan API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	p := cfg.Planner
	registerDocs(router, basePath)
	registerHealth(group)
	registerWarehouses(group, p)
	registerZones(group, p)
	registerUploads(group, p)
	registerAllocations(group, p)
	registerEvents(group, p)
	registerRawRoutes(router, basePath, p, cfg.MaxUploadBytes)
	registerOpenAPI(router, api, basePath, cfg.Auth.Enabled())
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}
	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, allocation.ErrInvalidBSF):
		return newAPIError(http.StatusBadRequest, "invalid_bsf", err.Error(), nil)
	case errors.As(err, new(allocation.ValidationError)):
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(),
			map[string]any{"errors": validationDetails(err)})
	case errors.Is(err, planner.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, planner.ErrNoZones):
		return newAPIError(http.StatusUnprocessableEntity, "no_zones", err.Error(), nil)
	case errors.Is(err, planner.ErrNoItems):
		return newAPIError(http.StatusUnprocessableEntity, "no_items", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

// validationDetails lists every ValidationError in err's tree.
func validationDetails(err error) []map[string]any {
	var out []map[string]any
	var walk func(error)
	walk = func(e error) {
		if ve, ok := e.(allocation.ValidationError); ok {
			out = append(out, map[string]any{"kind": ve.Kind, "index": ve.Index, "id": ve.ID, "field": ve.Field, "message": ve.Msg})
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get("X-Request-Id"); id != "" {
				ctx = logging.ContextWithRequestID(ctx, id)
			}
			ctx, id := logging.EnsureRequestID(ctx)
			w.Header().Set("X-Request-Id", id)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", ww.Status()),
				logging.Any("duration", time.Since(start)),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Error(ctx, "request failed", fields...)
				return
			}
			log.Debug(ctx, "request", fields...)
		})
	}
}

type jsonBody[T any] struct {
	Body T
}

func reply[T any](v T) *jsonBody[T] { return &jsonBody[T]{Body: v} }

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string, authEnabled bool) {
	var spec []byte
	serve := func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			if authEnabled {
				applyAuthSecurity(oas, basePath)
			}
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	}
	r.Get(path.Join(basePath, "openapi.json"), serve)
	r.Get("/openapi.json", serve)
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Stowplan API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => { SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' }); };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*jsonBody[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseOptionalFloat(name, raw string) (*float64, huma.StatusError) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid "+name, map[string]any{name: raw})
	}
	return &v, nil
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
