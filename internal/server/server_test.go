package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PanelCut/internal/engine"
	"github.com/piwi3910/PanelCut/internal/model"
	"github.com/piwi3910/PanelCut/internal/telemetry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	opt := engine.New(model.DefaultSettings()).
		WithCache(engine.NewCache(8, time.Minute)).
		WithRecorder(telemetry.NewMetrics(reg))
	return New(opt, Options{
		Strategy:  model.StrategyWasteMinimize,
		KerfWidth: 3,
		Timeout:   time.Minute,
		Gatherer:  reg,
	}), reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const sheetRequest = `{
	"pieces": [{"id": "Q", "width": 1400, "height": 1035, "quantity": 5}],
	"panels": [{"id": "P", "width": 2800, "height": 2070, "stockQuantity": 2, "pricePerArea": 35.5}],
	"strategy": "length-first",
	"kerfWidth": 0
}`

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStrategies(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"strategies": ["LENGTH_FIRST", "WIDTH_FIRST", "GRAIN_RESPECT", "WASTE_MINIMIZE"],
		"default": "WASTE_MINIMIZE"
	}`, rec.Body.String())
}

func TestOptimize(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/optimize", sheetRequest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.StrategyLengthFirst, resp.Strategy)
	require.Len(t, resp.CuttingPlans, 2)
	assert.Len(t, resp.CuttingPlans[0].Placements, 4)
	assert.Len(t, resp.CuttingPlans[1].Placements, 1)
	assert.Empty(t, resp.UnplacedPieces)
	assert.Equal(t, map[string]int{"P": 2}, resp.PanelsUsed)
	assert.Empty(t, resp.ValidationErrors)
}

func TestOptimize_DefaultsAndValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{
		"pieces": [
			{"id": "A", "width": 500, "height": 500, "quantity": 1},
			{"id": "bad", "width": -1, "height": 500, "quantity": 1},
			{"id": "A", "width": 100, "height": 100, "quantity": 1}
		],
		"panels": [{"id": "P", "width": 1000, "height": 1000, "stockQuantity": 1}]
	}`
	rec := do(t, s, http.MethodPost, "/v1/optimize", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.StrategyWasteMinimize, resp.Strategy)
	assert.Equal(t, 3.0, resp.KerfWidth)
	assert.Equal(t, 1, resp.PlacedCount())
	require.Len(t, resp.ValidationErrors, 2)
	assert.Equal(t, model.CodeInvalidDimensions, resp.ValidationErrors[0].Code)
	assert.Equal(t, model.CodeDuplicateID, resp.ValidationErrors[1].Code)
}

func TestOptimize_FatalErrors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name  string
		body  string
		code  model.Code
		field string
	}{
		{"negative kerf", `{"pieces":[],"panels":[],"kerfWidth":-1}`, model.CodeInvalidKerf, "kerfWidth"},
		{"unknown strategy", `{"pieces":[],"panels":[],"strategy":"BEST_FIT"}`, model.CodeStrategyNotSupported, "strategy"},
		{"negative timeout", `{"pieces":[],"panels":[],"timeoutMs":-5}`, CodeInvalidRequest, "timeoutMs"},
		{"malformed body", `{"pieces":`, CodeInvalidRequest, ""},
		{"wrong type", `{"pieces":[{"width":"wide"}]}`, CodeInvalidRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/optimize", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var e model.Error
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.field, e.Field)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestOptimizePDF(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/optimize/pdf", sheetRequest)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = do(t, s, http.MethodPost, "/v1/optimize/pdf", `{"pieces":[],"panels":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompare(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/compare", sheetRequest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 4, "no half-kerf scenario for a zero kerf")
	assert.Equal(t, model.StrategyLengthFirst, resp.Results[0].Scenario.Strategy)
	assert.GreaterOrEqual(t, resp.Best, 0)
	for _, r := range resp.Results {
		assert.Equal(t, 0, r.UnplacedCount)
		assert.Equal(t, 2, r.PanelsUsed)
	}
}

func TestCompare_ExplicitScenarios(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{
		"pieces": [{"id": "A", "width": 300, "height": 200, "quantity": 3}],
		"panels": [{"id": "P", "width": 1000, "height": 1000, "stockQuantity": 1}],
		"scenarios": [
			{"strategy": "width_first", "kerfWidth": 3},
			{"name": "thin", "strategy": "GRAIN_RESPECT", "kerfWidth": 1}
		]
	}`
	rec := do(t, s, http.MethodPost, "/v1/compare", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "WIDTH_FIRST", resp.Results[0].Scenario.Name)
	assert.Equal(t, "thin", resp.Results[1].Scenario.Name)

	rec = do(t, s, http.MethodPost, "/v1/compare", `{"pieces":[],"panels":[],"scenarios":[{"strategy":"nope"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/optimize", sheetRequest).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/optimize", sheetRequest).Code)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `panelcut_optimization_runs_total{strategy="LENGTH_FIRST"} 1`)
	assert.Contains(t, body, `panelcut_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `panelcut_cache_lookups_total{result="miss"} 1`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := New(engine.New(model.DefaultSettings()), Options{Strategy: model.StrategyLengthFirst})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics", "").Code)
}

func TestOptimize_QuantityLimit(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{
		"pieces": [
			{"id": "huge", "width": 10, "height": 10, "quantity": 10000000000},
			{"id": "A", "width": 10, "height": 10, "quantity": 1}
		],
		"panels": [{"id": "P", "width": 1000, "height": 1000, "stockQuantity": 1}]
	}`
	rec := do(t, s, http.MethodPost, "/v1/optimize", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.PlacedCount())
	require.Len(t, resp.ValidationErrors, 1)
	assert.Equal(t, model.CodeInvalidDimensions, resp.ValidationErrors[0].Code)
	assert.Equal(t, "quantity", resp.ValidationErrors[0].Field)
}

func TestOptimize_BodyTooLarge(t *testing.T) {
	s := New(engine.New(model.DefaultSettings()), Options{Strategy: model.StrategyWasteMinimize, MaxBodyBytes: 64})
	rec := do(t, s, http.MethodPost, "/v1/optimize", sheetRequest)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var e model.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, CodeRequestTooLarge, e.Code)

	rec = do(t, s, http.MethodPost, "/v1/compare", sheetRequest)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestOptimize_RequestTimeout(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{
		"pieces": [{"id": "A", "width": 100, "height": 100, "quantity": 2000}],
		"panels": [{"id": "P", "width": 1000, "height": 1000, "stockQuantity": 20}],
		"kerfWidth": 0,
		"timeoutMs": 1
	}`
	rec := do(t, s, http.MethodPost, "/v1/optimize", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp OptimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2000, resp.PlacedCount()+len(resp.UnplacedPieces))
	for _, u := range resp.UnplacedPieces {
		assert.Equal(t, model.ReasonCancelled, u.Reason, "every unit is placed unless the deadline stopped the run")
	}
}
