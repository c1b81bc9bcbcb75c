package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popconn/adapters/battery"
	"popconn/adapters/reshape"
	"popconn/adapters/rng"
	"popconn/adapters/stats/engine"
	"popconn/adapters/stats/metrics"
	"popconn/app"
	"popconn/internal"
	"popconn/internal/instrument"
	"popconn/internal/testkit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := internal.NewDiscardLogger()
	runMetrics := instrument.NewRunMetrics()

	eng := engine.NewCovarianceEngine(logger)
	tester := battery.NewPermutationTester(eng, rng.NewCounterRNG(), logger)
	tester.SetObserver(runMetrics)
	svc := app.NewConnectomeService(reshape.NewReshaper(logger), eng, tester, metrics.Lookup)

	return NewRouter(NewConnectomeHandler(svc, logger), runMetrics)
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func workedTable() TablePayload {
	table := testkit.WorkedExampleLong()
	return TablePayload{Columns: table.Columns, Records: table.Records}
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

func TestHandlers_BuildConnectome(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/connectome", gin.H{"table": workedTable()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Regions  []string    `json:"regions"`
		Method   string      `json:"method"`
		Subjects int         `json:"subjects"`
		Values   [][]float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"A", "B", "C"}, resp.Regions)
	assert.Equal(t, "pearson", resp.Method)
	assert.Equal(t, 6, resp.Subjects)
	assert.InDelta(t, testkit.WorkedPearsonAB, resp.Values[0][1], 1e-9)
	assert.InDelta(t, testkit.WorkedPearsonBC, resp.Values[2][1], 1e-9)
	assert.Equal(t, 1.0, resp.Values[1][1])
}

func TestHandlers_CompareGroups(t *testing.T) {
	router := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/compare", gin.H{
		"table":          workedTable(),
		"layout":         gin.H{"group_column": "group"},
		"metric":         metrics.NameFrobeniusNorm,
		"n_permutations": 99,
		"seed":           5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Metric      string    `json:"metric"`
		GroupLabels [2]string `json:"group_labels"`
		Seed        uint64    `json:"seed"`
		N           int       `json:"n_permutations"`
		Observed    struct {
			Values [][]float64 `json:"values"`
		} `json:"observed"`
		PValues struct {
			Values [][]float64 `json:"values"`
		} `json:"p_values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, metrics.NameFrobeniusNorm, resp.Metric)
	assert.Equal(t, [2]string{"young", "old"}, resp.GroupLabels)
	assert.Equal(t, uint64(5), resp.Seed)
	assert.Equal(t, 99, resp.N)
	assert.InDelta(t, testkit.WorkedFrobenius, resp.Observed.Values[0][0], 1e-9)
	p := resp.PValues.Values[0][0]
	assert.GreaterOrEqual(t, p, 0.01)
	assert.LessOrEqual(t, p, 1.0)

	body := scrape(t, router)
	assert.Contains(t, body, `popconn_permutation_trials_total{metric="frobenius_norm_difference"} 99`)
	assert.Contains(t, body, `popconn_permutation_runs_total{metric="frobenius_norm_difference",outcome="ok"} 1`)
	assert.Contains(t, body, `popconn_http_requests_total{code="200",route="/api/v1/compare"} 1`)
}

func TestHandlers_Errors(t *testing.T) {
	router := setupTestRouter(t)

	degenerate := testkit.WorkedExampleWide()
	for _, rec := range degenerate.Records {
		rec["B"] = 2.0
	}

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
		check      func(t *testing.T, e ErrorBody)
	}{
		{
			name:       "malformed body",
			path:       "/api/v1/connectome",
			body:       gin.H{"table": "not a table"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "missing column",
			path:       "/api/v1/connectome",
			body:       gin.H{"table": workedTable(), "layout": gin.H{"value_column": "thickness"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "SCHEMA_ERROR",
			check: func(t *testing.T, e ErrorBody) {
				assert.Equal(t, "thickness", e.Column)
			},
		},
		{
			name: "degenerate region",
			path: "/api/v1/connectome",
			body: gin.H{
				"table":  TablePayload{Columns: degenerate.Columns, Records: degenerate.Records},
				"layout": gin.H{"shape": "wide", "group_column": "group"},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "DEGENERATE_VARIANCE",
			check: func(t *testing.T, e ErrorBody) {
				assert.Equal(t, []string{"B"}, e.Regions)
			},
		},
		{
			name:       "unknown metric",
			path:       "/api/v1/compare",
			body:       gin.H{"table": workedTable(), "layout": gin.H{"group_column": "group"}, "metric": "nope"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "no group column",
			path:       "/api/v1/compare",
			body:       gin.H{"table": workedTable()},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			if tt.check != nil {
				tt.check(t, resp.Error)
			}
		})
	}
}

func TestHandlers_ListMetrics(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Default string               `json:"default"`
		Metrics []metrics.Descriptor `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, metrics.Default, resp.Default)
	assert.Len(t, resp.Metrics, len(metrics.Names()))
}

func TestHandlers_Health(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func scrape(t *testing.T, router *gin.Engine) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return strings.TrimSpace(w.Body.String())
}
