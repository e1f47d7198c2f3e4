package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/citypulse/internal/profile"
	"github.com/hrygo/citypulse/search"
	"github.com/hrygo/citypulse/search/executor"
	"github.com/hrygo/citypulse/search/metrics"
	"github.com/hrygo/citypulse/search/provider"
)

func testProfile() *profile.Profile {
	return &profile.Profile{Mode: "demo", Addr: "127.0.0.1", Port: 8080, Version: "0.1.0"}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	catalog := provider.NewMockCatalog()
	exec := executor.New(executor.Config{Places: catalog, Events: catalog})
	engine := search.NewEngine(search.Config{Executor: exec})
	s, err := NewServer(context.Background(), testProfile(), engine, nil)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"query": "cocktail bars near me",
		"userContext": {
			"timezone": "America/New_York",
			"nowISO": "2025-06-10T23:00:00Z",
			"currentLocation": {"latitude": 40.7128, "longitude": -74.0060}
		}
	}`
	rec := doRequest(s, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	require.NotEmpty(t, resp.Meta.RequestID)
	require.Contains(t, resp.Meta.UsedProviders, "places")
}

func TestHandleSearch_MalformedJSON(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/search", `{"query": "bars",`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Results)
	require.NotNil(t, resp.Results)
	require.Equal(t, search.DefaultLimit, resp.Pagination.Limit)
}

func TestHandleSearch_NoLocation(t *testing.T) {
	s := newTestServer(t)

	body := `{"query": "bars", "userContext": {"timezone": "America/New_York", "nowISO": "2025-06-10T23:00:00Z"}}`
	rec := doRequest(s, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Results)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var h search.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.Equal(t, "healthy", h.Status)
	require.Equal(t, "closed", h.Components["provider_places"])
}

func TestHandleHealth_Down(t *testing.T) {
	engine := search.NewEngine(search.Config{})
	s, err := NewServer(context.Background(), testProfile(), engine, nil)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var h search.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.Equal(t, "down", h.Status)
}

func TestHandleDiagnostics(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "health")
	require.Contains(t, body, "diagnostics")

	var version string
	require.NoError(t, json.Unmarshal(body["version"], &version))
	require.Equal(t, "0.1.0", version)

	var mode string
	require.NoError(t, json.Unmarshal(body["mode"], &mode))
	require.Equal(t, "demo", mode)
}

func TestHandleListFlags(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/flags", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.True(t, snapshot["SMART_FALLBACKS"])
	require.False(t, snapshot["DISTRIBUTED_CACHE"])
}

func TestHandleToggleFlag(t *testing.T) {
	s := newTestServer(t)

	// Lowercase name is accepted.
	rec := doRequest(s, http.MethodPut, "/api/v1/flags/smart_fallbacks?enabled=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/flags", "")
	var snapshot map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.False(t, snapshot["SMART_FALLBACKS"])

	rec = doRequest(s, http.MethodPut, "/api/v1/flags/smart_fallbacks?enabled=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleToggleFlag_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPut, "/api/v1/flags/no_such_flag?enabled=true", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/flags", "")
	var snapshot map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.NotContains(t, snapshot, "NO_SUCH_FLAG")
}

func TestMetricsEndpoint(t *testing.T) {
	catalog := provider.NewMockCatalog()
	exec := executor.New(executor.Config{Places: catalog, Events: catalog})
	engine := search.NewEngine(search.Config{Executor: exec})
	exporter := metrics.NewPrometheusExporter(metrics.Config{})
	exporter.RecordSearch("both", "api", 0, 5, false, true)

	s, err := NewServer(context.Background(), testProfile(), engine, exporter)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "citypulse_search_requests_total")
}

func TestMetricsEndpoint_Absent(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
