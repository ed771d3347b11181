package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/config"
)

func newHealthMux(cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	NewHealthHandler(cfg, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestHealthHandler_Health(t *testing.T) {
	mux := newHealthMux(&config.Config{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{
		Version: "1.4.0",
		Env:     "staging",
		Warehouse: config.WarehouseConfig{
			EventsTable:         "p.d.events",
			SessionsTable:       "p.d.sessions",
			LegacySessionsTable: "p.v.session",
			EventDataTable:      "p.d.event_data",
		},
		MCP: config.MCPConfig{Enabled: true},
	}

	rec := httptest.NewRecorder()
	newHealthMux(cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sitelens-engine", resp.Service)
	assert.Equal(t, "1.4.0", resp.Version)
	assert.Equal(t, "staging", resp.Environment)
	assert.Equal(t, runtime.Version(), resp.GoVersion)
	assert.NotEmpty(t, resp.Hostname)
	assert.True(t, resp.MCPEnabled)
	assert.Equal(t, map[string]string{
		"events":          "p.d.events",
		"sessions":        "p.d.sessions",
		"legacy_sessions": "p.v.session",
		"event_data":      "p.d.event_data",
	}, resp.Tables)
}
