package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/config"
)

// PingResponse describes the running engine.
type PingResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	GoVersion   string            `json:"go_version"`
	Hostname    string            `json:"hostname"`
	Environment string            `json:"environment"`
	Tables      map[string]string `json:"tables"`
	MCPEnabled  bool              `json:"mcp_enabled"`
}

// HealthHandler serves liveness and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health reports liveness. Rendering and compiling need no backing store, so a
// process that answers is healthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping reports version, environment and the warehouse tables queries are generated against.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		h.logger.Warn("Hostname lookup failed", zap.Error(err))
		hostname = "unknown"
	}

	wh := h.cfg.Warehouse
	resp := PingResponse{
		Status:      "ok",
		Service:     "sitelens-engine",
		Version:     h.cfg.Version,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Tables: map[string]string{
			"events":          wh.EventsTable,
			"sessions":        wh.SessionsTable,
			"legacy_sessions": wh.LegacySessionsTable,
			"event_data":      wh.EventDataTable,
		},
		MCPEnabled: h.cfg.MCP.Enabled,
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
