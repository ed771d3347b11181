package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/models"
	"github.com/sitelens/sitelens-engine/pkg/services"
)

// FunnelQueryRequest is the body of the funnel and funnel-timing endpoints.
type FunnelQueryRequest struct {
	Steps           []models.FunnelStep `json:"steps" validate:"required,min=1"`
	StartDate       string              `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string              `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	OnlyDirectEntry bool                `json:"onlyDirectEntry"`
}

// PortableFunnelRequest is the body of POST /api/websites/{wid}/funnel/portable.
type PortableFunnelRequest struct {
	Steps           []models.FunnelStep `json:"steps" validate:"required,min=1"`
	OnlyDirectEntry bool                `json:"onlyDirectEntry"`
	Mode            models.FunnelMode   `json:"mode" validate:"omitempty,oneof=count timing"`
}

// ShareFunnelRequest is the body of POST /api/funnel/share.
type ShareFunnelRequest struct {
	Steps           []models.FunnelStep `json:"steps" validate:"required"`
	OnlyDirectEntry bool                `json:"onlyDirectEntry"`
}

// ShareFunnelResponse carries an encoded funnel.
type ShareFunnelResponse struct {
	QueryString string `json:"query_string"`
}

// FunnelHandler exposes funnel compilation over HTTP.
type FunnelHandler struct {
	funnelService services.FunnelService
	logger        *zap.Logger
}

// NewFunnelHandler creates a new funnel handler.
func NewFunnelHandler(funnelService services.FunnelService, logger *zap.Logger) *FunnelHandler {
	return &FunnelHandler{
		funnelService: funnelService,
		logger:        logger,
	}
}

// RegisterRoutes registers the funnel handler's routes on the given mux.
func (h *FunnelHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/websites/{wid}/funnel", h.Count)
	mux.HandleFunc("POST /api/websites/{wid}/funnel-timing", h.Timing)
	mux.HandleFunc("POST /api/websites/{wid}/funnel/portable", h.Portable)
	mux.HandleFunc("POST /api/funnel/share", h.Share)
	mux.HandleFunc("GET /api/funnel/share", h.Restore)
}

// Count handles POST /api/websites/{wid}/funnel
func (h *FunnelHandler) Count(w http.ResponseWriter, r *http.Request) {
	h.compile(w, r, h.funnelService.Compile)
}

// Timing handles POST /api/websites/{wid}/funnel-timing
func (h *FunnelHandler) Timing(w http.ResponseWriter, r *http.Request) {
	h.compile(w, r, h.funnelService.CompileTiming)
}

type compileFunc func(ctx context.Context, req *services.FunnelRequest) (*services.CompiledFunnel, error)

func (h *FunnelHandler) compile(w http.ResponseWriter, r *http.Request, fn compileFunc) {
	websiteID, ok := ParseWebsiteID(w, r, h.logger)
	if !ok {
		return
	}

	var req FunnelQueryRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	// Dates were validated by decodeAndValidate; empty strings stay zero.
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)

	result, err := fn(r.Context(), &services.FunnelRequest{
		WebsiteID: websiteID,
		Funnel:    models.Funnel{Steps: req.Steps, DirectEntryOnly: req.OnlyDirectEntry},
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		respondServiceError(w, err, "Failed to compile funnel", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Portable handles POST /api/websites/{wid}/funnel/portable
func (h *FunnelHandler) Portable(w http.ResponseWriter, r *http.Request) {
	websiteID, ok := ParseWebsiteID(w, r, h.logger)
	if !ok {
		return
	}

	var req PortableFunnelRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	f := models.Funnel{Steps: req.Steps, DirectEntryOnly: req.OnlyDirectEntry}
	result, err := h.funnelService.CompilePortable(r.Context(), websiteID, f, req.Mode)
	if err != nil {
		respondServiceError(w, err, "Failed to compile funnel", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Share handles POST /api/funnel/share
func (h *FunnelHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req ShareFunnelRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	data := ShareFunnelResponse{
		QueryString: h.funnelService.Share(models.Funnel{Steps: req.Steps, DirectEntryOnly: req.OnlyDirectEntry}),
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Restore handles GET /api/funnel/share?step=...
// The request's own query string is the encoded funnel.
func (h *FunnelHandler) Restore(w http.ResponseWriter, r *http.Request) {
	f, err := h.funnelService.Restore(r.URL.RawQuery)
	if err != nil {
		respondServiceError(w, err, "Failed to restore funnel", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: f}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
