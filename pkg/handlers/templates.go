package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/jsonutil"
	"github.com/sitelens/sitelens-engine/pkg/models"
	"github.com/sitelens/sitelens-engine/pkg/services"
	"github.com/sitelens/sitelens-engine/pkg/validation"
)

// RenderTemplateRequest is the body of POST /api/sql/render.
type RenderTemplateRequest struct {
	Template string          `json:"template" validate:"required"`
	Context  TemplateContext `json:"context"`
}

// TemplateContext is the filter context of a render request.
type TemplateContext struct {
	EntityID     string             `json:"entity_id"`
	Domain       string             `json:"domain"`
	Paths        []string           `json:"paths"`
	PathOperator string             `json:"path_operator" validate:"omitempty,oneof=equals starts-with"`
	From         string             `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To           string             `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Variables    jsonutil.StringMap `json:"variables"`
}

// toFilterContext converts the request context. Dates were validated beforehand.
func (c TemplateContext) toFilterContext() models.FilterContext {
	op := models.PathOperator(c.PathOperator)
	if op == "" {
		op = models.PathEquals
	}
	fc := models.FilterContext{
		EntityID:  c.EntityID,
		Domain:    c.Domain,
		Path:      models.PathFilter{Paths: c.Paths, Operator: op},
		Variables: c.Variables,
	}
	if t, err := time.Parse(time.DateOnly, c.From); err == nil {
		fc.From = &t
	}
	if t, err := time.Parse(time.DateOnly, c.To); err == nil {
		fc.To = &t
	}
	return fc
}

// TemplateTextRequest carries a bare template.
type TemplateTextRequest struct {
	Template string `json:"template" validate:"required"`
}

// RestoreTemplateRequest is the body of POST /api/sql/restore.
type RestoreTemplateRequest struct {
	SQL    string            `json:"sql" validate:"required"`
	Tokens map[string]string `json:"tokens" validate:"dive,keys,required,endkeys"`
}

// SanitizeTemplateResponse is returned by POST /api/sql/sanitize.
type SanitizeTemplateResponse struct {
	Sanitized string            `json:"sanitized"`
	Tokens    map[string]string `json:"tokens"`
}

// RestoreTemplateResponse is returned by POST /api/sql/restore.
type RestoreTemplateResponse struct {
	Template string `json:"template"`
}

// TemplatesHandler exposes the template engine over HTTP.
type TemplatesHandler struct {
	templateService services.TemplateService
	logger          *zap.Logger
}

// NewTemplatesHandler creates a new templates handler.
func NewTemplatesHandler(templateService services.TemplateService, logger *zap.Logger) *TemplatesHandler {
	return &TemplatesHandler{
		templateService: templateService,
		logger:          logger,
	}
}

// RegisterRoutes registers the templates handler's routes on the given mux.
func (h *TemplatesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sql/render", h.Render)
	mux.HandleFunc("POST /api/sql/sanitize", h.Sanitize)
	mux.HandleFunc("POST /api/sql/restore", h.Restore)
	mux.HandleFunc("POST /api/sql/validate", h.Validate)
}

// Render handles POST /api/sql/render
func (h *TemplatesHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderTemplateRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.templateService.Render(r.Context(), &services.RenderRequest{
		Template: req.Template,
		Context:  req.Context.toFilterContext(),
	})
	if err != nil {
		respondServiceError(w, err, "Failed to render template", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Sanitize handles POST /api/sql/sanitize
func (h *TemplatesHandler) Sanitize(w http.ResponseWriter, r *http.Request) {
	var req TemplateTextRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	res := h.templateService.Sanitize(req.Template)
	data := SanitizeTemplateResponse{Sanitized: res.Sanitized, Tokens: res.Tokens}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Restore handles POST /api/sql/restore
func (h *TemplatesHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreTemplateRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	data := RestoreTemplateResponse{Template: h.templateService.Restore(req.SQL, req.Tokens)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Validate handles POST /api/sql/validate
func (h *TemplatesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req TemplateTextRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	data := h.templateService.Validate(req.Template)
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
// On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}

	if err := validation.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			if err := ValidationErrorResponse(w, verr); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return false
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// respondServiceError writes a 400 for caller errors and logs and hides anything else.
func respondServiceError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger) {
	status, code, ok := classifyError(err)
	message := err.Error()
	if !ok {
		logger.Error(fallback, zap.Error(err))
		message = fallback
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
