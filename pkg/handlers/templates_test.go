package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/services"
)

func newTemplatesMux(cfg services.TemplateServiceConfig) *http.ServeMux {
	svc := services.NewTemplateService(nil, cfg, zap.NewNop())
	mux := http.NewServeMux()
	NewTemplatesHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps ApiResponse.Data into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestTemplatesHandler_Render(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{})

	rec := postJSON(t, mux, "/api/sql/render", `{
		"template": "SELECT * FROM e WHERE e.website_id = {{entity_id}} AND e.url_path = [[ {{path}} -- ]] '/' AND n > {{min_views}} AND x = {{unset}}",
		"context": {
			"entity_id": "abc'1",
			"paths": ["/soknad"],
			"path_operator": "starts-with",
			"variables": {"min_views": 10}
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result services.RenderResult
	decodeData(t, rec, &result)
	assert.Equal(t, "SELECT * FROM e WHERE e.website_id = 'abc''1' AND e.url_path LIKE '/soknad%' AND n > 10 AND x = {{unset}}", result.SQL)
	assert.Equal(t, []string{"{{unset}}"}, result.Unresolved)
}

func TestTemplatesHandler_Render_Validation(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{`, "invalid_request"},
		{"missing template", `{"context": {}}`, "validation_error"},
		{"bad date", `{"template": "SELECT 1", "context": {"from": "01.02.2026"}}`, "validation_error"},
		{"bad operator", `{"template": "SELECT 1", "context": {"path_operator": "regex"}}`, "validation_error"},
		{"reversed dates", `{"template": "SELECT 1", "context": {"from": "2026-02-01", "to": "2026-01-01"}}`, "invalid_date_range"},
		{"multi path conditional", `{"template": "SELECT 1 [[AND {{path}}]]", "context": {"paths": ["/a", "/b"], "path_operator": "starts-with"}}`, "multi_path_conditional"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, mux, "/api/sql/render", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["error"])
		})
	}
}

func TestTemplatesHandler_Render_RejectsSuspiciousValue(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{RejectSuspiciousValues: true})

	rec := postJSON(t, mux, "/api/sql/render", `{"template": "SELECT {{q}}", "context": {"variables": {"q": "1' OR '1'='1"}}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "suspicious_value", decodeError(t, rec)["error"])
}

func TestTemplatesHandler_SanitizeRestore(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{})
	template := "SELECT * FROM t WHERE id = {{entity_id}} [[AND {{created_at}}]]"

	body, _ := json.Marshal(TemplateTextRequest{Template: template})
	rec := postJSON(t, mux, "/api/sql/sanitize", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var sanitized SanitizeTemplateResponse
	decodeData(t, rec, &sanitized)
	assert.NotContains(t, sanitized.Sanitized, "{{")
	assert.Len(t, sanitized.Tokens, 2)

	body, _ = json.Marshal(RestoreTemplateRequest{SQL: sanitized.Sanitized, Tokens: sanitized.Tokens})
	rec = postJSON(t, mux, "/api/sql/restore", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var restored RestoreTemplateResponse
	decodeData(t, rec, &restored)
	assert.Equal(t, template, restored.Template)
}

func TestTemplatesHandler_RestoreRejectsEmptyToken(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{})

	rec := postJSON(t, mux, "/api/sql/restore", `{"sql": "SELECT 1", "tokens": {"": "X"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec)["error"])
}

func TestTemplatesHandler_Validate(t *testing.T) {
	mux := newTemplatesMux(services.TemplateServiceConfig{})

	rec := postJSON(t, mux, "/api/sql/validate", `{"template": "SELECT 1; SELECT 2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var v services.TemplateValidation
	decodeData(t, rec, &v)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Message, "multiple SQL statements")
}
