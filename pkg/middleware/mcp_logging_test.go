package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sitelens/sitelens-engine/pkg/logging"
	"github.com/sitelens/sitelens-engine/pkg/metrics"
)

func replyWith(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func serveMCP(t *testing.T, next http.Handler, reqBody string) (*observer.ObservedLogs, *httptest.ResponseRecorder) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := httptest.NewRecorder()
	MCPRequestLogger(zap.New(core))(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(reqBody)))
	return logs, rec
}

func toolCall(tool, args string) string {
	return `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + tool + `","arguments":` + args + `}}`
}

func TestMCPRequestLogger_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		tool      string
		reply     string
		outcome   string
		wantField map[string]any
	}{
		{
			name:    "success",
			tool:    "compile_funnel",
			reply:   `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`,
			outcome: "ok",
		},
		{
			name:    "tool error result",
			tool:    "compile_funnel_timing",
			reply:   `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[]}}`,
			outcome: "tool_error",
		},
		{
			name:      "rpc error",
			tool:      "render_sql_template",
			reply:     `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`,
			outcome:   "rpc_error",
			wantField: map[string]any{"error_code": int64(-32602), "error_message": "invalid params"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, tool := "tools/call", tt.tool
			if tt.outcome == "rpc_error" {
				method, tool = "", ""
			}
			counter := metrics.MCPCallsTotal.WithLabelValues(method, tool, tt.outcome)
			before := testutil.ToFloat64(counter)

			logs, _ := serveMCP(t, replyWith(http.StatusOK, tt.reply), toolCall(tt.tool, `{}`))

			require.Equal(t, 2, logs.Len())
			req := logs.All()[0].ContextMap()
			assert.Equal(t, "tools/call", req["method"])
			assert.Equal(t, tt.tool, req["tool"])

			resp := logs.All()[1]
			assert.Equal(t, "MCP response", resp.Message)
			fields := resp.ContextMap()
			assert.Equal(t, tt.outcome, fields["outcome"])
			assert.Contains(t, fields, "duration")
			for k, v := range tt.wantField {
				assert.Equal(t, v, fields[k], k)
			}
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestMCPRequestLogger_RedactsArguments(t *testing.T) {
	args := `{"template":"SELECT 1 FROM e WHERE path = '/pricing' AND {{date_range}}","api_key":"abc","website_id":"w1"}`
	logs, _ := serveMCP(t, replyWith(http.StatusOK, `{"result":{}}`), toolCall("render_sql_template", args))

	logged, ok := logs.All()[0].ContextMap()["arguments"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1 FROM e WHERE path = '?' AND {{date_range}}", logged["template"])
	assert.Equal(t, logging.RedactedText, logged["api_key"])
	assert.Equal(t, "w1", logged["website_id"])
}

func TestMCPRequestLogger_NonRPCTraffic(t *testing.T) {
	t.Run("empty reply logs only the request", func(t *testing.T) {
		logs, rec := serveMCP(t, replyWith(http.StatusAccepted, ""), `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("malformed request still reaches the handler", func(t *testing.T) {
		_, rec := serveMCP(t, replyWith(http.StatusBadRequest, `not json`), `{broken`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not json", rec.Body.String())
	})

	t.Run("nil logger passes through", func(t *testing.T) {
		next := replyWith(http.StatusTeapot, "")
		rec := httptest.NewRecorder()
		MCPRequestLogger(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}

func TestSanitizeArguments(t *testing.T) {
	long := strings.Repeat("p", 250)
	got := sanitizeArguments(map[string]any{
		"AccessToken":   "xyz",
		"client_secret": map[string]any{"a": "b"},
		"sql":           "SELECT 'x'",
		"label":         "'kept'",
		"paths":         []any{"/a", "/b"},
		"portable":      true,
		"step_label":    long,
		"variables": map[string]any{
			"password": "hunter2",
			"campaign": "spring",
		},
	})

	assert.Equal(t, logging.RedactedText, got["AccessToken"])
	assert.Equal(t, logging.RedactedText, got["client_secret"])
	assert.Equal(t, "SELECT '?'", got["sql"])
	assert.Equal(t, "'kept'", got["label"])
	assert.Equal(t, []any{"/a", "/b"}, got["paths"])
	assert.Equal(t, true, got["portable"])
	assert.Equal(t, long[:maxArgumentLogLength]+"...", got["step_label"])
	assert.Equal(t, map[string]any{"password": logging.RedactedText, "campaign": "spring"}, got["variables"])

	assert.Nil(t, sanitizeArguments(nil))
}
