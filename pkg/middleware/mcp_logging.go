package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/logging"
	"github.com/sitelens/sitelens-engine/pkg/metrics"
)

const maxArgumentLogLength = 200

// sqlArguments hold SQL text and are logged with literals redacted.
var sqlArguments = map[string]bool{"template": true, "sql": true, "query": true}

var sensitiveKeywords = []string{"password", "secret", "token", "api_key", "apikey", "credential"}

// MCPRequestLogger returns middleware that logs each JSON-RPC call on the MCP
// endpoint and counts it in metrics.MCPCallsTotal. Template text in arguments
// is logged with literals redacted. A nil logger disables the middleware.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var call rpcCall
			if err := json.Unmarshal(body, &call); err != nil {
				logger.Debug("MCP request is not JSON-RPC", zap.Error(err))
			}
			logger.Debug("MCP request",
				zap.String("method", call.Method),
				zap.String("tool", call.Params.Name),
				zap.Any("arguments", sanitizeArguments(call.Params.Arguments)),
			)

			rec := &bodyRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)

			outcome, fields := classifyReply(rec.buf.Bytes())
			if outcome == "" {
				return
			}
			if outcome == "rpc_error" {
				// unknown methods and tools land here; keep them out of metric labels
				metrics.RecordMCPCall("", "", outcome)
			} else {
				metrics.RecordMCPCall(call.Method, call.Params.Name, outcome)
			}
			logger.Debug("MCP response", append(fields,
				zap.String("tool", call.Params.Name),
				zap.String("outcome", outcome),
				zap.Duration("duration", time.Since(start)),
			)...)
		})
	}
}

type rpcCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcReply struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyReply returns "" when the body is not a JSON-RPC reply, such as an
// empty 202 for a notification.
func classifyReply(body []byte) (string, []zap.Field) {
	var reply rpcReply
	if len(body) == 0 || json.Unmarshal(body, &reply) != nil {
		return "", nil
	}
	switch {
	case reply.Error != nil:
		return "rpc_error", []zap.Field{
			zap.Int("error_code", reply.Error.Code),
			zap.String("error_message", reply.Error.Message),
		}
	case reply.Result.IsError:
		return "tool_error", nil
	default:
		return "ok", nil
	}
}

type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// sanitizeArguments redacts secrets, reduces SQL to its shape and truncates
// long strings. Nested objects such as template variables are walked too.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		key := strings.ToLower(k)
		switch val := v.(type) {
		case string:
			switch {
			case isSensitive(key):
				out[k] = logging.RedactedText
			case sqlArguments[key]:
				out[k] = logging.SanitizeQuery(val)
			default:
				out[k] = logging.TruncateString(val, maxArgumentLogLength)
			}
		case map[string]any:
			if isSensitive(key) {
				out[k] = logging.RedactedText
			} else {
				out[k] = sanitizeArguments(val)
			}
		default:
			if isSensitive(key) {
				out[k] = logging.RedactedText
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func isSensitive(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}
