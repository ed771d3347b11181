package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional trimmed string argument.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return trimString(val)
}

// getOptionalBool extracts an optional bool argument, falling back to defaultVal.
func getOptionalBool(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	if val, ok := arguments(req)[key].(bool); ok {
		return val
	}
	return defaultVal
}

// getStringArray extracts an optional array of strings. Non-string items are skipped.
func getStringArray(req mcp.CallToolRequest, key string) []string {
	items, ok := arguments(req)[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// getObject extracts an optional object argument.
func getObject(req mcp.CallToolRequest, key string) map[string]any {
	obj, _ := arguments(req)[key].(map[string]any)
	return obj
}

// decodeArgument re-decodes a raw argument into dst using its json tags.
func decodeArgument(req mcp.CallToolRequest, key string, dst any) error {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return fmt.Errorf("missing required argument %q", key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}
