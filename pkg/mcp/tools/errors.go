package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a successful tool result so the client sees the
// error details rather than a bare protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the client can act on (bad arguments, a funnel
// with too few steps). System failures should still return Go errors.
//
// Example:
//
//	if websiteID == "" {
//	    return NewErrorResult("invalid_parameters", "website_id cannot be empty"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "invalid_parameters",
//	    "steps[1].kind is invalid",
//	    map[string]any{"allowed": []string{"path", "event"}},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewDomainErrorResult converts a caller error from the services into an error result.
// Returns nil if err is not a caller error; the tool should return it as a Go error instead.
func NewDomainErrorResult(err error) *mcp.CallToolResult {
	code, ok := apperrors.Code(err)
	if !ok {
		return nil
	}
	return NewErrorResult(code, err.Error())
}
