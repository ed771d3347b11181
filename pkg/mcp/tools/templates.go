package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/jsonutil"
	"github.com/sitelens/sitelens-engine/pkg/models"
	"github.com/sitelens/sitelens-engine/pkg/services"
	"github.com/sitelens/sitelens-engine/pkg/validation"
)

// TemplateToolDeps contains dependencies for the template tools.
type TemplateToolDeps struct {
	TemplateService services.TemplateService
	Logger          *zap.Logger
}

// renderArgs mirrors the render_sql_template arguments for validation.
type renderArgs struct {
	Template     string `json:"template" validate:"required"`
	PathOperator string `json:"path_operator" validate:"omitempty,oneof=equals starts-with"`
	From         string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To           string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// RegisterTemplateTools registers the SQL template tools.
func RegisterTemplateTools(s *server.MCPServer, deps *TemplateToolDeps) {
	registerRenderTemplateTool(s, deps)
}

func registerRenderTemplateTool(s *server.MCPServer, deps *TemplateToolDeps) {
	tool := mcp.NewTool(
		"render_sql_template",
		mcp.WithDescription(
			"Render a SQL template against a dashboard filter context. "+
				"Supports {{entity_id}}, {{domain}}, {{date_range}}, {{start_date}}, {{end_date}}, "+
				"{{url_path}}, [[AND {{field}}]] optional blocks and custom {{name}} variables. "+
				"Directives that cannot be resolved stay in the output and are listed under 'unresolved'.",
		),
		mcp.WithString(
			"template",
			mcp.Required(),
			mcp.Description("The SQL template text"),
		),
		mcp.WithString(
			"entity_id",
			mcp.Description("Selected website id. Omit when no website is selected."),
		),
		mcp.WithString(
			"domain",
			mcp.Description("Selected website domain"),
		),
		mcp.WithArray(
			"paths",
			mcp.Description("Selected url paths for the path filter"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString(
			"path_operator",
			mcp.Description("How paths match: 'equals' (default) or 'starts-with'"),
		),
		mcp.WithString(
			"from",
			mcp.Description("Window start date (YYYY-MM-DD)"),
		),
		mcp.WithString(
			"to",
			mcp.Description("Window end date (YYYY-MM-DD)"),
		),
		mcp.WithObject(
			"variables",
			mcp.Description("Values for custom {{name}} placeholders"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		template, err := req.RequireString("template")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		args := renderArgs{
			Template:     template,
			PathOperator: getOptionalString(req, "path_operator"),
			From:         getOptionalString(req, "from"),
			To:           getOptionalString(req, "to"),
		}
		if err := validation.Struct(args); err != nil {
			return validationErrorResult(err), nil
		}

		fc := models.FilterContext{
			EntityID:  getOptionalString(req, "entity_id"),
			Domain:    getOptionalString(req, "domain"),
			Path:      models.PathFilter{Paths: getStringArray(req, "paths"), Operator: models.PathEquals},
			Variables: jsonutil.FromAny(getObject(req, "variables")),
		}
		if args.PathOperator != "" {
			fc.Path.Operator = models.PathOperator(args.PathOperator)
		}
		if t, err := time.Parse(time.DateOnly, args.From); err == nil {
			fc.From = &t
		}
		if t, err := time.Parse(time.DateOnly, args.To); err == nil {
			fc.To = &t
		}

		result, err := deps.TemplateService.Render(ctx, &services.RenderRequest{Template: template, Context: fc})
		if err != nil {
			if errResult := NewDomainErrorResult(err); errResult != nil {
				deps.Logger.Debug("render_sql_template rejected input", zap.Error(err))
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to render template: %w", err)
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// validationErrorResult converts a validation failure into an error result listing each field.
func validationErrorResult(err error) *mcp.CallToolResult {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return NewErrorResultWithDetails("invalid_parameters", verr.Error(), verr.Fields)
	}
	return NewErrorResult("invalid_parameters", err.Error())
}
