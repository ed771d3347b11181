package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/models"
	"github.com/sitelens/sitelens-engine/pkg/services"
	"github.com/sitelens/sitelens-engine/pkg/validation"
)

// FunnelToolDeps contains dependencies for the funnel tools.
type FunnelToolDeps struct {
	FunnelService services.FunnelService
	Logger        *zap.Logger
}

// funnelArgs mirrors the funnel tool arguments for validation.
type funnelArgs struct {
	WebsiteID string              `json:"website_id" validate:"required,uuid"`
	Steps     []models.FunnelStep `json:"steps" validate:"required,min=1"`
	StartDate string              `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string              `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// stepItemSchema describes one element of the steps argument.
var stepItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind":       map[string]any{"type": "string", "enum": []string{"path", "event"}, "description": "Step kind"},
		"value":      map[string]any{"type": "string", "description": "Url path or event name. '*' matches any run of characters."},
		"eventScope": map[string]any{"type": "string", "enum": []string{"anywhere", "current-path"}, "description": "Where an event step may fire"},
		"params": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":      map[string]any{"type": "string"},
					"value":    map[string]any{"type": "string"},
					"operator": map[string]any{"type": "string", "enum": []string{"equals", "contains"}},
				},
				"required": []string{"key"},
			},
			"description": "Event parameter predicates",
		},
	},
	"required": []string{"kind", "value"},
}

// RegisterFunnelTools registers the funnel compiler tools.
func RegisterFunnelTools(s *server.MCPServer, deps *FunnelToolDeps) {
	registerCompileFunnelTool(s, deps, "compile_funnel", models.FunnelModeCount,
		"Compile an ordered funnel into a BigQuery query returning the number of sessions reaching each step. "+
			"Each step must happen strictly after the previous one within the same session.")
	registerCompileFunnelTool(s, deps, "compile_funnel_timing", models.FunnelModeTiming,
		"Compile a funnel into a BigQuery query returning the average and median seconds between consecutive page steps, "+
			"plus a total row (from_step -1) spanning the first to the last page step. Event steps are ignored.")
}

func registerCompileFunnelTool(s *server.MCPServer, deps *FunnelToolDeps, name string, mode models.FunnelMode, description string) {
	tool := mcp.NewTool(
		name,
		mcp.WithDescription(description),
		mcp.WithString(
			"website_id",
			mcp.Required(),
			mcp.Description("Website UUID"),
		),
		mcp.WithArray(
			"steps",
			mcp.Required(),
			mcp.Description("Ordered funnel steps. At least two usable steps are required."),
			mcp.Items(stepItemSchema),
		),
		mcp.WithString(
			"start_date",
			mcp.Description("Window start date (YYYY-MM-DD). Defaults to the configured lookback."),
		),
		mcp.WithString(
			"end_date",
			mcp.Description("Window end date (YYYY-MM-DD). Defaults to today."),
		),
		mcp.WithBoolean(
			"only_direct_entry",
			mcp.Description("Require each step to directly follow the previous one in the session's event stream"),
		),
		mcp.WithBoolean(
			"portable",
			mcp.Description("Inline the website id and leave the date window as an optional [[AND {{created_at}}]] filter for BI tools"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		websiteID, err := req.RequireString("website_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		args := funnelArgs{
			WebsiteID: trimString(websiteID),
			StartDate: getOptionalString(req, "start_date"),
			EndDate:   getOptionalString(req, "end_date"),
		}
		if err := decodeArgument(req, "steps", &args.Steps); err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		if err := validation.Struct(args); err != nil {
			return validationErrorResult(err), nil
		}

		wid := uuid.MustParse(args.WebsiteID)
		f := models.Funnel{
			Steps:           args.Steps,
			DirectEntryOnly: getOptionalBool(req, "only_direct_entry", false),
		}

		var result *services.CompiledFunnel
		if getOptionalBool(req, "portable", false) {
			result, err = deps.FunnelService.CompilePortable(ctx, wid, f, mode)
		} else {
			// Dates were validated above; empty strings stay zero.
			start, _ := time.Parse(time.DateOnly, args.StartDate)
			end, _ := time.Parse(time.DateOnly, args.EndDate)
			freq := &services.FunnelRequest{WebsiteID: wid, Funnel: f, StartDate: start, EndDate: end}
			if mode == models.FunnelModeTiming {
				result, err = deps.FunnelService.CompileTiming(ctx, freq)
			} else {
				result, err = deps.FunnelService.Compile(ctx, freq)
			}
		}
		if err != nil {
			if errResult := NewDomainErrorResult(err); errResult != nil {
				deps.Logger.Debug(name+" rejected input", zap.Error(err))
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to compile funnel: %w", err)
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
