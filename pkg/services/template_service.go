package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/logging"
	"github.com/sitelens/sitelens-engine/pkg/metrics"
	"github.com/sitelens/sitelens-engine/pkg/models"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

// TemplateService renders SQL templates against a filter context.
type TemplateService interface {
	// Render substitutes every directive it can resolve. Directives that stay in
	// the output are listed in the result rather than treated as errors.
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)

	Sanitize(template string) sqltemplate.SanitizeResult
	Restore(sql string, tokens map[string]string) string

	// Validate checks that the template is a single statement and lists its placeholders.
	Validate(template string) *TemplateValidation
}

// RenderRequest contains a template and the filter context to render it with.
type RenderRequest struct {
	Template string
	Context  models.FilterContext
}

// RenderResult is a rendered template.
type RenderResult struct {
	SQL        string   `json:"sql"`
	Unresolved []string `json:"unresolved"`
	Warnings   []string `json:"warnings,omitempty"`
}

// TemplateValidation describes a template without rendering it.
type TemplateValidation struct {
	Valid              bool     `json:"valid"`
	Message            string   `json:"message,omitempty"`
	NormalizedTemplate string   `json:"normalized_template,omitempty"`
	Placeholders       []string `json:"placeholders"`
	CustomVariables    []string `json:"custom_variables"`
}

// TemplateServiceConfig controls rendering policy.
type TemplateServiceConfig struct {
	// RejectSuspiciousValues fails Render when a variable value looks like SQL injection.
	RejectSuspiciousValues bool
}

type templateService struct {
	engine *sqltemplate.Engine
	cfg    TemplateServiceConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewTemplateService creates a template service. A nil engine uses the defaults.
func NewTemplateService(engine *sqltemplate.Engine, cfg TemplateServiceConfig, logger *zap.Logger) TemplateService {
	if engine == nil {
		engine = sqltemplate.DefaultEngine()
	}
	return &templateService{
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Named("templates"),
	}
}

var _ TemplateService = (*templateService)(nil)

func (s *templateService) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	fc := req.Context
	if fc.Now.IsZero() {
		fc.Now = s.now().UTC()
	}
	if fc.From != nil && fc.To != nil && fc.From.After(*fc.To) {
		return nil, fmt.Errorf("%w: %s > %s", apperrors.ErrInvalidDateRange,
			fc.From.Format(time.DateOnly), fc.To.Format(time.DateOnly))
	}
	if err := s.engine.ValidatePathFilter(req.Template, fc); err != nil {
		return nil, err
	}
	if err := s.screenVariables(fc.Variables); err != nil {
		return nil, err
	}

	start := time.Now()
	rendered := s.engine.Apply(req.Template, fc)
	unresolved := sqltemplate.FindUnresolved(rendered)
	metrics.RecordRender(len(unresolved), time.Since(start))

	result := &RenderResult{
		SQL:        rendered,
		Unresolved: unresolved,
	}
	if result.Unresolved == nil {
		result.Unresolved = []string{}
	}
	for _, name := range sqltemplate.FindParametersInStringLiterals(req.Template) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("placeholder {{%s}} is inside a longer string literal and renders as a nested literal", name))
	}

	s.logger.Debug("Rendered SQL template",
		zap.String("sql", logging.SanitizeQuery(rendered)),
		zap.Int("unresolved", len(unresolved)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// screenVariables runs injection screening over custom variable values.
// Values are always escaped, so a flagged value is only an error under the reject policy.
func (s *templateService) screenVariables(vars map[string]string) error {
	for _, res := range sqltemplate.CheckAllVariables(vars) {
		metrics.RecordSuspicious(s.cfg.RejectSuspiciousValues)
		s.logger.Warn("Suspicious template variable value",
			zap.String("variable", res.Name),
			zap.String("fingerprint", res.Fingerprint),
			zap.String("value", logging.SanitizeValue(res.Value)),
			zap.Bool("rejected", s.cfg.RejectSuspiciousValues),
		)
		if s.cfg.RejectSuspiciousValues {
			return fmt.Errorf("%w: variable %q", apperrors.ErrSuspiciousValue, res.Name)
		}
	}
	return nil
}

func (s *templateService) Sanitize(template string) sqltemplate.SanitizeResult {
	return sqltemplate.Sanitize(template)
}

func (s *templateService) Restore(sql string, tokens map[string]string) string {
	return sqltemplate.Restore(sql, tokens)
}

func (s *templateService) Validate(template string) *TemplateValidation {
	v := &TemplateValidation{
		Placeholders:    sqltemplate.ExtractParameters(template),
		CustomVariables: s.engine.CustomVariables(template),
	}
	if v.Placeholders == nil {
		v.Placeholders = []string{}
	}
	if v.CustomVariables == nil {
		v.CustomVariables = []string{}
	}

	res := sqltemplate.ValidateTemplate(template)
	if res.Error != nil {
		v.Message = res.Error.Error()
		return v
	}
	v.Valid = true
	v.NormalizedTemplate = res.NormalizedSQL
	return v
}
