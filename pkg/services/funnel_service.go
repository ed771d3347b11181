package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/funnel"
	"github.com/sitelens/sitelens-engine/pkg/logging"
	"github.com/sitelens/sitelens-engine/pkg/metrics"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

// FunnelService compiles funnels into warehouse queries.
type FunnelService interface {
	// Compile returns the step count query with its bound parameters.
	Compile(ctx context.Context, req *FunnelRequest) (*CompiledFunnel, error)
	// CompileTiming returns the step timing query with its bound parameters.
	CompileTiming(ctx context.Context, req *FunnelRequest) (*CompiledFunnel, error)
	// CompilePortable returns a query for BI tools with the website inlined and
	// the date window left as an optional created_at filter.
	CompilePortable(ctx context.Context, websiteID uuid.UUID, f models.Funnel, mode models.FunnelMode) (*CompiledFunnel, error)

	// Share encodes a funnel as a query string. Restore decodes it.
	Share(f models.Funnel) string
	Restore(state string) (models.Funnel, error)
}

// FunnelRequest contains a funnel and the window it is evaluated over.
// Zero dates fall back to the configured lookback ending today.
type FunnelRequest struct {
	WebsiteID uuid.UUID
	Funnel    models.Funnel
	StartDate time.Time
	EndDate   time.Time
}

// CompiledFunnel is a compiled query plus the values for its named parameters.
type CompiledFunnel struct {
	Query      string            `json:"query"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Steps      []string          `json:"steps"`
}

const parameterTimeLayout = "2006-01-02T15:04:05Z"

type funnelService struct {
	compiler *funnel.Compiler
	lookback time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewFunnelService creates a funnel service. A nil compiler uses the default tables.
func NewFunnelService(compiler *funnel.Compiler, lookback time.Duration, logger *zap.Logger) FunnelService {
	if compiler == nil {
		compiler = funnel.NewCompiler(funnel.Options{})
	}
	return &funnelService{
		compiler: compiler,
		lookback: lookback,
		now:      time.Now,
		logger:   logger.Named("funnels"),
	}
}

var _ FunnelService = (*funnelService)(nil)

func (s *funnelService) Compile(ctx context.Context, req *FunnelRequest) (*CompiledFunnel, error) {
	return s.compileBound(req, models.FunnelModeCount)
}

func (s *funnelService) CompileTiming(ctx context.Context, req *FunnelRequest) (*CompiledFunnel, error) {
	return s.compileBound(req, models.FunnelModeTiming)
}

func (s *funnelService) compileBound(req *FunnelRequest, mode models.FunnelMode) (*CompiledFunnel, error) {
	start, end, err := s.window(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	steps := funnel.Normalize(req.Funnel.Steps)
	if err := checkSteps(steps, mode); err != nil {
		metrics.RecordFunnelCompile(string(mode), "invalid", 0)
		return nil, err
	}

	var query string
	if mode == models.FunnelModeTiming {
		query, err = s.compiler.TimingQuery(steps, req.Funnel.DirectEntryOnly)
	} else {
		query, err = s.compiler.CountQuery(steps, req.Funnel.DirectEntryOnly)
	}
	if err != nil {
		metrics.RecordFunnelCompile(string(mode), "error", 0)
		return nil, fmt.Errorf("failed to compile %s query: %w", mode, err)
	}
	metrics.RecordFunnelCompile(string(mode), "ok", len(steps))

	s.logger.Debug("Compiled funnel",
		zap.String("mode", string(mode)),
		zap.String("website_id", req.WebsiteID.String()),
		zap.Int("steps", len(steps)),
		zap.Bool("direct_entry_only", req.Funnel.DirectEntryOnly),
		zap.String("query", logging.SanitizeQuery(query)),
	)

	return &CompiledFunnel{
		Query: query,
		Parameters: map[string]string{
			funnel.ParamWebsiteID: req.WebsiteID.String(),
			funnel.ParamStartDate: start.Format(parameterTimeLayout),
			funnel.ParamEndDate:   end.Format(parameterTimeLayout),
		},
		Steps: labels(steps, mode),
	}, nil
}

func (s *funnelService) CompilePortable(ctx context.Context, websiteID uuid.UUID, f models.Funnel, mode models.FunnelMode) (*CompiledFunnel, error) {
	if mode == "" {
		mode = models.FunnelModeCount
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown funnel mode %q", mode)
	}

	steps := funnel.Normalize(f.Steps)
	if err := checkSteps(steps, mode); err != nil {
		metrics.RecordFunnelCompile("portable_"+string(mode), "invalid", 0)
		return nil, err
	}

	var query string
	var err error
	if mode == models.FunnelModeTiming {
		query, err = s.compiler.PortableTimingQuery(steps, f.DirectEntryOnly, websiteID.String())
	} else {
		query, err = s.compiler.PortableCountQuery(steps, f.DirectEntryOnly, websiteID.String())
	}
	if err != nil {
		metrics.RecordFunnelCompile("portable_"+string(mode), "error", 0)
		return nil, fmt.Errorf("failed to compile portable %s query: %w", mode, err)
	}
	metrics.RecordFunnelCompile("portable_"+string(mode), "ok", len(steps))

	return &CompiledFunnel{Query: query, Steps: labels(steps, mode)}, nil
}

func (s *funnelService) Share(f models.Funnel) string {
	return funnel.EncodeShareState(f)
}

func (s *funnelService) Restore(state string) (models.Funnel, error) {
	f, err := funnel.DecodeShareState(state)
	if err != nil {
		s.logger.Debug("Rejected funnel share state", zap.Error(err))
		return models.Funnel{}, err
	}
	return f, nil
}

// window resolves the date window to whole days in UTC.
func (s *funnelService) window(start, end time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-s.lookback)
	}
	start = startOfDay(start)
	end = startOfDay(end).Add(24*time.Hour - time.Second)
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", apperrors.ErrInvalidDateRange,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return start, end, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// checkSteps reports too few usable steps with a message naming the count.
func checkSteps(steps []models.FunnelStep, mode models.FunnelMode) error {
	if mode == models.FunnelModeTiming {
		if err := funnel.ValidateTiming(steps); err != nil {
			n := 0
			for _, st := range steps {
				if st.Kind == models.StepPath {
					n++
				}
			}
			return fmt.Errorf("%w: funnel has %s", apperrors.ErrTooFewPathSteps, countNoun(n, "page step"))
		}
		return nil
	}
	if err := funnel.Validate(steps); err != nil {
		if errors.Is(err, apperrors.ErrTooFewSteps) {
			return fmt.Errorf("%w: funnel has %s", apperrors.ErrTooFewSteps, countNoun(len(steps), "usable step"))
		}
		return err
	}
	return nil
}

// countNoun renders "1 step" or "3 steps".
func countNoun(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// labels lists the display labels of the steps a query reports on.
func labels(steps []models.FunnelStep, mode models.FunnelMode) []string {
	out := make([]string, 0, len(steps))
	for i, st := range steps {
		if mode == models.FunnelModeTiming && st.Kind != models.StepPath {
			continue
		}
		out = append(out, funnel.StepLabel(i, st))
	}
	return out
}
