package funnel

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

// MinSteps is the smallest number of steps a funnel can be compiled from.
const MinSteps = 2

// NormalizePath reduces a user entered page reference to a url path:
// absolute URLs lose scheme and host, query and fragment are stripped,
// trailing slashes collapse, and an empty path becomes "/".
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// Normalize returns a cleaned copy of steps. Steps with an unknown kind or a blank
// value are dropped, path values are normalized, parameters without a key are
// dropped and unknown operators and scopes fall back to their defaults.
// The input slice is not modified.
func Normalize(steps []models.FunnelStep) []models.FunnelStep {
	out := make([]models.FunnelStep, 0, len(steps))
	for _, s := range steps {
		if !s.Kind.IsValid() {
			continue
		}
		value := strings.TrimSpace(s.Value)
		if value == "" {
			continue
		}

		step := models.FunnelStep{Kind: s.Kind, Value: value}
		switch s.Kind {
		case models.StepPath:
			step.Value = NormalizePath(value)
		case models.StepEvent:
			step.EventScope = s.EventScope
			if step.EventScope != models.ScopeCurrentPath {
				step.EventScope = models.ScopeAnywhere
			}
		}

		for _, p := range s.Params {
			key := strings.TrimSpace(p.Key)
			if key == "" {
				continue
			}
			op := p.Operator
			if !op.IsValid() {
				op = models.ParamEquals
			}
			step.Params = append(step.Params, models.StepParam{
				Key:      key,
				Value:    strings.TrimSpace(p.Value),
				Operator: op,
			})
		}
		out = append(out, step)
	}
	return out
}

// Validate reports whether steps can be compiled into a count query.
func Validate(steps []models.FunnelStep) error {
	if n := len(Normalize(steps)); n < MinSteps {
		return fmt.Errorf("%w: got %d", apperrors.ErrTooFewSteps, n)
	}
	return nil
}

// ValidateTiming reports whether steps can be compiled into a timing query.
func ValidateTiming(steps []models.FunnelStep) error {
	if n := len(pathSteps(Normalize(steps))); n < MinSteps {
		return fmt.Errorf("%w: got %d", apperrors.ErrTooFewPathSteps, n)
	}
	return nil
}

// indexedStep is a step together with its position in the normalized funnel.
type indexedStep struct {
	index int
	step  models.FunnelStep
}

func allSteps(steps []models.FunnelStep) []indexedStep {
	out := make([]indexedStep, len(steps))
	for i, s := range steps {
		out[i] = indexedStep{index: i, step: s}
	}
	return out
}

func pathSteps(steps []models.FunnelStep) []indexedStep {
	var out []indexedStep
	for i, s := range steps {
		if s.Kind == models.StepPath {
			out = append(out, indexedStep{index: i, step: s})
		}
	}
	return out
}
