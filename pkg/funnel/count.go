package funnel

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

// CountQuery compiles steps into a query returning one row per step with
// columns step, label and sessions, ordered by step. The query expects the
// named parameters website_id, start_date and end_date.
func (c *Compiler) CountQuery(steps []models.FunnelStep, directEntryOnly bool) (string, error) {
	return c.countQuery(steps, plan{scope: boundScope{}, directEntryOnly: directEntryOnly})
}

// PortableCountQuery compiles a count query for BI tools. The website id is
// inlined and the date window is left as an optional created_at filter.
func (c *Compiler) PortableCountQuery(steps []models.FunnelStep, directEntryOnly bool, entityID string) (string, error) {
	return c.countQuery(steps, plan{scope: portableScope{entityID: entityID}, directEntryOnly: directEntryOnly})
}

func (c *Compiler) countQuery(steps []models.FunnelStep, p plan) (string, error) {
	normalized := Normalize(steps)
	if len(normalized) < MinSteps {
		return "", fmt.Errorf("%w: got %d", apperrors.ErrTooFewSteps, len(normalized))
	}

	indexed := allSteps(normalized)
	ctes := append([]cte{c.baseCTE(p)}, c.stageCTEs(indexed, normalized, p)...)

	rows := make([]sq.SelectBuilder, 0, len(indexed))
	for n, s := range indexed {
		rows = append(rows, sq.Select(
			fmt.Sprintf("%d AS step", n+1),
			sqltemplate.QuoteLiteral(StepLabel(n, s.step))+" AS label",
			"COUNT(*) AS sessions",
		).From(stageName(n)))
	}

	final, err := unionAll(rows, "step")
	if err != nil {
		return "", err
	}
	return render(ctes, final)
}

// StepLabel is the display label of the step at 0-based position n.
func StepLabel(n int, s models.FunnelStep) string {
	return fmt.Sprintf("%d: %s", n+1, s.Value)
}
