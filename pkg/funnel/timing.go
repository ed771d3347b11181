package funnel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

// TotalStep is the from_step value of the first-to-last timing row.
const TotalStep = -1

// TimingQuery compiles the path steps into a query returning the average and
// median seconds between consecutive page steps, plus a total row spanning
// the first to the last page step. Event steps are ignored. Step indices in
// the result refer to positions in the normalized step list.
func (c *Compiler) TimingQuery(steps []models.FunnelStep, directEntryOnly bool) (string, error) {
	return c.timingQuery(steps, plan{scope: boundScope{}, pageviewsOnly: true, directEntryOnly: directEntryOnly})
}

// PortableTimingQuery is TimingQuery with the website inlined and the date
// window left to the BI tool.
func (c *Compiler) PortableTimingQuery(steps []models.FunnelStep, directEntryOnly bool, entityID string) (string, error) {
	return c.timingQuery(steps, plan{scope: portableScope{entityID: entityID}, pageviewsOnly: true, directEntryOnly: directEntryOnly})
}

func (c *Compiler) timingQuery(steps []models.FunnelStep, p plan) (string, error) {
	normalized := Normalize(steps)
	paths := pathSteps(normalized)
	if len(paths) < MinSteps {
		return "", fmt.Errorf("%w: got %d", apperrors.ErrTooFewPathSteps, len(paths))
	}

	ctes := append([]cte{c.baseCTE(p)}, c.stageCTEs(paths, normalized, p)...)
	ctes = append(ctes, cte{name: "funnel", body: funnelCTE(len(paths))})

	last := len(paths)
	rows := make([]sq.SelectBuilder, 0, last)
	for n := 1; n < last; n++ {
		rows = append(rows, timingRow(paths[n-1].index, paths[n].index, n, n+1))
	}
	rows = append(rows, timingRow(TotalStep, paths[last-1].index, 1, last))

	final, err := unionAll(rows, "from_step")
	if err != nil {
		return "", err
	}
	return render(ctes, final)
}

// funnelCTE left-joins every stage to stage 1, keeping sessions that reached the last stage.
func funnelCTE(stages int) sq.SelectBuilder {
	cols := make([]string, 0, stages+1)
	cols = append(cols, "s1.session_id")
	for n := 1; n <= stages; n++ {
		cols = append(cols, fmt.Sprintf("s%d.step_time AS t%d", n, n))
	}

	q := sq.Select(cols...).From("step1 s1")
	for n := 2; n <= stages; n++ {
		q = q.LeftJoin(fmt.Sprintf("step%d s%d ON s%d.session_id = s1.session_id", n, n, n))
	}
	return q.Where(fmt.Sprintf("s%d.step_time IS NOT NULL", stages))
}

func timingRow(fromStep, toStep, fromStage, toStage int) sq.SelectBuilder {
	diff := fmt.Sprintf("TIMESTAMP_DIFF(t%d, t%d, SECOND)", toStage, fromStage)
	return sq.Select(
		fmt.Sprintf("%d AS from_step", fromStep),
		fmt.Sprintf("%d AS to_step", toStep),
		"AVG("+diff+") AS avg_seconds",
		"APPROX_QUANTILES("+diff+", 100)[OFFSET(50)] AS median_seconds",
	).From("funnel")
}

// DecodeTimingRows converts warehouse result rows into timing rows. Numeric
// columns may arrive as numbers, json.Number or strings. Missing or null
// averages and medians stay nil.
func DecodeTimingRows(rows []map[string]any) []models.TimingRow {
	out := make([]models.TimingRow, 0, len(rows))
	for _, row := range rows {
		from, _ := toFloat(row["from_step"])
		to, _ := toFloat(row["to_step"])
		r := models.TimingRow{FromStep: int(from), ToStep: int(to)}
		if v, ok := toFloat(row["avg_seconds"]); ok {
			r.AvgSeconds = &v
		}
		if v, ok := toFloat(row["median_seconds"]); ok {
			r.MedianSeconds = &v
		}
		out = append(out, r)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
