package sql

import (
	"regexp"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	endOfDay   = "T23:59:59"
)

// resolveDateRange renders [[ AND {{created_at}} ]] as a BETWEEN predicate on the
// highest-precedence known table in the template, mirrored onto every other known
// table the template joins but does not already bound.
func resolveDateRange(rc *renderContext, t token) (string, bool) {
	if t.kind != tokBlock {
		return "", false
	}
	from, to, ok := rc.engine.dateWindow(rc)
	if !ok {
		return "", false
	}
	field := fieldName(t)
	between := " BETWEEN TIMESTAMP('" + from.Format(dateLayout) + "') AND TIMESTAMP('" + to.Format(dateLayout) + endOfDay + "')"

	if len(rc.refs) == 0 {
		return "AND " + field + between, true
	}

	preds := []string{"AND " + rc.refs[0].qualifier + "." + field + between}
	for _, ref := range rc.refs[1:] {
		column := ref.qualifier + "." + field
		if ref.qualifier == rc.refs[0].qualifier || isDateFiltered(rc.template, column) {
			continue
		}
		preds = append(preds, "AND "+column+between)
	}
	return strings.Join(preds, " "), true
}

// dateWindow picks the window for a date directive. When neither bound is set the
// window is the lookback ending at ctx.Now; without a Now it cannot be resolved.
func (e *Engine) dateWindow(rc *renderContext) (time.Time, time.Time, bool) {
	ctx := rc.ctx
	switch {
	case ctx.From != nil && ctx.To != nil:
		return *ctx.From, *ctx.To, true
	case ctx.From != nil:
		if ctx.Now.IsZero() {
			return *ctx.From, *ctx.From, true
		}
		return *ctx.From, ctx.Now, true
	case ctx.To != nil:
		return ctx.To.Add(-e.lookback), *ctx.To, true
	case !ctx.Now.IsZero():
		return ctx.Now.Add(-e.lookback), ctx.Now, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

var conditionFieldRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z_]\w*)\s*\}\}`)

func fieldName(t token) string {
	if m := conditionFieldRegex.FindStringSubmatch(t.raw); m != nil {
		return m[1]
	}
	return "created_at"
}
