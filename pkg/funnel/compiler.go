// Package funnel compiles ordered funnel definitions into warehouse SQL.
//
// A funnel is a chain of CTEs, one per step. Each stage keeps the earliest
// timestamp per session at which the step matched strictly after the previous
// stage's timestamp. The count query reports the size of every stage and the
// timing query reports the time spent between consecutive page steps.
package funnel

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/sitelens/sitelens-engine/pkg/models"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

// Named query parameters used by bound queries.
const (
	ParamWebsiteID = "website_id"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
)

// Umami event types.
const (
	eventTypePageview = 1
	eventTypeCustom   = 2
)

// PortableDateFilter is the optional date clause injected into portable queries.
// The BI tool supplies the created_at field filter.
const PortableDateFilter = "[[AND {{created_at}}]]"

// Options configures a Compiler.
type Options struct {
	Tables sqltemplate.Tables
}

// Compiler turns funnel steps into BigQuery SQL.
type Compiler struct {
	tables sqltemplate.Tables
}

// NewCompiler creates a compiler. Unset tables fall back to the defaults.
func NewCompiler(opts Options) *Compiler {
	t := opts.Tables
	def := sqltemplate.DefaultTables()
	if t.Events == "" {
		t.Events = def.Events
	}
	if t.Sessions == "" {
		t.Sessions = def.Sessions
	}
	if t.LegacySessions == "" {
		t.LegacySessions = def.LegacySessions
	}
	if t.EventData == "" {
		t.EventData = def.EventData
	}
	return &Compiler{tables: t}
}

var defaultCompiler = NewCompiler(Options{})

// CompileFunnelCount compiles a bound count query with the default tables.
func CompileFunnelCount(steps []models.FunnelStep, directEntryOnly bool) (string, error) {
	return defaultCompiler.CountQuery(steps, directEntryOnly)
}

// CompileFunnelTiming compiles a bound timing query with the default tables.
func CompileFunnelTiming(steps []models.FunnelStep, directEntryOnly bool) (string, error) {
	return defaultCompiler.TimingQuery(steps, directEntryOnly)
}

// scope restricts the raw events read by the base CTE.
type scope interface {
	predicates() []string
	suffix() string
}

// boundScope uses named parameters supplied at execution time.
type boundScope struct{}

func (boundScope) predicates() []string {
	return []string{
		"website_id = @" + ParamWebsiteID,
		fmt.Sprintf("created_at BETWEEN @%s AND @%s", ParamStartDate, ParamEndDate),
	}
}

func (boundScope) suffix() string { return "" }

// portableScope inlines the website and leaves the date window to the BI tool.
type portableScope struct {
	entityID string
}

func (s portableScope) predicates() []string {
	return []string{"website_id = " + sqltemplate.QuoteLiteral(s.entityID)}
}

func (portableScope) suffix() string { return PortableDateFilter }

// cte is one named common table expression.
type cte struct {
	name string
	body sq.SelectBuilder
}

// plan is the set of choices that differ between the count and timing queries.
type plan struct {
	scope           scope
	pageviewsOnly   bool
	directEntryOnly bool
}

// baseCTE selects the scoped events with the step value of the previous event
// in the same session.
func (c *Compiler) baseCTE(p plan) cte {
	stepValue := fmt.Sprintf("CASE WHEN event_type = %d THEN url_path ELSE event_name END", eventTypePageview)
	if p.pageviewsOnly {
		stepValue = "url_path"
	}

	q := sq.Select(
		"session_id",
		"event_id",
		"created_at",
		"url_path",
		"event_type",
		"event_name",
		stepValue+" AS step_value",
		"LAG("+stepValue+") OVER (PARTITION BY session_id ORDER BY created_at) AS prev_step_value",
	).From(sqltemplate.Ref(c.tables.Events))

	for _, pred := range p.scope.predicates() {
		q = q.Where(pred)
	}
	if p.pageviewsOnly {
		q = q.Where(fmt.Sprintf("event_type = %d", eventTypePageview))
	}
	if s := p.scope.suffix(); s != "" {
		q = q.Suffix(s)
	}
	return cte{name: "events", body: q}
}

// stageCTEs builds one CTE per step. Stage n keeps, per session, the earliest
// matching event strictly after the stage n-1 timestamp.
func (c *Compiler) stageCTEs(steps []indexedStep, all []models.FunnelStep, p plan) []cte {
	ctes := make([]cte, 0, len(steps))
	for n, s := range steps {
		name := stageName(n)
		q := sq.Select("e.session_id", "MIN(e.created_at) AS step_time").
			From("events e").
			Where(c.matchStep(s, all))

		if n > 0 {
			q = q.Join(stageName(n-1) + " p ON p.session_id = e.session_id").
				Where("e.created_at > p.step_time")
			if p.directEntryOnly {
				q = q.Where(valueCondition("e.prev_step_value", steps[n-1].step.Value))
			}
		}
		ctes = append(ctes, cte{name: name, body: q.GroupBy("e.session_id")})
	}
	return ctes
}

func stageName(n int) string {
	return fmt.Sprintf("step%d", n+1)
}

// matchStep renders the predicate selecting events that satisfy a step.
func (c *Compiler) matchStep(s indexedStep, all []models.FunnelStep) string {
	var conds []string
	switch s.step.Kind {
	case models.StepPath:
		conds = append(conds,
			fmt.Sprintf("e.event_type = %d", eventTypePageview),
			valueCondition("e.url_path", s.step.Value),
		)
	case models.StepEvent:
		conds = append(conds,
			fmt.Sprintf("e.event_type = %d", eventTypeCustom),
			valueCondition("e.event_name", s.step.Value),
		)
		if s.step.EventScope == models.ScopeCurrentPath {
			if path, ok := precedingPath(all, s.index); ok {
				conds = append(conds, valueCondition("e.url_path", path))
			}
		}
	}
	for _, param := range s.step.Params {
		conds = append(conds, c.paramCondition(param))
	}
	return strings.Join(conds, " AND ")
}

// precedingPath returns the value of the closest path step before index.
func precedingPath(steps []models.FunnelStep, index int) (string, bool) {
	for i := index - 1; i >= 0; i-- {
		if steps[i].Kind == models.StepPath {
			return steps[i].Value, true
		}
	}
	return "", false
}

// paramCondition matches an event parameter stored in the event data table.
func (c *Compiler) paramCondition(p models.StepParam) string {
	var match string
	if p.Operator == models.ParamContains {
		match = "d.string_value LIKE " + sqltemplate.QuoteLiteral("%"+sqltemplate.LikePattern(p.Value)+"%")
	} else {
		match = valueCondition("d.string_value", p.Value)
	}
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s d WHERE d.website_event_id = e.event_id AND d.data_key = %s AND %s)",
		sqltemplate.Ref(c.tables.EventData), sqltemplate.QuoteLiteral(p.Key), match,
	)
}

// valueCondition compares column with a user value. Values containing the
// user wildcard are matched with LIKE.
func valueCondition(column, value string) string {
	if sqltemplate.HasWildcard(value) {
		return column + " LIKE " + sqltemplate.QuoteLiteral(sqltemplate.LikePattern(value))
	}
	return column + " = " + sqltemplate.QuoteLiteral(value)
}

// render assembles the WITH clause and the final statement.
func render(ctes []cte, final string) (string, error) {
	var b strings.Builder
	b.WriteString("WITH\n")
	for i, c := range ctes {
		body, _, err := c.body.ToSql()
		if err != nil {
			return "", fmt.Errorf("failed to build %s: %w", c.name, err)
		}
		fmt.Fprintf(&b, "%s AS (\n  %s\n)", c.name, body)
		if i < len(ctes)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(final)
	return b.String(), nil
}

// unionAll joins the rendered selects and appends the ordering.
func unionAll(selects []sq.SelectBuilder, orderBy string) (string, error) {
	parts := make([]string, 0, len(selects))
	for _, s := range selects {
		q, _, err := s.ToSql()
		if err != nil {
			return "", fmt.Errorf("failed to build result row: %w", err)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, "\nUNION ALL\n") + "\nORDER BY " + orderBy, nil
}
