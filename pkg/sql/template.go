package sql

import (
	"strings"
	"time"

	"github.com/sitelens/sitelens-engine/pkg/models"
)

// DirectiveKind is the closed set of things a placeholder can stand for.
type DirectiveKind int

const (
	DirectiveNone DirectiveKind = iota
	DirectiveEntityID
	DirectiveDomain
	DirectivePathFilter
	DirectiveDateRange
	DirectiveCustom
)

// String returns the name used for a directive kind in logs and API responses.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveEntityID:
		return "entity_id"
	case DirectiveDomain:
		return "domain"
	case DirectivePathFilter:
		return "path_filter"
	case DirectiveDateRange:
		return "date_range"
	case DirectiveCustom:
		return "custom"
	default:
		return "none"
	}
}

// DefaultLookback is the date window used when the context has no dates.
const DefaultLookback = 30 * 24 * time.Hour

// EngineOptions configures an Engine. Zero fields take defaults.
type EngineOptions struct {
	Tables Tables
	// PathColumn is the column the conditional path form filters on.
	PathColumn string
	// DateFields are placeholder names treated as date range fields.
	DateFields []string
	// DefaultLookback is the window ending at ctx.Now used when no dates are set.
	DefaultLookback time.Duration
}

// Engine renders SQL templates against a filter context.
// An Engine holds only configuration and is safe for concurrent use.
type Engine struct {
	tables     Tables
	pathColumn string
	dateFields map[string]bool
	lookback   time.Duration
}

// NewEngine creates an Engine, filling unset options with defaults.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		tables:     opts.Tables,
		pathColumn: opts.PathColumn,
		dateFields: make(map[string]bool),
		lookback:   opts.DefaultLookback,
	}
	if e.tables == (Tables{}) {
		e.tables = DefaultTables()
	}
	if e.pathColumn == "" {
		e.pathColumn = "url_path"
	}
	if e.lookback <= 0 {
		e.lookback = DefaultLookback
	}
	fields := opts.DateFields
	if len(fields) == 0 {
		fields = []string{"created_at"}
	}
	for _, f := range fields {
		e.dateFields[f] = true
	}
	return e
}

var defaultEngine = NewEngine(EngineOptions{})

// DefaultEngine returns the engine configured with the default warehouse layout.
func DefaultEngine() *Engine {
	return defaultEngine
}

// Apply renders template with the default engine.
func Apply(template string, ctx models.FilterContext) string {
	return defaultEngine.Apply(template, ctx)
}

// Tables returns the table layout the engine resolves date directives against.
func (e *Engine) Tables() Tables {
	return e.tables
}

// Classify returns the directive kind of a placeholder name.
func (e *Engine) Classify(name string) DirectiveKind {
	switch {
	case name == "entity_id" || name == "website_id":
		return DirectiveEntityID
	case name == "domain":
		return DirectiveDomain
	case name == "path" || name == "url_path":
		return DirectivePathFilter
	case e.dateFields[name]:
		return DirectiveDateRange
	default:
		return DirectiveCustom
	}
}

// Apply rewrites every directive of template it can resolve from ctx.
// Directives it cannot resolve are left in the output verbatim, so callers can
// detect them with FindUnresolved.
func (e *Engine) Apply(template string, ctx models.FilterContext) string {
	tokens := e.classify(lex(template))
	rc := &renderContext{
		engine:   e,
		ctx:      ctx,
		template: template,
		refs:     findTableRefs(template, e.tables),
	}

	var b strings.Builder
	for _, t := range tokens {
		if out, ok := rc.resolve(t); ok {
			b.WriteString(out)
		} else {
			b.WriteString(t.raw)
		}
	}
	return b.String()
}

// classify tags every token with its directive kind.
func (e *Engine) classify(tokens []token) []token {
	for i := range tokens {
		t := &tokens[i]
		switch t.kind {
		case tokPlaceholder:
			t.directive = e.Classify(t.name)
		case tokPathAssign:
			t.directive = DirectivePathFilter
		case tokBlock:
			t.children = e.classify(t.children)
			m := conditionRegex.FindStringSubmatch(blockBody(t.raw))
			if m == nil {
				continue
			}
			switch kind := e.Classify(m[1]); kind {
			case DirectivePathFilter, DirectiveDateRange:
				t.directive = kind
				t.form = blockCondition
			}
		}
	}
	return tokens
}

// resolver renders one token. ok is false when the token cannot be resolved.
type resolver func(rc *renderContext, t token) (out string, ok bool)

var resolvers map[DirectiveKind]resolver

func init() {
	resolvers = map[DirectiveKind]resolver{
		DirectiveEntityID:   resolveEntityID,
		DirectiveDomain:     resolveDomain,
		DirectivePathFilter: resolvePathFilter,
		DirectiveDateRange:  resolveDateRange,
		DirectiveCustom:     resolveCustom,
	}
}

type renderContext struct {
	engine   *Engine
	ctx      models.FilterContext
	template string
	refs     []tableRef
}

func (rc *renderContext) resolve(t token) (string, bool) {
	switch {
	case t.kind == tokLiteral:
		return t.raw, true
	case t.kind == tokBlock && t.form == blockGeneric:
		return rc.resolveOptionalBlock(t)
	}
	r, ok := resolvers[t.directive]
	if !ok {
		return "", false
	}
	return r(rc, t)
}

// resolveOptionalBlock expands a generic [[ ... ]] block when every placeholder in it
// resolves and drops the block otherwise.
func (rc *renderContext) resolveOptionalBlock(t token) (string, bool) {
	var b strings.Builder
	for _, child := range t.children {
		out, ok := rc.resolve(child)
		if !ok {
			return "", true
		}
		b.WriteString(out)
	}
	return b.String(), true
}

func resolveEntityID(rc *renderContext, t token) (string, bool) {
	if rc.ctx.EntityID == "" {
		return "", false
	}
	return QuoteLiteral(rc.ctx.EntityID), true
}

func resolveDomain(rc *renderContext, t token) (string, bool) {
	if rc.ctx.Domain == "" {
		return "", false
	}
	return QuoteLiteral(rc.ctx.Domain), true
}

func resolveCustom(rc *renderContext, t token) (string, bool) {
	v, ok := rc.ctx.Variables[t.name]
	if !ok {
		return "", false
	}
	if t.quoted {
		return QuoteLiteral(v), true
	}
	return FormatValue(v), true
}
