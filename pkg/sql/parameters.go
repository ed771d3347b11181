package sql

import (
	"regexp"
	"slices"

	"github.com/sitelens/sitelens-engine/pkg/apperrors"
	"github.com/sitelens/sitelens-engine/pkg/models"
)

// parameterRegex matches {{name}} with optional inner spaces. Names are identifiers.
var parameterRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z_]\w*)\s*\}\}`)

// stringLiteralRegex matches a single-quoted SQL literal; '' is an escaped quote.
var stringLiteralRegex = regexp.MustCompile(`'(?:[^']|'')*'`)

// unresolvedRegex matches any directive left in rendered SQL.
var unresolvedRegex = regexp.MustCompile(`(?s)\[\[.*?\]\]|\{\{.*?\}\}`)

// ExtractParameters returns the distinct placeholder names in sqlQuery in order
// of first appearance. "{{entity_id}} AND n > {{ min_views }}" yields
// entity_id, min_views.
func ExtractParameters(sqlQuery string) []string {
	var params []string
	for _, m := range parameterRegex.FindAllStringSubmatch(sqlQuery, -1) {
		if !slices.Contains(params, m[1]) {
			params = append(params, m[1])
		}
	}
	return params
}

// CustomVariables returns the placeholder names of template that the engine treats
// as user supplied variables, in order of first appearance.
func (e *Engine) CustomVariables(template string) []string {
	var names []string
	for _, name := range ExtractParameters(template) {
		if e.Classify(name) == DirectiveCustom {
			names = append(names, name)
		}
	}
	return names
}

// FindUnresolved returns every {{...}} placeholder and [[...]] block still present
// in rendered SQL, in order. An empty result means the template fully resolved.
func FindUnresolved(renderedSQL string) []string {
	return unresolvedRegex.FindAllString(renderedSQL, -1)
}

// ValidatePathFilter reports path filter input the engine cannot render:
// a conditional path block combined with several starts-with paths.
func (e *Engine) ValidatePathFilter(template string, ctx models.FilterContext) error {
	if len(ctx.Path.Values()) < 2 || ctx.Path.Operator != models.PathStartsWith {
		return nil
	}
	for _, t := range e.classify(lex(template)) {
		if t.kind == tokBlock && t.form == blockCondition && t.directive == DirectivePathFilter {
			return apperrors.ErrMultiPathConditional
		}
	}
	return nil
}

// FindParametersInStringLiterals returns placeholders written inside a longer
// single-quoted literal, such as 'Hello {{name}}'. Substitution emits a whole
// quoted literal, so such a placeholder would produce broken SQL. A literal that
// holds nothing but the placeholder ('{{name}}') is the quoted form and is allowed.
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)
	for _, lit := range stringLiteralRegex.FindAllString(sqlQuery, -1) {
		body := lit[1 : len(lit)-1]
		if m := parameterRegex.FindStringIndex(body); m != nil && m[0] == 0 && m[1] == len(body) {
			continue
		}
		for _, m := range parameterRegex.FindAllStringSubmatch(body, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				problems = append(problems, m[1])
			}
		}
	}
	return problems
}
