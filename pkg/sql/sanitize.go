package sql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SanitizeResult is a template with its directives swapped for plain SQL tokens.
type SanitizeResult struct {
	Sanitized string            `json:"sanitized"`
	Tokens    map[string]string `json:"tokens"`
}

var (
	sanitizeBlockRegex       = regexp.MustCompile(`(?s)\[\[.*?\]\]`)
	sanitizePlaceholderRegex = regexp.MustCompile(`'\{\{[^{}]*\}\}'|"\{\{[^{}]*\}\}"|\{\{[^{}]*\}\}`)
)

// Sanitize replaces every [[...]] block with a numbered SQL comment and every
// {{...}} placeholder with a numbered string literal, so a generic SQL formatter
// or validator can process the template. Restore reverses it.
//
// Example:
//
//	r := Sanitize("SELECT 1 FROM t WHERE id = {{entity_id}} [[AND {{created_at}}]]")
//	// r.Sanitized == "SELECT 1 FROM t WHERE id = '__tpl_var_1' /*__tpl_block_0*/"
func Sanitize(sqlText string) SanitizeResult {
	prefix := tokenPrefix(sqlText)
	tokens := make(map[string]string)
	n := 0

	out := sanitizeBlockRegex.ReplaceAllStringFunc(sqlText, func(m string) string {
		tok := fmt.Sprintf("/*%sblock_%d*/", prefix, n)
		n++
		tokens[tok] = m
		return tok
	})
	out = sanitizePlaceholderRegex.ReplaceAllStringFunc(out, func(m string) string {
		tok := fmt.Sprintf("'%svar_%d'", prefix, n)
		n++
		tokens[tok] = m
		return tok
	})

	return SanitizeResult{Sanitized: out, Tokens: tokens}
}

// Restore puts the original directives back in place of their tokens.
// Empty tokens are ignored; Sanitize never produces one.
func Restore(sqlText string, tokens map[string]string) string {
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return sqlText
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, tokens[k])
	}
	return strings.NewReplacer(pairs...).Replace(sqlText)
}

// tokenPrefix returns a token prefix that does not already occur in sqlText.
func tokenPrefix(sqlText string) string {
	prefix := "__tpl_"
	for strings.Contains(sqlText, prefix) {
		prefix = "_" + prefix
	}
	return prefix
}
