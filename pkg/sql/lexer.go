package sql

import (
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokPlaceholder
	tokBlock
	tokPathAssign
)

// token is one span of a lexed template.
type token struct {
	kind tokenKind
	raw  string

	// placeholder and path-assignment name
	name string
	// placeholder was written as '{{name}}' or "{{name}}"
	quoted bool

	// path assignment: <column> = [[ {{path}} -- ]] <fallback>
	column   string
	fallback string

	// optional block contents
	children []token

	directive DirectiveKind
	form      blockForm
}

type blockForm int

const (
	blockGeneric blockForm = iota
	blockCondition
)

// directiveRegex finds, leftmost first: path assignments, optional blocks and placeholders.
var directiveRegex = regexp.MustCompile(
	`(?s)([\w.]+)\s*=\s*\[\[\s*\{\{\s*(path|url_path)\s*\}\}\s*--\s*\]\]\s*('(?:[^']|'')*')` +
		`|\[\[(.*?)\]\]` +
		`|'\{\{\s*([a-zA-Z_]\w*)\s*\}\}'` +
		`|"\{\{\s*([a-zA-Z_]\w*)\s*\}\}"` +
		`|\{\{\s*([a-zA-Z_]\w*)\s*\}\}`,
)

// placeholderRegex finds placeholders only; optional blocks do not nest.
var placeholderRegex = regexp.MustCompile(
	`'\{\{\s*([a-zA-Z_]\w*)\s*\}\}'` +
		`|"\{\{\s*([a-zA-Z_]\w*)\s*\}\}"` +
		`|\{\{\s*([a-zA-Z_]\w*)\s*\}\}`,
)

// conditionRegex matches the body of a conditional block: [[ AND {{name}} ]].
var conditionRegex = regexp.MustCompile(`(?is)^\s*AND\s+\{\{\s*([a-zA-Z_]\w*)\s*\}\}\s*$`)

// lex splits a template into literal spans and directive tokens.
func lex(template string) []token {
	var tokens []token
	last := 0
	for _, m := range directiveRegex.FindAllStringSubmatchIndex(template, -1) {
		if m[0] > last {
			tokens = append(tokens, token{kind: tokLiteral, raw: template[last:m[0]]})
		}
		raw := template[m[0]:m[1]]
		switch {
		case m[2] >= 0:
			tokens = append(tokens, token{
				kind:     tokPathAssign,
				raw:      raw,
				column:   template[m[2]:m[3]],
				name:     template[m[4]:m[5]],
				fallback: template[m[6]:m[7]],
			})
		case m[8] >= 0:
			inner := template[m[8]:m[9]]
			tokens = append(tokens, token{kind: tokBlock, raw: raw, children: lexPlaceholders(inner)})
		default:
			tokens = append(tokens, placeholderToken(raw, template, m[10:16]))
		}
		last = m[1]
	}
	if last < len(template) {
		tokens = append(tokens, token{kind: tokLiteral, raw: template[last:]})
	}
	return tokens
}

// lexPlaceholders splits the body of an optional block.
func lexPlaceholders(s string) []token {
	var tokens []token
	last := 0
	for _, m := range placeholderRegex.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			tokens = append(tokens, token{kind: tokLiteral, raw: s[last:m[0]]})
		}
		tokens = append(tokens, placeholderToken(s[m[0]:m[1]], s, m[2:8]))
		last = m[1]
	}
	if last < len(s) {
		tokens = append(tokens, token{kind: tokLiteral, raw: s[last:]})
	}
	return tokens
}

// placeholderToken builds a placeholder from the three name groups
// (single-quoted, double-quoted, bare).
func placeholderToken(raw, src string, groups []int) token {
	for i := 0; i < len(groups); i += 2 {
		if groups[i] >= 0 {
			return token{
				kind:   tokPlaceholder,
				raw:    raw,
				name:   src[groups[i]:groups[i+1]],
				quoted: i < 4,
			}
		}
	}
	return token{kind: tokLiteral, raw: raw}
}

// blockBody returns the text between the brackets of an optional block.
func blockBody(raw string) string {
	return strings.TrimSuffix(strings.TrimPrefix(raw, "[["), "]]")
}
