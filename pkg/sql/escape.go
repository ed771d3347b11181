package sql

import (
	"regexp"
	"strings"
)

// numericRegex matches values that are inlined into SQL without quotes.
var numericRegex = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// QuoteLiteral returns v as a single-quoted SQL string literal.
// Every single quote in v is doubled, so the result is always balanced.
//
// Example:
//
//	QuoteLiteral("abc'1") // 'abc''1'
func QuoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// IsNumeric reports whether v looks like an integer or decimal number.
func IsNumeric(v string) bool {
	return numericRegex.MatchString(v)
}

// FormatValue renders a custom variable value: numbers bare, everything else quoted.
func FormatValue(v string) string {
	if IsNumeric(v) {
		return v
	}
	return QuoteLiteral(v)
}

// LikePattern translates user wildcards (*) into SQL LIKE wildcards (%).
func LikePattern(v string) string {
	return strings.ReplaceAll(v, "*", "%")
}

// HasWildcard reports whether v contains a user wildcard.
func HasWildcard(v string) bool {
	return strings.Contains(v, "*")
}

// PrefixPattern returns the LIKE pattern matching every value starting with v.
func PrefixPattern(v string) string {
	p := LikePattern(v)
	if strings.HasSuffix(p, "%") {
		return p
	}
	return p + "%"
}
