package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyQuery indicates the query has no content.
	ErrEmptyQuery = errors.New("query is empty")
)

// ValidationResult contains the normalized SQL and any validation error.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize trims sql, drops one trailing semicolon and rejects any
// other statement separator. Empty input is returned as is.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	normalized := strings.TrimSpace(sqlQuery)
	normalized = strings.TrimSpace(strings.TrimSuffix(normalized, ";"))

	if statementBreak(normalized) >= 0 {
		return ValidationResult{Error: ErrMultipleStatements}
	}
	return ValidationResult{NormalizedSQL: normalized}
}

// ValidateTemplate validates a template with its directives sanitized away and
// restores them in the normalized text.
func ValidateTemplate(template string) ValidationResult {
	if strings.TrimSpace(template) == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}
	s := Sanitize(template)
	res := ValidateAndNormalize(s.Sanitized)
	if res.Error != nil {
		return res
	}
	res.NormalizedSQL = Restore(res.NormalizedSQL, s.Tokens)
	return res
}

// statementBreak returns the offset of the first semicolon outside quotes and
// comments, or -1.
func statementBreak(sql string) int {
	var quote byte // ', " or ` while inside a quoted span
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == ';':
			return i
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && strings.HasPrefix(sql[i:], "--"), c == '#':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				return -1
			}
			i += end
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return -1
			}
			i += end + 3
		}
	}
	return -1
}
