package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 200
	// MaxValueLogLength is the maximum length of a variable value to log
	MaxValueLogLength = 40
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// RedactedLiteral replaces SQL string literals in logged queries
	RedactedLiteral = "'?'"
)

var (
	// SQL string literal, with '' as an escaped quote
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Pattern to match potential API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Pattern to match JWT tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)
)

// SanitizeQuery redacts string literals and truncates a SQL query for logging.
// Paths, event names and variable values end up as literals in rendered SQL,
// so only the query shape is logged.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := stringLiteralPattern.ReplaceAllString(query, RedactedLiteral)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return TruncateString(sanitized, MaxQueryLogLength)
}

// SanitizeValue shortens a user supplied value for logging.
func SanitizeValue(value string) string {
	return TruncateString(jwtPattern.ReplaceAllString(value, "Bearer "+RedactedText), MaxValueLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
