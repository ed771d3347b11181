package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a variable value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Name        string // Name of the variable that failed the check
	Value       string // The value that was checked
}

// CheckVariableForInjection uses libinjection to detect SQL injection patterns
// in a custom variable value.
//
// Values are always escaped by QuoteLiteral before they reach the SQL text, so a
// positive result is a signal for logging or rejection policy, not a precondition
// for safe rendering. Numeric values are never flagged.
//
// Example:
//
//	result := CheckVariableForInjection("search", "'; DROP TABLE users--")
//	// result.IsSQLi == true
func CheckVariableForInjection(name, value string) *InjectionCheckResult {
	if value == "" || IsNumeric(value) {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Name:        name,
		Value:       value,
	}
}

// CheckAllVariables screens every value and returns the flagged ones sorted by name.
func CheckAllVariables(vars map[string]string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range vars {
		if result := CheckVariableForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}
