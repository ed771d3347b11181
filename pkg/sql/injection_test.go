package sql

import (
	"testing"
)

func TestCheckVariableForInjection(t *testing.T) {
	tests := []struct {
		name            string
		varName         string
		value           string
		expectInjection bool
	}{
		{name: "url path", varName: "path", value: "/soknad/skjema", expectInjection: false},
		{name: "event name", varName: "event", value: "signup_completed", expectInjection: false},
		{name: "number", varName: "limit", value: "100", expectInjection: false},
		{name: "empty", varName: "filter", value: "", expectInjection: false},
		{name: "apostrophe in name", varName: "name", value: "O'Brien", expectInjection: false},
		{name: "classic quote injection", varName: "browser", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table injection", varName: "search", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select injection", varName: "id", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "comment injection", varName: "filter", value: "admin'--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckVariableForInjection(tt.varName, tt.value)

			if !tt.expectInjection {
				if result != nil {
					t.Errorf("expected no injection detection (nil), got result: %+v", result)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected injection detection, got nil")
			}
			if !result.IsSQLi {
				t.Errorf("expected IsSQLi=true, got false")
			}
			if result.Name != tt.varName {
				t.Errorf("expected Name=%q, got %q", tt.varName, result.Name)
			}
			if result.Fingerprint == "" {
				t.Errorf("expected non-empty fingerprint, got empty string")
			}
		})
	}
}

func TestCheckAllVariables(t *testing.T) {
	results := CheckAllVariables(map[string]string{
		"limit":   "10",
		"zz":      "' OR '1'='1",
		"browser": "chrome",
		"aa":      "'; DROP TABLE users--",
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "aa" || results[1].Name != "zz" {
		t.Errorf("expected results sorted by name, got %q, %q", results[0].Name, results[1].Name)
	}
}

func TestCheckAllVariables_Clean(t *testing.T) {
	if results := CheckAllVariables(map[string]string{"a": "x", "b": "2"}); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if results := CheckAllVariables(nil); len(results) != 0 {
		t.Errorf("expected no results for nil map, got %d", len(results))
	}
}
