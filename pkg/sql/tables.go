package sql

import (
	"regexp"
	"strings"
)

// Tables names the warehouse tables the engine and the funnel compiler know about.
// Names are fully qualified and unquoted; Ref adds the backticks.
type Tables struct {
	Events         string `yaml:"events"`
	Sessions       string `yaml:"sessions"`
	LegacySessions string `yaml:"legacy_sessions"`
	EventData      string `yaml:"event_data"`
}

// DefaultTables returns the table layout of the analytics warehouse.
func DefaultTables() Tables {
	return Tables{
		Events:         "analytics-prod.umami.public_website_event",
		Sessions:       "analytics-prod.umami.public_session",
		LegacySessions: "analytics-prod.umami_views.session",
		EventData:      "analytics-prod.umami.public_event_data",
	}
}

// Ref returns the backtick-quoted reference of a fully qualified table name.
func Ref(name string) string {
	return "`" + name + "`"
}

// datePrecedence lists the tables a date directive can bind to, highest precedence first.
func (t Tables) datePrecedence() []string {
	return []string{t.Events, t.Sessions, t.LegacySessions}
}

// tableRef is a known table found in a template, with the name it is addressed by.
type tableRef struct {
	table     string
	qualifier string
}

// notAliases are keywords that may directly follow a table name in FROM/JOIN.
var notAliases = map[string]bool{
	"WHERE": true, "JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true,
	"FULL": true, "CROSS": true, "ON": true, "USING": true, "GROUP": true, "ORDER": true,
	"LIMIT": true, "HAVING": true, "WINDOW": true, "QUALIFY": true, "UNION": true,
	"FOR": true, "TABLESAMPLE": true, "WITH": true,
}

// findTableRefs returns the known date tables referenced by the template, in precedence order.
func findTableRefs(template string, tables Tables) []tableRef {
	var refs []tableRef
	for _, name := range tables.datePrecedence() {
		if name == "" || !strings.Contains(template, name) {
			continue
		}
		refs = append(refs, tableRef{table: name, qualifier: qualifierFor(template, name)})
	}
	return refs
}

// qualifierFor returns the alias a table is given in FROM/JOIN, or its quoted name.
func qualifierFor(template, name string) string {
	re := regexp.MustCompile("(?i)(?:FROM|JOIN)\\s+`?" + regexp.QuoteMeta(name) + "`?(?:\\s+(?:AS\\s+)?([A-Za-z_]\\w*))?")
	m := re.FindStringSubmatch(template)
	if m != nil && m[1] != "" && !notAliases[strings.ToUpper(m[1])] {
		return m[1]
	}
	return Ref(name)
}

// isDateFiltered reports whether column is already compared against something in template.
func isDateFiltered(template, column string) bool {
	re := regexp.MustCompile(regexp.QuoteMeta(column) + `\s*(?i:BETWEEN|>=|<=|>|<|=)`)
	return re.MatchString(template)
}
