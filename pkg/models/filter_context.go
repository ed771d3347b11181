package models

import "time"

// PathOperator controls how a path filter matches url paths.
type PathOperator string

const (
	PathEquals     PathOperator = "equals"
	PathStartsWith PathOperator = "starts-with"
)

// String returns the string representation of a PathOperator.
func (o PathOperator) String() string {
	return string(o)
}

// IsValid returns true if the operator is a known path operator.
func (o PathOperator) IsValid() bool {
	switch o {
	case PathEquals, PathStartsWith:
		return true
	default:
		return false
	}
}

// PathFilter is the url path selection of the current view.
// An empty Paths slice means no path filter is active.
type PathFilter struct {
	Paths    []string     `json:"paths" yaml:"paths"`
	Operator PathOperator `json:"operator" yaml:"operator"`
}

// Active returns true if at least one non-empty path is selected.
func (f PathFilter) Active() bool {
	for _, p := range f.Paths {
		if p != "" {
			return true
		}
	}
	return false
}

// Values returns the non-empty paths in order.
func (f PathFilter) Values() []string {
	out := make([]string, 0, len(f.Paths))
	for _, p := range f.Paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FilterContext is the filter state a SQL template is rendered against.
// It is rebuilt by the caller on every state change and never mutated by the engine.
type FilterContext struct {
	// EntityID is the selected website id. Empty means no website is selected.
	EntityID string `json:"entity_id"`

	// Domain is the selected website's domain, if known.
	Domain string `json:"domain,omitempty"`

	Path PathFilter `json:"path"`

	// From and To bound the date window. Either may be nil.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// Now anchors the default lookback window when From and To are both nil.
	// It is resolved by the caller so rendering stays deterministic.
	Now time.Time `json:"-"`

	// Variables holds user supplied values for custom {{name}} placeholders.
	Variables map[string]string `json:"variables,omitempty"`
}
