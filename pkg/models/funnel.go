package models

// StepKind identifies what a funnel step matches against.
type StepKind string

const (
	StepPath  StepKind = "path"
	StepEvent StepKind = "event"
)

// String returns the string representation of a StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known step kind.
func (k StepKind) IsValid() bool {
	switch k {
	case StepPath, StepEvent:
		return true
	default:
		return false
	}
}

// EventScope restricts where an event step may fire.
type EventScope string

const (
	// ScopeAnywhere matches the event on any page.
	ScopeAnywhere EventScope = "anywhere"
	// ScopeCurrentPath requires the event to fire on the page of the
	// closest preceding path step.
	ScopeCurrentPath EventScope = "current-path"
)

// ParamOperator controls how an event parameter value is matched.
type ParamOperator string

const (
	ParamEquals   ParamOperator = "equals"
	ParamContains ParamOperator = "contains"
)

// IsValid returns true if the operator is a known parameter operator.
func (o ParamOperator) IsValid() bool {
	switch o {
	case ParamEquals, ParamContains:
		return true
	default:
		return false
	}
}

// StepParam is a predicate on one event parameter.
type StepParam struct {
	Key      string        `json:"key" yaml:"key"`
	Value    string        `json:"value" yaml:"value"`
	Operator ParamOperator `json:"operator" yaml:"operator"`
}

// FunnelStep is one ordered step of a funnel. Index 0 is the funnel entry.
// Steps are accepted as entered; funnel.Normalize drops the ones that cannot match.
type FunnelStep struct {
	Kind       StepKind    `json:"kind" yaml:"kind"`
	Value      string      `json:"value" yaml:"value"`
	EventScope EventScope  `json:"eventScope,omitempty" yaml:"event_scope,omitempty"`
	Params     []StepParam `json:"params,omitempty" yaml:"params,omitempty"`
}

// Funnel is a complete funnel definition as shared between views.
type Funnel struct {
	Steps           []FunnelStep `json:"steps" yaml:"steps"`
	DirectEntryOnly bool         `json:"onlyDirectEntry" yaml:"only_direct_entry"`
}

// TimingRow is one row of a funnel timing result.
// FromStep == -1 marks the total row spanning the first to the last step.
type TimingRow struct {
	FromStep      int      `json:"fromStep"`
	ToStep        int      `json:"toStep"`
	AvgSeconds    *float64 `json:"avgSeconds"`
	MedianSeconds *float64 `json:"medianSeconds"`
}

// IsTotal reports whether the row is the aggregate first-to-last row.
func (r TimingRow) IsTotal() bool {
	return r.FromStep == -1
}

// FunnelMode selects which query a funnel compiles to.
type FunnelMode string

const (
	FunnelModeCount  FunnelMode = "count"
	FunnelModeTiming FunnelMode = "timing"
)

// IsValid returns true if the mode is a known funnel mode.
func (m FunnelMode) IsValid() bool {
	return m == FunnelModeCount || m == FunnelModeTiming
}
