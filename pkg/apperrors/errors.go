package apperrors

import "errors"

var (
	ErrTooFewSteps          = errors.New("a funnel needs at least two steps")
	ErrTooFewPathSteps      = errors.New("funnel timing needs at least two page steps")
	ErrMultiPathConditional = errors.New("conditional path filter supports a single starts-with path only")
	ErrSuspiciousValue      = errors.New("value rejected by injection screening")
	ErrInvalidShareState    = errors.New("invalid funnel share state")
	ErrInvalidDateRange     = errors.New("start date is after end date")
)

// codes maps caller errors to the stable codes returned by the HTTP and MCP surfaces.
var codes = []struct {
	err  error
	code string
}{
	{ErrTooFewSteps, "too_few_steps"},
	{ErrTooFewPathSteps, "too_few_page_steps"},
	{ErrMultiPathConditional, "multi_path_conditional"},
	{ErrSuspiciousValue, "suspicious_value"},
	{ErrInvalidShareState, "invalid_share_state"},
	{ErrInvalidDateRange, "invalid_date_range"},
}

// Code returns the code for a caller error anywhere in err's chain.
// ok is false when err is not one of the errors above.
func Code(err error) (code string, ok bool) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, true
		}
	}
	return "", false
}
