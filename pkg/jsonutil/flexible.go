package jsonutil

import (
	"encoding/json"
	"sort"
	"strconv"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting numbers
// and booleans where a string is expected. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Numbers keep their literal form so 0042 or 1e3 are not reformatted
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// StringMap is a JSON object whose scalar values are decoded as strings.
// Template variables arrive this way from both HTTP and MCP callers.
type StringMap map[string]string

// UnmarshalJSON implements json.Unmarshaler. Null members are dropped.
func (m *StringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		out[k] = FlexibleStringValue(v)
	}
	*m = out
	return nil
}

// FromAny converts decoded JSON values (as produced by MCP argument maps) to strings.
func FromAny(values map[string]any) StringMap {
	out := make(StringMap, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = FlexibleStringValue(raw)
	}
	return out
}

// Keys returns the map keys in sorted order.
func (m StringMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
