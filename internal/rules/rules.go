// Package rules contains the rule-based pipeline steps used to exercise the
// search engine: threshold rule generation, precision filtering, correlated
// rule reduction and a vote-based decision stage. The engine itself never
// depends on this package.
package rules

import (
	"fmt"
	"sort"
)

// PositiveLabel is the label treated as the positive class by every step and
// scorer in this package.
const PositiveLabel = "1"

// Rule is one threshold condition on a feature column.
type Rule struct {
	Name      string
	Column    string
	Op        string // ">=" or "<="
	Threshold float64
}

// Holds reports whether the rule fires for the given feature value.
func (r Rule) Holds(value float64) bool {
	if r.Op == ">=" {
		return value >= r.Threshold
	}
	return value <= r.Threshold
}

func ruleName(column, op string, threshold float64) string {
	return fmt.Sprintf("%s%s%.4g", column, op, threshold)
}

// cloneParams copies a parameter map one level deep.
func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// setKnownParams merges overrides into params, rejecting unknown keys.
func setKnownParams(params map[string]any, overrides map[string]any) error {
	for k, v := range overrides {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("unknown parameter: %s", k)
		}
		params[k] = v
	}
	return nil
}

// asInt coerces a numeric parameter value to int64. Sampled integer values
// arrive as int64; values decoded from JSON arrive as float64.
func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// asFloat coerces a numeric parameter value to float64.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// asStrings coerces a parameter value to a string slice. Values resolved
// from step attributes arrive as []string; values decoded from JSON arrive
// as []any.
func asStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// quantiles returns n cut points of the sorted values at evenly spaced
// positions strictly inside (0, 1), deduplicated.
func quantiles(values []float64, n int) []float64 {
	if len(values) == 0 || n < 1 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	cuts := make([]float64, 0, n)
	seen := make(map[float64]struct{}, n)
	for i := 1; i <= n; i++ {
		pos := float64(i) / float64(n+1) * float64(len(sorted)-1)
		cut := sorted[int(pos)]
		if _, dup := seen[cut]; dup {
			continue
		}
		seen[cut] = struct{}{}
		cuts = append(cuts, cut)
	}
	return cuts
}
