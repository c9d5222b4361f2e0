package rules

import (
	"context"
	"fmt"

	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// PrecisionFilter keeps the rule columns whose training precision and
// coverage clear the configured thresholds. Aggressive settings can
// legitimately keep zero rules; the resulting empty table is data, not an
// error.
//
// Parameters:
//   - min_precision: minimum share of positive labels among firing rows
//   - min_coverage: minimum share of rows the rule fires on
type PrecisionFilter struct {
	params map[string]any
	kept   []string
}

func NewPrecisionFilter() *PrecisionFilter {
	return &PrecisionFilter{params: map[string]any{
		"min_precision": 0.5,
		"min_coverage":  0.0,
	}}
}

func (f *PrecisionFilter) Params() map[string]any {
	return cloneParams(f.params)
}

func (f *PrecisionFilter) SetParams(params map[string]any) error {
	return setKnownParams(f.params, params)
}

func (f *PrecisionFilter) Clone() pipeline.Step {
	return &PrecisionFilter{params: cloneParams(f.params)}
}

func (f *PrecisionFilter) Fit(_ context.Context, inputs *model.Table, labels []string) error {
	minPrecision, ok := asFloat(f.params["min_precision"])
	if !ok {
		return fmt.Errorf("min_precision must be numeric, got %T", f.params["min_precision"])
	}
	minCoverage, ok := asFloat(f.params["min_coverage"])
	if !ok {
		return fmt.Errorf("min_coverage must be numeric, got %T", f.params["min_coverage"])
	}
	if len(labels) != inputs.NumRows() {
		return fmt.Errorf("label count %d does not match row count %d", len(labels), inputs.NumRows())
	}

	f.kept = nil
	for c, column := range inputs.Columns {
		var firing, truePositives int
		for r, row := range inputs.Rows {
			if row[c] < 0.5 {
				continue
			}
			firing++
			if labels[r] == PositiveLabel {
				truePositives++
			}
		}
		if firing == 0 {
			continue
		}
		precision := float64(truePositives) / float64(firing)
		coverage := float64(firing) / float64(inputs.NumRows())
		if precision >= minPrecision && coverage >= minCoverage {
			f.kept = append(f.kept, column)
		}
	}
	return nil
}

func (f *PrecisionFilter) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	if len(f.kept) == 0 {
		return &model.Table{Rows: make([][]float64, inputs.NumRows())}, nil
	}
	return inputs.SelectColumns(f.kept)
}

func (f *PrecisionFilter) Attribute(name string) (any, bool) {
	switch name {
	case "Rules":
		return append([]string(nil), f.kept...), true
	case "RuleCount":
		return len(f.kept), true
	}
	return nil, false
}
