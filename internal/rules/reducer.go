package rules

import (
	"context"
	"fmt"

	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// CorrelationReducer drops rule columns whose activation pattern overlaps an
// already kept rule too closely, measured by Jaccard similarity on the
// training rows. Columns are considered in input order, so earlier rules win
// ties deterministically.
//
// Parameters:
//   - max_overlap: highest tolerated Jaccard similarity in [0, 1]
type CorrelationReducer struct {
	params map[string]any
	kept   []string
}

func NewCorrelationReducer() *CorrelationReducer {
	return &CorrelationReducer{params: map[string]any{
		"max_overlap": 0.9,
	}}
}

func (c *CorrelationReducer) Params() map[string]any {
	return cloneParams(c.params)
}

func (c *CorrelationReducer) SetParams(params map[string]any) error {
	return setKnownParams(c.params, params)
}

func (c *CorrelationReducer) Clone() pipeline.Step {
	return &CorrelationReducer{params: cloneParams(c.params)}
}

func (c *CorrelationReducer) Fit(_ context.Context, inputs *model.Table, _ []string) error {
	maxOverlap, ok := asFloat(c.params["max_overlap"])
	if !ok {
		return fmt.Errorf("max_overlap must be numeric, got %T", c.params["max_overlap"])
	}
	if maxOverlap < 0 || maxOverlap > 1 {
		return fmt.Errorf("max_overlap must be in [0, 1], got %v", maxOverlap)
	}

	activations := make([][]bool, len(inputs.Columns))
	for col := range inputs.Columns {
		active := make([]bool, len(inputs.Rows))
		for r, row := range inputs.Rows {
			active[r] = row[col] >= 0.5
		}
		activations[col] = active
	}

	c.kept = nil
	var keptActivations [][]bool
	for col, column := range inputs.Columns {
		redundant := false
		for _, kept := range keptActivations {
			if jaccard(activations[col], kept) > maxOverlap {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		c.kept = append(c.kept, column)
		keptActivations = append(keptActivations, activations[col])
	}
	return nil
}

func (c *CorrelationReducer) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	if len(c.kept) == 0 {
		return &model.Table{Rows: make([][]float64, inputs.NumRows())}, nil
	}
	return inputs.SelectColumns(c.kept)
}

func (c *CorrelationReducer) Attribute(name string) (any, bool) {
	switch name {
	case "Rules":
		return append([]string(nil), c.kept...), true
	case "RuleCount":
		return len(c.kept), true
	}
	return nil, false
}

// jaccard is intersection over union of the firing rows. Two rules that
// never fire are treated as fully overlapping.
func jaccard(a, b []bool) float64 {
	var intersection, union int
	for i := range a {
		if a[i] && b[i] {
			intersection++
		}
		if a[i] || b[i] {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}
