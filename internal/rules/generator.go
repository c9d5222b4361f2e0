package rules

import (
	"context"
	"fmt"

	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// Generator proposes threshold rules over the feature columns. Fit computes
// per-column quantile cut points from the training rows; Produce turns a
// feature table into a binary rule activation table with one column per
// generated rule.
//
// Parameters:
//   - num_thresholds: cut points per feature column
//   - directions: "gte", "lte" or "both"
type Generator struct {
	params map[string]any
	rules  []Rule
}

func NewGenerator() *Generator {
	return &Generator{params: map[string]any{
		"num_thresholds": int64(3),
		"directions":     "both",
	}}
}

func (g *Generator) Params() map[string]any {
	return cloneParams(g.params)
}

func (g *Generator) SetParams(params map[string]any) error {
	return setKnownParams(g.params, params)
}

func (g *Generator) Clone() pipeline.Step {
	return &Generator{params: cloneParams(g.params)}
}

func (g *Generator) Fit(_ context.Context, inputs *model.Table, _ []string) error {
	numThresholds, ok := asInt(g.params["num_thresholds"])
	if !ok || numThresholds < 1 {
		return fmt.Errorf("num_thresholds must be a positive integer, got %v", g.params["num_thresholds"])
	}
	directions, ok := g.params["directions"].(string)
	if !ok {
		return fmt.Errorf("directions must be a string, got %T", g.params["directions"])
	}
	var ops []string
	switch directions {
	case "gte":
		ops = []string{">="}
	case "lte":
		ops = []string{"<="}
	case "both":
		ops = []string{">=", "<="}
	default:
		return fmt.Errorf("directions must be gte, lte or both, got %q", directions)
	}

	g.rules = nil
	for c, column := range inputs.Columns {
		values := make([]float64, len(inputs.Rows))
		for r, row := range inputs.Rows {
			values[r] = row[c]
		}
		for _, cut := range quantiles(values, int(numThresholds)) {
			for _, op := range ops {
				g.rules = append(g.rules, Rule{
					Name:      ruleName(column, op, cut),
					Column:    column,
					Op:        op,
					Threshold: cut,
				})
			}
		}
	}
	return nil
}

func (g *Generator) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	columnIndex := make(map[string]int, len(inputs.Columns))
	for i, c := range inputs.Columns {
		columnIndex[c] = i
	}

	names := make([]string, len(g.rules))
	for i, rule := range g.rules {
		if _, ok := columnIndex[rule.Column]; !ok {
			return nil, fmt.Errorf("input table is missing column %q", rule.Column)
		}
		names[i] = rule.Name
	}

	rows := make([][]float64, len(inputs.Rows))
	for r, row := range inputs.Rows {
		activation := make([]float64, len(g.rules))
		for i, rule := range g.rules {
			if rule.Holds(row[columnIndex[rule.Column]]) {
				activation[i] = 1
			}
		}
		rows[r] = activation
	}
	return &model.Table{Columns: names, Rows: rows}, nil
}

func (g *Generator) Attribute(name string) (any, bool) {
	switch name {
	case "Rules":
		names := make([]string, len(g.rules))
		for i, rule := range g.rules {
			names[i] = rule.Name
		}
		return names, true
	case "RuleCount":
		return len(g.rules), true
	}
	return nil, false
}
