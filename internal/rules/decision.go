package rules

import (
	"context"
	"fmt"

	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// VoteDecision predicts the positive class for rows on which at least
// min_votes of its rules fire. The rule list is usually a Deferred reference
// to the upstream reducer's post-fit Rules attribute, resolved by the
// pipeline before this step fits.
//
// Parameters:
//   - rules: rule column names to vote over
//   - min_votes: firing rules required for a positive prediction
type VoteDecision struct {
	params map[string]any
	rules  []string
}

func NewVoteDecision(rules any) *VoteDecision {
	return &VoteDecision{params: map[string]any{
		"rules":     rules,
		"min_votes": int64(1),
	}}
}

func (d *VoteDecision) Params() map[string]any {
	return cloneParams(d.params)
}

func (d *VoteDecision) SetParams(params map[string]any) error {
	return setKnownParams(d.params, params)
}

func (d *VoteDecision) Clone() pipeline.Step {
	return &VoteDecision{params: cloneParams(d.params)}
}

func (d *VoteDecision) Fit(_ context.Context, inputs *model.Table, _ []string) error {
	ruleNames, ok := asStrings(d.params["rules"])
	if !ok {
		return fmt.Errorf("rules must be a string list, got %T", d.params["rules"])
	}
	for _, name := range ruleNames {
		if _, ok := inputs.ColumnIndex(name); !ok {
			return fmt.Errorf("input table is missing rule column %q", name)
		}
	}
	d.rules = ruleNames
	return nil
}

func (d *VoteDecision) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	minVotes, ok := asInt(d.params["min_votes"])
	if !ok || minVotes < 1 {
		return nil, fmt.Errorf("min_votes must be a positive integer, got %v", d.params["min_votes"])
	}

	// No surviving rules means no usable decision model.
	if len(d.rules) == 0 {
		return &model.Table{Rows: make([][]float64, inputs.NumRows())}, nil
	}

	indices := make([]int, len(d.rules))
	for i, name := range d.rules {
		idx, ok := inputs.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("input table is missing rule column %q", name)
		}
		indices[i] = idx
	}

	rows := make([][]float64, len(inputs.Rows))
	for r, row := range inputs.Rows {
		var votes int64
		for _, idx := range indices {
			if row[idx] >= 0.5 {
				votes++
			}
		}
		prediction := 0.0
		if votes >= minVotes {
			prediction = 1.0
		}
		rows[r] = []float64{prediction}
	}
	return &model.Table{Columns: []string{"prediction"}, Rows: rows}, nil
}
