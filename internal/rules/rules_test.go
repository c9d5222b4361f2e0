package rules

import (
	"context"
	"testing"

	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// separableTable has positives exactly where x >= 10.
func separableTable() (*model.Table, []string) {
	rows := make([][]float64, 20)
	labels := make([]string, 20)
	for i := 0; i < 20; i++ {
		rows[i] = []float64{float64(i), float64(20 - i)}
		if i >= 10 {
			labels[i] = "1"
		} else {
			labels[i] = "0"
		}
	}
	return &model.Table{Columns: []string{"x", "y"}, Rows: rows}, labels
}

func TestGeneratorBuildsActivationTable(t *testing.T) {
	ctx := context.Background()
	inputs, labels := separableTable()

	g := NewGenerator()
	if err := g.SetParams(map[string]any{"num_thresholds": int64(2), "directions": "gte"}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := g.Fit(ctx, inputs, labels); err != nil {
		t.Fatalf("fit: %v", err)
	}

	out, err := g.Produce(ctx, inputs)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if out.NumRows() != inputs.NumRows() {
		t.Fatalf("row count changed: %d", out.NumRows())
	}
	// Two columns with two cut points each, gte direction only.
	if out.NumColumns() != 4 {
		t.Fatalf("expected 4 rule columns, got %d: %v", out.NumColumns(), out.Columns)
	}
	for _, row := range out.Rows {
		for _, v := range row {
			if v != 0 && v != 1 {
				t.Fatalf("activation must be binary, got %v", v)
			}
		}
	}

	count, ok := g.Attribute("RuleCount")
	if !ok || count.(int) != 4 {
		t.Fatalf("unexpected RuleCount attribute: %v ok=%v", count, ok)
	}
}

func TestGeneratorRejectsBadParams(t *testing.T) {
	ctx := context.Background()
	inputs, labels := separableTable()

	g := NewGenerator()
	if err := g.SetParams(map[string]any{"directions": "sideways"}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := g.Fit(ctx, inputs, labels); err == nil {
		t.Fatal("expected error for unknown direction")
	}
	if err := g.SetParams(map[string]any{"ghost": 1}); err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}

func TestPrecisionFilterKeepsPreciseRules(t *testing.T) {
	ctx := context.Background()
	_, labels := separableTable()

	// perfect fires exactly on the positives, noisy fires everywhere.
	ruleTable := &model.Table{
		Columns: []string{"perfect", "noisy"},
		Rows:    make([][]float64, 20),
	}
	for i := 0; i < 20; i++ {
		perfect := 0.0
		if labels[i] == "1" {
			perfect = 1.0
		}
		ruleTable.Rows[i] = []float64{perfect, 1.0}
	}

	f := NewPrecisionFilter()
	if err := f.SetParams(map[string]any{"min_precision": 0.9}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := f.Fit(ctx, ruleTable, labels); err != nil {
		t.Fatalf("fit: %v", err)
	}

	out, err := f.Produce(ctx, ruleTable)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if out.NumColumns() != 1 || out.Columns[0] != "perfect" {
		t.Fatalf("expected only the precise rule, got %v", out.Columns)
	}
}

func TestPrecisionFilterCanKeepNothing(t *testing.T) {
	ctx := context.Background()
	inputs, labels := separableTable()

	g := NewGenerator()
	if err := g.Fit(ctx, inputs, labels); err != nil {
		t.Fatalf("fit generator: %v", err)
	}
	ruleTable, err := g.Produce(ctx, inputs)
	if err != nil {
		t.Fatalf("produce rules: %v", err)
	}

	f := NewPrecisionFilter()
	if err := f.SetParams(map[string]any{"min_precision": 1.1}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := f.Fit(ctx, ruleTable, labels); err != nil {
		t.Fatalf("fit filter: %v", err)
	}

	out, err := f.Produce(ctx, ruleTable)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if !out.Empty() {
		t.Fatalf("impossible threshold should keep nothing: %v", out.Columns)
	}
	if out.NumRows() != ruleTable.NumRows() {
		t.Fatalf("empty output must preserve row count: %d", out.NumRows())
	}
}

func TestCorrelationReducerDropsDuplicates(t *testing.T) {
	ctx := context.Background()

	rows := make([][]float64, 10)
	for i := range rows {
		a := float64(i % 2)
		b := 1 - a
		rows[i] = []float64{a, a, b}
	}
	ruleTable := &model.Table{Columns: []string{"a", "a_copy", "b"}, Rows: rows}

	r := NewCorrelationReducer()
	if err := r.SetParams(map[string]any{"max_overlap": 0.8}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := r.Fit(ctx, ruleTable, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}

	out, err := r.Produce(ctx, ruleTable)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if out.NumColumns() != 2 || out.Columns[0] != "a" || out.Columns[1] != "b" {
		t.Fatalf("expected duplicate dropped, got %v", out.Columns)
	}

	kept, ok := r.Attribute("Rules")
	if !ok {
		t.Fatal("expected Rules attribute")
	}
	if names := kept.([]string); len(names) != 2 {
		t.Fatalf("unexpected kept rules: %v", names)
	}
}

func TestVoteDecisionPredictsByVotes(t *testing.T) {
	ctx := context.Background()

	ruleTable := &model.Table{
		Columns: []string{"r1", "r2"},
		Rows:    [][]float64{{1, 1}, {1, 0}, {0, 0}},
	}

	d := NewVoteDecision([]string{"r1", "r2"})
	if err := d.SetParams(map[string]any{"min_votes": int64(2)}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if err := d.Fit(ctx, ruleTable, nil); err != nil {
		t.Fatalf("fit: %v", err)
	}

	out, err := d.Produce(ctx, ruleTable)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	want := []float64{1, 0, 0}
	for i, row := range out.Rows {
		if row[0] != want[i] {
			t.Fatalf("row %d: got %v want %v", i, row[0], want[i])
		}
	}
}

func TestVoteDecisionRejectsUnknownRule(t *testing.T) {
	ctx := context.Background()
	ruleTable := &model.Table{Columns: []string{"r1"}, Rows: [][]float64{{1}}}

	d := NewVoteDecision([]string{"ghost"})
	if err := d.Fit(ctx, ruleTable, nil); err == nil {
		t.Fatal("expected error for unknown rule column")
	}
}

func TestFullRulePipelineWithDeferredRules(t *testing.T) {
	ctx := context.Background()
	inputs, labels := separableTable()

	p, err := pipeline.New(
		pipeline.NamedStep{Name: "generate", Step: NewGenerator()},
		pipeline.NamedStep{Name: "filter", Step: NewPrecisionFilter()},
		pipeline.NamedStep{Name: "reduce", Step: NewCorrelationReducer()},
		pipeline.NamedStep{Name: "decide", Step: NewVoteDecision(pipeline.Defer("reduce", "Rules"))},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.ApplyParams(model.FlatParams{
		"filter": {"min_precision": 0.8, "min_coverage": 0.1},
		"reduce": {"max_overlap": 0.95},
	}); err != nil {
		t.Fatalf("apply params: %v", err)
	}

	if err := p.Fit(ctx, inputs, labels); err != nil {
		t.Fatalf("fit: %v", err)
	}
	predictions, err := p.Predict(ctx, inputs)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if predictions.NumRows() != inputs.NumRows() {
		t.Fatalf("prediction count mismatch: %d", predictions.NumRows())
	}

	score, err := Accuracy(predictions, labels)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if score < 0.7 {
		t.Fatalf("separable data should score well, got %v", score)
	}
}

func TestScorers(t *testing.T) {
	predictions := &model.Table{
		Columns: []string{"prediction"},
		Rows:    [][]float64{{1}, {1}, {0}, {0}},
	}
	labels := []string{"1", "0", "0", "1"}

	accuracy, err := Accuracy(predictions, labels)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if accuracy != 0.5 {
		t.Fatalf("unexpected accuracy: %v", accuracy)
	}

	// One TP, one FP, one FN: F1 = 2*1 / (2*1 + 1 + 1) = 0.5.
	f1, err := FBeta(1.0)(predictions, labels)
	if err != nil {
		t.Fatalf("fbeta: %v", err)
	}
	if f1 != 0.5 {
		t.Fatalf("unexpected f1: %v", f1)
	}

	allNegative := &model.Table{
		Columns: []string{"prediction"},
		Rows:    [][]float64{{0}, {0}, {0}, {0}},
	}
	zero, err := FBeta(1.0)(allNegative, labels)
	if err != nil {
		t.Fatalf("fbeta all negative: %v", err)
	}
	if zero != 0 {
		t.Fatalf("all-negative predictions should score zero: %v", zero)
	}

	if _, err := Accuracy(&model.Table{Columns: []string{"a", "b"}}, nil); err == nil {
		t.Fatal("expected error for multi-column predictions")
	}
}
