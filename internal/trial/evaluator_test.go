package trial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"rulesearch/internal/cv"
	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// constStep emits one "pred" column filled with its "output" parameter, or
// an empty table when "output" is negative.
type constStep struct {
	params map[string]any
}

func newConstStep(output float64) *constStep {
	return &constStep{params: map[string]any{"output": output}}
}

func (s *constStep) Params() map[string]any {
	out := make(map[string]any, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

func (s *constStep) SetParams(params map[string]any) error {
	for k, v := range params {
		if _, ok := s.params[k]; !ok {
			return fmt.Errorf("unknown parameter: %s", k)
		}
		s.params[k] = v
	}
	return nil
}

func (s *constStep) Clone() pipeline.Step {
	clone := newConstStep(0)
	for k, v := range s.params {
		clone.params[k] = v
	}
	return clone
}

func (s *constStep) Fit(context.Context, *model.Table, []string) error { return nil }

func (s *constStep) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	output, ok := s.params["output"].(float64)
	if !ok {
		return nil, fmt.Errorf("output is not a float64: %v", s.params["output"])
	}
	if output < 0 {
		return &model.Table{Rows: make([][]float64, inputs.NumRows())}, nil
	}
	rows := make([][]float64, inputs.NumRows())
	for i := range rows {
		rows[i] = []float64{output}
	}
	return &model.Table{Columns: []string{"pred"}, Rows: rows}, nil
}

func evaluatorFixture(t *testing.T, output float64, scorer Scorer, workers int) (*Evaluator, []cv.Fold, *model.Table, []string) {
	t.Helper()

	template, err := pipeline.New(pipeline.NamedStep{Name: "decision", Step: newConstStep(output)})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	labels := make([]string, 12)
	rows := make([][]float64, 12)
	for i := range labels {
		if i%2 == 0 {
			labels[i] = "0"
		} else {
			labels[i] = "1"
		}
		rows[i] = []float64{float64(i)}
	}
	inputs := &model.Table{Columns: []string{"f"}, Rows: rows}

	folds, err := cv.Split(labels, 3, 1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	return &Evaluator{
		Template:   template,
		Scorer:     scorer,
		ErrorScore: -1.0,
		Workers:    workers,
	}, folds, inputs, labels
}

func TestEvaluateAggregatesFoldScores(t *testing.T) {
	// Score each fold by its first validation label so folds disagree.
	scorer := func(predictions *model.Table, labels []string) (float64, error) {
		if labels[0] == "0" {
			return 1.0, nil
		}
		return 0.5, nil
	}
	evaluator, folds, inputs, labels := evaluatorFixture(t, 1.0, scorer, 1)

	record, err := evaluator.Evaluate(context.Background(), model.FlatParams{"decision": {"output": 1.0}}, folds, inputs, labels)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(record.FoldScores) != 3 || len(record.FoldIDs) != 3 {
		t.Fatalf("unexpected fold counts: %+v", record)
	}

	var mean float64
	for _, s := range record.FoldScores {
		mean += s
	}
	mean /= 3
	if math.Abs(record.MeanScore-mean) > 1e-12 {
		t.Fatalf("mean mismatch: %v vs %v", record.MeanScore, mean)
	}

	var sumSquares float64
	for _, s := range record.FoldScores {
		sumSquares += (s - mean) * (s - mean)
	}
	if math.Abs(record.StddevScore-math.Sqrt(sumSquares/3)) > 1e-12 {
		t.Fatalf("stddev mismatch: %v", record.StddevScore)
	}
	if record.DegenerateFold != 0 {
		t.Fatalf("no fold should be degenerate: %+v", record)
	}
}

func TestEvaluateAllDegenerateFoldsUseErrorScore(t *testing.T) {
	scorer := func(*model.Table, []string) (float64, error) {
		return 0, errors.New("scorer must not run on degenerate folds")
	}
	evaluator, folds, inputs, labels := evaluatorFixture(t, -1.0, scorer, 2)

	record, err := evaluator.Evaluate(context.Background(), model.FlatParams{}, folds, inputs, labels)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if record.MeanScore != evaluator.ErrorScore {
		t.Fatalf("mean should equal the error score: %v", record.MeanScore)
	}
	if record.StddevScore != 0 {
		t.Fatalf("uniform scores should have zero stddev: %v", record.StddevScore)
	}
	if record.DegenerateFold != len(folds) {
		t.Fatalf("expected every fold degenerate: %+v", record)
	}
}

func TestEvaluateParallelMatchesSerial(t *testing.T) {
	scorer := func(predictions *model.Table, labels []string) (float64, error) {
		return float64(len(labels)), nil
	}
	params := model.FlatParams{"decision": {"output": 2.0}}

	serial, folds, inputs, labels := evaluatorFixture(t, 1.0, scorer, 1)
	serialRecord, err := serial.Evaluate(context.Background(), params, folds, inputs, labels)
	if err != nil {
		t.Fatalf("serial evaluate: %v", err)
	}

	parallel, folds, inputs, labels := evaluatorFixture(t, 1.0, scorer, 3)
	parallelRecord, err := parallel.Evaluate(context.Background(), params, folds, inputs, labels)
	if err != nil {
		t.Fatalf("parallel evaluate: %v", err)
	}

	if !reflect.DeepEqual(serialRecord, parallelRecord) {
		t.Fatalf("parallelism changed results:\n%+v\n%+v", serialRecord, parallelRecord)
	}
}

func TestEvaluatePropagatesScorerFault(t *testing.T) {
	scorer := func(*model.Table, []string) (float64, error) {
		return 0, errors.New("boom")
	}
	evaluator, folds, inputs, labels := evaluatorFixture(t, 1.0, scorer, 2)

	if _, err := evaluator.Evaluate(context.Background(), model.FlatParams{}, folds, inputs, labels); err == nil {
		t.Fatal("expected scorer fault to abort the trial")
	}
}

func TestEvaluatePropagatesBindingError(t *testing.T) {
	scorer := func(*model.Table, []string) (float64, error) { return 1, nil }
	evaluator, folds, inputs, labels := evaluatorFixture(t, 1.0, scorer, 1)

	var bindErr *pipeline.BindingError
	_, err := evaluator.Evaluate(context.Background(), model.FlatParams{"ghost": {"output": 1.0}}, folds, inputs, labels)
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingError, got %v", err)
	}
}
