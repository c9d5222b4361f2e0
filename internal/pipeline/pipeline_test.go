package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rulesearch/internal/model"
)

// fakeStep multiplies every cell by its "scale" parameter and exposes the
// number of rows it was fit on as attribute "FitRows".
type fakeStep struct {
	params  map[string]any
	fitRows int
	fitted  bool
}

func newFakeStep(scale float64) *fakeStep {
	return &fakeStep{params: map[string]any{"scale": scale}}
}

func (s *fakeStep) Params() map[string]any {
	out := make(map[string]any, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

func (s *fakeStep) SetParams(params map[string]any) error {
	for k, v := range params {
		if _, ok := s.params[k]; !ok {
			return fmt.Errorf("unknown parameter: %s", k)
		}
		s.params[k] = v
	}
	return nil
}

func (s *fakeStep) Clone() Step {
	clone := &fakeStep{params: make(map[string]any, len(s.params))}
	for k, v := range s.params {
		clone.params[k] = v
	}
	return clone
}

func (s *fakeStep) Fit(_ context.Context, inputs *model.Table, _ []string) error {
	s.fitRows = inputs.NumRows()
	s.fitted = true
	return nil
}

func (s *fakeStep) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	scale, ok := s.params["scale"].(float64)
	if !ok {
		return nil, fmt.Errorf("scale is not a float64: %v", s.params["scale"])
	}
	rows := make([][]float64, len(inputs.Rows))
	for r, row := range inputs.Rows {
		out := make([]float64, len(row))
		for c, v := range row {
			out[c] = v * scale
		}
		rows[r] = out
	}
	return &model.Table{Columns: inputs.Columns, Rows: rows}, nil
}

func (s *fakeStep) Attribute(name string) (any, bool) {
	if name == "FitRows" {
		return float64(s.fitRows), true
	}
	return nil, false
}

// blindStep has parameters but exposes no attributes.
type blindStep struct{ fakeStep }

func newBlindStep(scale float64) *blindStep {
	return &blindStep{fakeStep{params: map[string]any{"scale": scale}}}
}

func (s *blindStep) Clone() Step {
	clone := newBlindStep(0)
	for k, v := range s.params {
		clone.params[k] = v
	}
	return clone
}

func (s *blindStep) Attribute(string) (any, bool) { return nil, false }

// emptyStep drops every column, simulating a filter that keeps nothing.
type emptyStep struct{ fakeStep }

func newEmptyStep() *emptyStep {
	return &emptyStep{fakeStep{params: map[string]any{}}}
}

func (s *emptyStep) Clone() Step { return newEmptyStep() }

func (s *emptyStep) Produce(_ context.Context, inputs *model.Table) (*model.Table, error) {
	return &model.Table{Rows: make([][]float64, len(inputs.Rows))}, nil
}

func testTable() *model.Table {
	return &model.Table{
		Columns: []string{"a", "b"},
		Rows:    [][]float64{{1, 2}, {3, 4}, {5, 6}},
	}
}

func TestNewValidatesStepNames(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error for empty pipeline")
	}
	if _, err := New(NamedStep{Name: "", Step: newFakeStep(1)}); err == nil {
		t.Fatal("expected error for empty step name")
	}
	if _, err := New(
		NamedStep{Name: "s", Step: newFakeStep(1)},
		NamedStep{Name: "s", Step: newFakeStep(2)},
	); err == nil {
		t.Fatal("expected error for duplicate step name")
	}
}

func TestApplyParamsMergesOverDefaults(t *testing.T) {
	p, err := New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "second", Step: newFakeStep(2)},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.ApplyParams(model.FlatParams{"first": {"scale": 3.0}}); err != nil {
		t.Fatalf("apply params: %v", err)
	}

	first, _ := p.Step("first")
	if got := first.Params()["scale"]; got != 3.0 {
		t.Fatalf("override not applied: %v", got)
	}
	second, _ := p.Step("second")
	if got := second.Params()["scale"]; got != 2.0 {
		t.Fatalf("default should be kept: %v", got)
	}
}

func TestApplyParamsRejectsUnknownTargets(t *testing.T) {
	p, err := New(NamedStep{Name: "first", Step: newFakeStep(1)})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	var bindErr *BindingError
	if err := p.ApplyParams(model.FlatParams{"ghost": {"scale": 1.0}}); !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingError for unknown step, got %v", err)
	}
	if err := p.ApplyParams(model.FlatParams{"first": {"ghost": 1.0}}); !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingError for unknown parameter, got %v", err)
	}
}

func TestBindLeavesTemplateUntouched(t *testing.T) {
	template, err := New(NamedStep{Name: "first", Step: newFakeStep(1)})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	bound, err := Bind(template, model.FlatParams{"first": {"scale": 9.0}})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	templateStep, _ := template.Step("first")
	if got := templateStep.Params()["scale"]; got != 1.0 {
		t.Fatalf("template mutated: %v", got)
	}
	boundStep, _ := bound.Step("first")
	if got := boundStep.Params()["scale"]; got != 9.0 {
		t.Fatalf("bound clone missing override: %v", got)
	}
	if bound.Fitted() {
		t.Fatal("bound clone must start unfit")
	}
}

func TestFitChainsStepOutputs(t *testing.T) {
	p, err := New(
		NamedStep{Name: "double", Step: newFakeStep(2)},
		NamedStep{Name: "triple", Step: newFakeStep(3)},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Fit(context.Background(), testTable(), []string{"0", "1", "0"}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := p.Predict(context.Background(), testTable())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got := out.Rows[0][0]; got != 6.0 {
		t.Fatalf("expected chained 2x then 3x scaling, got %v", got)
	}
	if out.NumRows() != 3 {
		t.Fatalf("row count changed: %d", out.NumRows())
	}
}

func TestPredictBeforeFitFails(t *testing.T) {
	p, err := New(NamedStep{Name: "first", Step: newFakeStep(1)})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := p.Predict(context.Background(), testTable()); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
}

func TestFitResolvesDeferredFromEarlierStep(t *testing.T) {
	second := newFakeStep(1)
	if err := second.SetParams(map[string]any{"scale": Defer("first", "FitRows")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err := New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "second", Step: second},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Fit(context.Background(), testTable(), []string{"0", "1", "0"}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	// FitRows is 3, so the second step scales by 3.
	out, err := p.Predict(context.Background(), testTable())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got := out.Rows[0][0]; got != 3.0 {
		t.Fatalf("deferred scale not applied: %v", got)
	}
}

func TestFitReResolvesDeferredOnRefit(t *testing.T) {
	second := newFakeStep(1)
	if err := second.SetParams(map[string]any{"scale": Defer("first", "FitRows")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err := New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "second", Step: second},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Fit(context.Background(), testTable(), []string{"0", "1", "0"}); err != nil {
		t.Fatalf("fit: %v", err)
	}

	smaller := &model.Table{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}}}
	if err := p.Fit(context.Background(), smaller, []string{"0"}); err != nil {
		t.Fatalf("refit: %v", err)
	}
	out, err := p.Predict(context.Background(), smaller)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got := out.Rows[0][0]; got != 1.0 {
		t.Fatalf("refit should re-resolve FitRows=1, got scale result %v", got)
	}
}

func TestFitRejectsBadDeferredReferences(t *testing.T) {
	ctx := context.Background()
	labels := []string{"0", "1", "0"}

	// Forward reference.
	first := newFakeStep(1)
	if err := first.SetParams(map[string]any{"scale": Defer("second", "FitRows")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err := New(
		NamedStep{Name: "first", Step: first},
		NamedStep{Name: "second", Step: newFakeStep(1)},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	var refErr *UnresolvedReferenceError
	if err := p.Fit(ctx, testTable(), labels); !errors.As(err, &refErr) {
		t.Fatalf("expected UnresolvedReferenceError for forward reference, got %v", err)
	}
	if p.Fitted() {
		t.Fatal("failed fit must leave the pipeline unfit")
	}

	// Unknown step.
	second := newFakeStep(1)
	if err := second.SetParams(map[string]any{"scale": Defer("ghost", "FitRows")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err = New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "second", Step: second},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Fit(ctx, testTable(), labels); !errors.As(err, &refErr) {
		t.Fatalf("expected UnresolvedReferenceError for unknown step, got %v", err)
	}

	// Unknown attribute.
	second = newFakeStep(1)
	if err := second.SetParams(map[string]any{"scale": Defer("first", "Ghost")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err = New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "second", Step: second},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Fit(ctx, testTable(), labels); !errors.As(err, &refErr) {
		t.Fatalf("expected UnresolvedReferenceError for unknown attribute, got %v", err)
	}

	// Referenced step exposes no attributes.
	second = newFakeStep(1)
	if err := second.SetParams(map[string]any{"scale": Defer("first", "FitRows")}); err != nil {
		t.Fatalf("set deferred: %v", err)
	}
	p, err = New(
		NamedStep{Name: "first", Step: newBlindStep(1)},
		NamedStep{Name: "second", Step: second},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Fit(ctx, testTable(), labels); err == nil {
		t.Fatal("expected error when referenced step exposes no attributes")
	}
}

func TestEmptyStepOutputIsNotAnError(t *testing.T) {
	p, err := New(
		NamedStep{Name: "first", Step: newFakeStep(1)},
		NamedStep{Name: "drop", Step: newEmptyStep()},
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Fit(context.Background(), testTable(), []string{"0", "1", "0"}); err != nil {
		t.Fatalf("fit with empty output: %v", err)
	}
	out, err := p.Predict(context.Background(), testTable())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !out.Empty() {
		t.Fatal("expected empty terminal output")
	}
}
