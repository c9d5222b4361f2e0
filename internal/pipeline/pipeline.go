package pipeline

import (
	"context"
	"fmt"

	"rulesearch/internal/model"
)

// NamedStep pairs a step with its unique name inside a pipeline.
type NamedStep struct {
	Name string
	Step Step
}

// Pipeline owns an ordered sequence of named steps. A pipeline starts unfit;
// Fit runs every step in order and only a run where every step completes
// marks the pipeline fit. Steps never hold a reference back to the pipeline.
type Pipeline struct {
	steps  []NamedStep
	fitted bool

	// deferred records, per step index, the parameters that were declared as
	// Deferred references. Resolution replaces the parameter value with a
	// literal, so the original reference is kept here to be re-resolved on
	// every Fit.
	deferred map[int]map[string]Deferred
}

func New(steps ...NamedStep) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one step")
	}
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("step %d has an empty name", i)
		}
		if s.Step == nil {
			return nil, fmt.Errorf("step %q is nil", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step name: %s", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return &Pipeline{steps: append([]NamedStep(nil), steps...)}, nil
}

// StepNames returns the step names in pipeline order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Step returns the named step.
func (p *Pipeline) Step(name string) (Step, bool) {
	for _, s := range p.steps {
		if s.Name == name {
			return s.Step, true
		}
	}
	return nil, false
}

// Fitted reports whether the last Fit completed successfully.
func (p *Pipeline) Fitted() bool {
	return p.fitted
}

// Clone returns a fresh unfit pipeline whose steps carry the same parameters
// as the receiver's.
func (p *Pipeline) Clone() *Pipeline {
	steps := make([]NamedStep, len(p.steps))
	for i, s := range p.steps {
		steps[i] = NamedStep{Name: s.Name, Step: s.Step.Clone()}
	}
	return &Pipeline{steps: steps}
}

// ApplyParams overrides step parameters with the given point, merged over
// each step's existing values. Only declared keys may be overridden; an
// unknown step or parameter name is a BindingError. Deferred values pass
// through untouched and are resolved during Fit.
func (p *Pipeline) ApplyParams(params model.FlatParams) error {
	for stepName, overrides := range params {
		step, ok := p.Step(stepName)
		if !ok {
			return &BindingError{Step: stepName, Reason: "unknown step"}
		}
		declared := step.Params()
		for name := range overrides {
			if _, ok := declared[name]; !ok {
				return &BindingError{Step: stepName, Param: name, Reason: "unknown parameter"}
			}
		}
		if err := step.SetParams(overrides); err != nil {
			return &BindingError{Step: stepName, Reason: err.Error()}
		}
	}
	return nil
}

// Bind clones the template and applies the point to the clone, leaving the
// template untouched.
func Bind(template *Pipeline, params model.FlatParams) (*Pipeline, error) {
	bound := template.Clone()
	if err := bound.ApplyParams(params); err != nil {
		return nil, err
	}
	return bound, nil
}

// Fit runs each step in order on the training data. Before step i runs, any
// Deferred parameter of step i is resolved by reading the named attribute off
// the already-fit step it references. The output of each step feeds the next
// one. An empty output table is not an error here; downstream consumers
// decide what an empty rule set means.
func (p *Pipeline) Fit(ctx context.Context, inputs *model.Table, labels []string) error {
	p.fitted = false
	p.recordDeferred()

	current := inputs
	for i, s := range p.steps {
		if err := p.resolveDeferred(i); err != nil {
			return err
		}
		if err := s.Step.Fit(ctx, current, labels); err != nil {
			return fmt.Errorf("fit step %q: %w", s.Name, err)
		}
		out, err := s.Step.Produce(ctx, current)
		if err != nil {
			return fmt.Errorf("produce step %q: %w", s.Name, err)
		}
		current = out
	}

	p.fitted = true
	return nil
}

// Predict runs every step's produce operation in order and returns the final
// step's output. The pipeline must be fit.
func (p *Pipeline) Predict(ctx context.Context, inputs *model.Table) (*model.Table, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}

	current := inputs
	for _, s := range p.steps {
		out, err := s.Step.Produce(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("produce step %q: %w", s.Name, err)
		}
		current = out
	}
	return current, nil
}

// recordDeferred scans current step parameters for Deferred values and
// remembers them, keeping references recorded on earlier fits.
func (p *Pipeline) recordDeferred() {
	if p.deferred == nil {
		p.deferred = make(map[int]map[string]Deferred)
	}
	for i, s := range p.steps {
		for name, value := range s.Step.Params() {
			ref, ok := value.(Deferred)
			if !ok {
				continue
			}
			if p.deferred[i] == nil {
				p.deferred[i] = make(map[string]Deferred)
			}
			p.deferred[i][name] = ref
		}
	}
}

func (p *Pipeline) resolveDeferred(index int) error {
	s := p.steps[index]
	for name, ref := range p.deferred[index] {
		refIndex := -1
		for j := 0; j < len(p.steps); j++ {
			if p.steps[j].Name == ref.Step {
				refIndex = j
				break
			}
		}
		if refIndex == -1 {
			return &UnresolvedReferenceError{
				Step: s.Name, Param: name, Ref: ref.Step, Attribute: ref.Attribute,
				Reason: "referenced step does not exist",
			}
		}
		if refIndex >= index {
			return &UnresolvedReferenceError{
				Step: s.Name, Param: name, Ref: ref.Step, Attribute: ref.Attribute,
				Reason: "referenced step does not precede the dependent step",
			}
		}

		provider, ok := p.steps[refIndex].Step.(AttributeProvider)
		if !ok {
			return &UnresolvedReferenceError{
				Step: s.Name, Param: name, Ref: ref.Step, Attribute: ref.Attribute,
				Reason: "referenced step exposes no attributes",
			}
		}
		resolved, ok := provider.Attribute(ref.Attribute)
		if !ok {
			return &UnresolvedReferenceError{
				Step: s.Name, Param: name, Ref: ref.Step, Attribute: ref.Attribute,
				Reason: "referenced step has no such attribute after fit",
			}
		}
		if err := s.Step.SetParams(map[string]any{name: resolved}); err != nil {
			return &UnresolvedReferenceError{
				Step: s.Name, Param: name, Ref: ref.Step, Attribute: ref.Attribute,
				Reason: err.Error(),
			}
		}
	}
	return nil
}
