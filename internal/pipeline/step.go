// Package pipeline runs an ordered sequence of named processing steps with
// fit/produce semantics and resolves cross-step parameter references at fit
// time.
package pipeline

import (
	"context"

	"rulesearch/internal/model"
)

// Step is the capability contract for one pipeline unit. Fit trains the unit
// on a table and its aligned labels; Produce maps a table to the table
// consumed by the next step. Implementations own their parameters: SetParams
// must reject unknown keys, and Clone must return a fresh unfit instance
// carrying the same parameters.
type Step interface {
	Params() map[string]any
	SetParams(params map[string]any) error
	Clone() Step
	Fit(ctx context.Context, inputs *model.Table, labels []string) error
	Produce(ctx context.Context, inputs *model.Table) (*model.Table, error)
}

// AttributeProvider is optionally implemented by steps that expose named
// post-fit state readable through Deferred parameter values.
type AttributeProvider interface {
	Attribute(name string) (any, bool)
}

// Deferred is a parameter value resolved during fit from another step's
// post-fit state instead of being supplied directly. The referenced step must
// precede the dependent step in pipeline order.
type Deferred struct {
	Step      string
	Attribute string
}

// Defer builds a Deferred reference to attribute attr of the step named step.
func Defer(step, attr string) Deferred {
	return Deferred{Step: step, Attribute: attr}
}
