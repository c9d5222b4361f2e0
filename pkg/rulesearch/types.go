// Package rulesearch is the public surface of the search engine: declare a
// pipeline and a search space, run the cross-validated Bayesian search, then
// predict with the best configuration refit on the full data.
package rulesearch

import (
	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
	"rulesearch/internal/trial"
)

// Core data types re-exported for callers.
type (
	Table        = model.Table
	Distribution = model.Distribution
	SearchSpace  = model.SearchSpace
	FlatParams   = model.FlatParams
	TrialRecord  = model.TrialRecord
	RunRecord    = model.RunRecord

	Step      = pipeline.Step
	NamedStep = pipeline.NamedStep
	Pipeline  = pipeline.Pipeline
	Deferred  = pipeline.Deferred

	Scorer   = trial.Scorer
	Observer = trial.Observer
)

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = pipeline.ErrNotFitted

// UniformFloat declares a continuous uniform distribution on [lo, hi).
func UniformFloat(lo, hi float64) Distribution { return model.UniformFloat(lo, hi) }

// UniformInt declares a discrete uniform distribution on [lo, hi] inclusive.
func UniformInt(lo, hi int64) Distribution { return model.UniformInt(lo, hi) }

// Choice declares a categorical distribution over the given values.
func Choice(values ...any) Distribution { return model.Choice(values...) }

// NewPipeline builds a pipeline from named steps. Names must be unique and
// non-empty.
func NewPipeline(steps ...NamedStep) (*Pipeline, error) { return pipeline.New(steps...) }

// Defer marks a parameter value to be read from an earlier step's attribute
// during Fit instead of being bound up front.
func Defer(step, attribute string) Deferred { return pipeline.Defer(step, attribute) }
