package rulesearch

import (
	"context"
	"fmt"
	"sort"

	"rulesearch/internal/cv"
	"rulesearch/internal/model"
	"rulesearch/internal/optimizer"
	"rulesearch/internal/pipeline"
	"rulesearch/internal/space"
	"rulesearch/internal/trial"
)

// Seed offsets keep the fold split and the proposal stream on independent
// deterministic substreams of the configured seed.
const (
	splitSeedOffset    = 1000
	proposalSeedOffset = 2000
)

// Config declares one search. Pipeline is the unfit template; Spaces names
// the tunable parameters, each of which must exist on the named step.
type Config struct {
	Pipeline *Pipeline
	Spaces   SearchSpace
	Scorer   Scorer

	// CV is the stratified fold count, at least 2.
	CV int

	// NIter is the exact trial budget, at least 1.
	NIter int

	// Workers bounds concurrent fold evaluations inside a trial. Trials
	// themselves are sequential, so Workers never changes results.
	Workers int

	// ErrorScore is substituted for a fold whose terminal output is empty.
	ErrorScore float64

	// Seed makes the whole search reproducible.
	Seed int64

	// Acquisition selects the proposal scoring strategy: "ucb" (default),
	// "ei", "poi" or "thompson".
	Acquisition string

	// Observer, when set, is called after every completed trial.
	Observer Observer
}

// Search runs the cross-validated sequential search and holds the best
// configuration refit on the full data. Not safe for concurrent use.
type Search struct {
	cfg    Config
	layout *space.Layout
	optCfg optimizer.Config

	fitted    bool
	history   []model.TrialRecord
	bestIndex int
	best      *pipeline.Pipeline
}

// NewSearch validates the configuration eagerly: every declared space entry
// must name an existing step and a parameter that step declares, so a typo
// fails before any trial budget is spent.
func NewSearch(cfg Config) (*Search, error) {
	if cfg.Pipeline == nil {
		return nil, &ConfigurationError{Field: "pipeline", Reason: "is required"}
	}
	if cfg.Scorer == nil {
		return nil, &ConfigurationError{Field: "scorer", Reason: "is required"}
	}
	if cfg.CV < 2 {
		return nil, &ConfigurationError{Field: "cv", Reason: fmt.Sprintf("must be >= 2, got %d", cfg.CV)}
	}
	if cfg.NIter < 1 {
		return nil, &ConfigurationError{Field: "n_iter", Reason: fmt.Sprintf("must be >= 1, got %d", cfg.NIter)}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	steps := make([]string, 0, len(cfg.Spaces))
	for step := range cfg.Spaces {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	for _, stepName := range steps {
		step, ok := cfg.Pipeline.Step(stepName)
		if !ok {
			return nil, &ConfigurationError{Field: "spaces", Reason: fmt.Sprintf("unknown step %q", stepName)}
		}
		declared := step.Params()
		params := make([]string, 0, len(cfg.Spaces[stepName]))
		for param := range cfg.Spaces[stepName] {
			params = append(params, param)
		}
		sort.Strings(params)
		for _, param := range params {
			if _, ok := declared[param]; !ok {
				return nil, &ConfigurationError{
					Field:  "spaces",
					Reason: fmt.Sprintf("step %q declares no parameter %q", stepName, param),
				}
			}
		}
	}

	layout, err := space.NewLayout(cfg.Spaces)
	if err != nil {
		return nil, &ConfigurationError{Field: "spaces", Reason: err.Error()}
	}

	optCfg := optimizer.DefaultConfig()
	switch cfg.Acquisition {
	case "", "ucb":
		optCfg.Acquisition = optimizer.UCB
	case "ei":
		optCfg.Acquisition = optimizer.ExpectedImprovement
	case "poi":
		optCfg.Acquisition = optimizer.ProbabilityOfImprovement
	case "thompson":
		optCfg.Acquisition = optimizer.ThompsonSampling
	default:
		return nil, &ConfigurationError{Field: "acquisition", Reason: fmt.Sprintf("unknown strategy %q", cfg.Acquisition)}
	}

	return &Search{cfg: cfg, layout: layout, optCfg: optCfg}, nil
}

// Fit runs the full trial budget and refits the best configuration on the
// complete data set. A repeated Fit redoes the search from scratch.
func (s *Search) Fit(ctx context.Context, inputs *Table, labels []string) error {
	if inputs == nil {
		return fmt.Errorf("inputs are required")
	}
	if inputs.NumRows() != len(labels) {
		return fmt.Errorf("inputs have %d rows but %d labels", inputs.NumRows(), len(labels))
	}

	folds, err := cv.Split(labels, s.cfg.CV, s.cfg.Seed+splitSeedOffset)
	if err != nil {
		return err
	}

	opt, err := optimizer.New(s.layout, s.cfg.Seed+proposalSeedOffset, s.optCfg)
	if err != nil {
		return err
	}

	executor := &trial.Executor{
		Optimizer: opt,
		Evaluator: &trial.Evaluator{
			Template:   s.cfg.Pipeline,
			Scorer:     s.cfg.Scorer,
			ErrorScore: s.cfg.ErrorScore,
			Workers:    s.cfg.Workers,
		},
		NIter:    s.cfg.NIter,
		Observer: s.cfg.Observer,
	}

	s.fitted = false
	history, err := executor.Run(ctx, folds, inputs, labels)
	if err != nil {
		return err
	}

	bestIndex := bestTrial(history)
	refit, err := pipeline.Bind(s.cfg.Pipeline, history[bestIndex].Params)
	if err != nil {
		return fmt.Errorf("bind best trial: %w", err)
	}
	if err := refit.Fit(ctx, inputs, labels); err != nil {
		return fmt.Errorf("refit best trial: %w", err)
	}

	s.history = history
	s.bestIndex = bestIndex
	s.best = refit
	s.fitted = true
	return nil
}

// bestTrial picks the highest mean score; ties go to the lower score spread,
// then to the earlier trial.
func bestTrial(history []model.TrialRecord) int {
	best := 0
	for i := 1; i < len(history); i++ {
		switch {
		case history[i].MeanScore > history[best].MeanScore:
			best = i
		case history[i].MeanScore == history[best].MeanScore &&
			history[i].StddevScore < history[best].StddevScore:
			best = i
		}
	}
	return best
}

// Predict applies the refit best pipeline to new inputs.
func (s *Search) Predict(ctx context.Context, inputs *Table) (*Table, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return s.best.Predict(ctx, inputs)
}

// Fitted reports whether a search has completed successfully.
func (s *Search) Fitted() bool {
	return s.fitted
}

// History returns the trial records in trial order.
func (s *Search) History() ([]TrialRecord, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return append([]model.TrialRecord(nil), s.history...), nil
}

// BestIndex returns the winning trial's index.
func (s *Search) BestIndex() (int, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	return s.bestIndex, nil
}

// BestScore returns the winning trial's mean validation score.
func (s *Search) BestScore() (float64, error) {
	if !s.fitted {
		return 0, ErrNotFitted
	}
	return s.history[s.bestIndex].MeanScore, nil
}

// BestParams returns the winning trial's sampled parameter overrides. Step
// defaults the search never touched are not included.
func (s *Search) BestParams() (FlatParams, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return s.history[s.bestIndex].Params.Clone(), nil
}

// BestPipeline returns the best configuration refit on the full data.
func (s *Search) BestPipeline() (*Pipeline, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	return s.best, nil
}
