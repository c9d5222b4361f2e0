package trial

import (
	"context"
	"fmt"

	"rulesearch/internal/cv"
	"rulesearch/internal/model"
	"rulesearch/internal/optimizer"
)

// Observer is notified after each completed trial.
type Observer func(record model.TrialRecord)

// Executor runs the fixed trial budget. Proposals are inherently sequential,
// since each one depends on every earlier observed loss, so trials run one
// at a time; the configured worker parallelism applies to the fold
// evaluations inside each trial. Any non-degenerate fault aborts the
// remaining budget.
type Executor struct {
	Optimizer *optimizer.Optimizer
	Evaluator *Evaluator
	NIter     int
	Observer  Observer
}

// Run evaluates exactly NIter trials and returns their records in trial
// order. The optimiser's loss is the negated mean score, so minimising loss
// maximises the score.
func (x *Executor) Run(ctx context.Context, folds []cv.Fold, inputs *model.Table, labels []string) ([]model.TrialRecord, error) {
	if x.NIter < 1 {
		return nil, fmt.Errorf("trial budget must be >= 1, got %d", x.NIter)
	}

	records := make([]model.TrialRecord, 0, x.NIter)
	for i := 0; i < x.NIter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params, err := x.Optimizer.Propose()
		if err != nil {
			return nil, fmt.Errorf("trial %d: propose: %w", i, err)
		}

		record, err := x.Evaluator.Evaluate(ctx, params, folds, inputs, labels)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}
		record.Index = i

		if err := x.Optimizer.Observe(params, -record.MeanScore); err != nil {
			return nil, fmt.Errorf("trial %d: observe: %w", i, err)
		}

		records = append(records, record)
		if x.Observer != nil {
			x.Observer(record)
		}
	}
	return records, nil
}
