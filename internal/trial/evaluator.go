// Package trial evaluates candidate parameter sets across cross-validation
// folds and drives the sequential search loop.
package trial

import (
	"context"
	"fmt"
	"math"
	"sync"

	"rulesearch/internal/cv"
	"rulesearch/internal/model"
	"rulesearch/internal/pipeline"
)

// Scorer maps predictions to a higher-is-better score against the true
// labels. It must be pure and deterministic.
type Scorer func(predictions *model.Table, labels []string) (float64, error)

// Evaluator scores one parameter set across all folds. Each fold gets its
// own pipeline clone fit on the fold's training rows and applied to its
// validation rows. A fold whose terminal output is empty is degenerate: it
// is scored with ErrorScore instead of failing the trial.
type Evaluator struct {
	Template   *pipeline.Pipeline
	Scorer     Scorer
	ErrorScore float64

	// Workers bounds the number of folds evaluated concurrently. Folds share
	// no mutable state. Values below 1 mean serial evaluation.
	Workers int
}

// Evaluate runs the full cross-validation for one parameter set and reduces
// the per-fold scores to a TrialRecord. Binding failures and unexpected step
// faults abort the trial; only the empty-output condition is absorbed.
func (e *Evaluator) Evaluate(ctx context.Context, params model.FlatParams, folds []cv.Fold, inputs *model.Table, labels []string) (model.TrialRecord, error) {
	if len(folds) == 0 {
		return model.TrialRecord{}, fmt.Errorf("at least one fold is required")
	}

	type job struct {
		idx  int
		fold cv.Fold
	}
	type result struct {
		idx        int
		score      float64
		degenerate bool
		err        error
	}

	jobs := make(chan job)
	results := make(chan result, len(folds))

	workerCount := e.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > len(folds) {
		workerCount = len(folds)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				score, degenerate, err := e.evaluateFold(ctx, params, j.fold, inputs, labels)
				results <- result{idx: j.idx, score: score, degenerate: degenerate, err: err}
			}
		}()
	}

	for i := range folds {
		jobs <- job{idx: i, fold: folds[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	scores := make([]float64, len(folds))
	foldIDs := make([]int, len(folds))
	degenerateCount := 0
	for res := range results {
		if res.err != nil {
			return model.TrialRecord{}, res.err
		}
		scores[res.idx] = res.score
		foldIDs[res.idx] = res.idx
		if res.degenerate {
			degenerateCount++
		}
	}

	mean, stddev := meanAndStddev(scores)
	return model.TrialRecord{
		Params:         params.Clone(),
		FoldIDs:        foldIDs,
		FoldScores:     scores,
		MeanScore:      mean,
		StddevScore:    stddev,
		DegenerateFold: degenerateCount,
	}, nil
}

func (e *Evaluator) evaluateFold(ctx context.Context, params model.FlatParams, fold cv.Fold, inputs *model.Table, labels []string) (float64, bool, error) {
	bound, err := pipeline.Bind(e.Template, params)
	if err != nil {
		return 0, false, err
	}

	trainInputs, err := inputs.SelectRows(fold.Train)
	if err != nil {
		return 0, false, err
	}
	trainLabels, err := model.SelectLabels(labels, fold.Train)
	if err != nil {
		return 0, false, err
	}
	if err := bound.Fit(ctx, trainInputs, trainLabels); err != nil {
		return 0, false, err
	}

	validationInputs, err := inputs.SelectRows(fold.Validation)
	if err != nil {
		return 0, false, err
	}
	predictions, err := bound.Predict(ctx, validationInputs)
	if err != nil {
		return 0, false, err
	}
	if predictions.Empty() {
		return e.ErrorScore, true, nil
	}

	validationLabels, err := model.SelectLabels(labels, fold.Validation)
	if err != nil {
		return 0, false, err
	}
	score, err := e.Scorer(predictions, validationLabels)
	if err != nil {
		return 0, false, fmt.Errorf("scorer: %w", err)
	}
	return score, false, nil
}

// meanAndStddev reduces the per-fold scores to their mean and population
// standard deviation.
func meanAndStddev(scores []float64) (mean, stddev float64) {
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	var sumSquares float64
	for _, s := range scores {
		diff := s - mean
		sumSquares += diff * diff
	}
	return mean, math.Sqrt(sumSquares / float64(len(scores)))
}
