package storage

import (
	"context"

	"rulesearch/internal/model"
)

// Store persists completed search runs and their per-trial score history.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRunIDs(ctx context.Context) ([]string, error)
	SaveScoreHistory(ctx context.Context, runID string, scores []float64) error
	GetScoreHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
