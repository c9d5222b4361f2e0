package rulesearch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"rulesearch/internal/dataset"
	"rulesearch/internal/model"
	"rulesearch/internal/stats"
	"rulesearch/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "rulesearch.db"
)

// Options configure a Client: which store backs run persistence and where
// run artifacts live.
type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
}

// Client runs searches over CSV datasets with the stock rule pipeline and
// persists their results to the store and the artifacts directory.
type Client struct {
	store storage.Store

	benchmarksDir string
	exportsDir    string
}

// RunRequest describes one search over a CSV file. Zero values fall back to
// the defaults noted per field.
type RunRequest struct {
	// DataPath points at the CSV file. The label column is the named one,
	// or the last column when LabelColumn is empty.
	DataPath    string
	HasHeader   bool
	LabelColumn string

	CV      int   // folds, default 3
	NIter   int   // trial budget, default 20
	Workers int   // fold workers, default 1
	Seed    int64 // default 0

	// ErrorScore is the penalty substituted for a degenerate fold. The
	// stock metrics live in [0, 1], so the default of -1 ranks any fully
	// degenerate trial below every real one.
	ErrorScore  *float64
	Metric      string // "f1" (default), "f0.5" or "accuracy"
	Acquisition string // proposal strategy, default "ucb"

	// RunID overrides the generated id, mainly for tests.
	RunID string

	// Observer, when set, is called after every completed trial.
	Observer Observer
}

// RunSummary is the caller-facing outcome of one search run.
type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Trials       int
	BestIndex    int
	BestScore    float64
	BestParams   FlatParams
}

// RunItem is one row of the run listing, newest first.
type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Dataset      string
	CV           int
	NIter        int
	Workers      int
	Seed         int64
	BestScore    float64
}

// ExportRequest selects one run to copy out of the artifacts directory.
type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

// ExportSummary reports where an export landed.
type ExportSummary struct {
	RunID     string
	Directory string
}

// NewClient opens the configured store. Close releases it.
func NewClient(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run executes one full search over the request's CSV file, persists the
// run record and artifacts, and returns the summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.DataPath == "" {
		return RunSummary{}, errors.New("data path is required")
	}
	if req.CV <= 0 {
		req.CV = 3
	}
	if req.NIter <= 0 {
		req.NIter = 20
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	errorScore := -1.0
	if req.ErrorScore != nil {
		errorScore = *req.ErrorScore
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	inputs, labels, err := dataset.LoadFile(req.DataPath, dataset.Options{
		HasHeader:   req.HasHeader,
		LabelColumn: req.LabelColumn,
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("load dataset: %w", err)
	}

	template, err := DefaultPipeline()
	if err != nil {
		return RunSummary{}, err
	}
	scorer, err := ScorerFromName(req.Metric)
	if err != nil {
		return RunSummary{}, err
	}
	spaces := DefaultSpaces()

	search, err := NewSearch(Config{
		Pipeline:    template,
		Spaces:      spaces,
		Scorer:      scorer,
		CV:          req.CV,
		NIter:       req.NIter,
		Workers:     req.Workers,
		ErrorScore:  errorScore,
		Seed:        req.Seed,
		Acquisition: req.Acquisition,
		Observer:    req.Observer,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := search.Fit(ctx, inputs, labels); err != nil {
		return RunSummary{}, err
	}

	history, _ := search.History()
	bestIndex, _ := search.BestIndex()
	bestScore, _ := search.BestScore()
	bestParams, _ := search.BestParams()

	now := time.Now().UTC()
	runConfig := model.RunConfig{
		RunID:        runID,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		Dataset:      filepath.Base(req.DataPath),
		CV:           req.CV,
		NIter:        req.NIter,
		Workers:      req.Workers,
		Seed:         req.Seed,
		ErrorScore:   errorScore,
		Spaces:       spaces,
	}
	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		Config:     runConfig,
		History:    history,
		BestIndex:  bestIndex,
		BestScore:  bestScore,
		BestParams: bestParams,
	}

	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	scores := make([]float64, len(history))
	for i, trial := range history {
		scores[i] = trial.MeanScore
	}
	if err := c.store.SaveScoreHistory(ctx, runID, scores); err != nil {
		return RunSummary{}, fmt.Errorf("save score history: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:     runConfig,
		History:    history,
		BestIndex:  bestIndex,
		BestScore:  bestScore,
		BestParams: bestParams,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:        runID,
		CreatedAtUTC: runConfig.CreatedAtUTC,
		Dataset:      runConfig.Dataset,
		CV:           req.CV,
		NIter:        req.NIter,
		Workers:      req.Workers,
		Seed:         req.Seed,
		BestScore:    bestScore,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Trials:       len(history),
		BestIndex:    bestIndex,
		BestScore:    bestScore,
		BestParams:   bestParams,
	}, nil
}

// Runs lists the most recent runs from the index, newest first.
func (c *Client) Runs(_ context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Dataset:      e.Dataset,
			CV:           e.CV,
			NIter:        e.NIter,
			Workers:      e.Workers,
			Seed:         e.Seed,
			BestScore:    e.BestScore,
		})
	}
	return out, nil
}

// Run returns a persisted run record by id, or the most recent one when
// latest is set.
func (c *Client) GetRun(ctx context.Context, runID string, latest bool) (RunRecord, error) {
	id, err := c.resolveRunID(ctx, runID, latest)
	if err != nil {
		return RunRecord{}, err
	}
	record, ok, err := c.store.GetRun(ctx, id)
	if err != nil {
		return RunRecord{}, err
	}
	if !ok {
		return RunRecord{}, fmt.Errorf("run %s not found", id)
	}
	return record, nil
}

// ScoreHistory returns the persisted per-trial mean scores of one run.
func (c *Client) ScoreHistory(ctx context.Context, runID string, latest bool) ([]float64, error) {
	id, err := c.resolveRunID(ctx, runID, latest)
	if err != nil {
		return nil, err
	}
	scores, ok, err := c.store.GetScoreHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run %s has no score history", id)
	}
	return scores, nil
}

// Export copies one run's artifacts into the export directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(_ context.Context, runID string, latest bool) (string, error) {
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
