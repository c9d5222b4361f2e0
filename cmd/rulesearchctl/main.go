package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"rulesearch/internal/stats"
	"rulesearch/internal/storage"
	"rulesearch/pkg/rulesearch"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*rulesearch.Client, error) {
	return rulesearch.NewClient(rulesearch.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON file with run settings; flags override it")
	dataPath := fs.String("data", "", "CSV dataset path")
	hasHeader := fs.Bool("header", true, "dataset has a header row")
	labelColumn := fs.String("label-column", "", "label column name, default last column")
	cvFolds := fs.Int("cv", 3, "stratified fold count")
	nIter := fs.Int("n-iter", 20, "trial budget")
	workers := fs.Int("workers", 1, "concurrent fold evaluations per trial")
	seed := fs.Int64("seed", 0, "search seed")
	errorScore := fs.Float64("error-score", -1, "score substituted for degenerate folds")
	metric := fs.String("metric", "f1", "scoring metric: f1|f0.5|accuracy")
	acquisition := fs.String("acquisition", "ucb", "proposal strategy: ucb|ei|poi|thompson")
	runID := fs.String("run-id", "", "explicit run id, default generated")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "print each trial as it completes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req rulesearch.RunRequest
	hadConfig := *configPath != ""
	if hadConfig {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	}
	applyFlagOverrides(&req, fs, hadConfig, *dataPath, *hasHeader, *labelColumn, *cvFolds, *nIter, *workers, *seed, *errorScore, *metric, *acquisition, *runID)
	if req.DataPath == "" {
		return errors.New("run requires -data or a config with data_path")
	}
	if *verbose {
		req.Observer = func(record rulesearch.TrialRecord) {
			fmt.Printf("trial %d mean=%.4f stddev=%.4f degenerate=%d\n",
				record.Index, record.MeanScore, record.StddevScore, record.DegenerateFold)
		}
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run %s finished: %d trials, best trial %d scored %.4f\n",
		summary.RunID, summary.Trials, summary.BestIndex, summary.BestScore)
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	fmt.Printf("best params: %s\n", stats.FormatParams(summary.BestParams))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, item := range items {
		fmt.Printf("%s %s dataset=%s cv=%d n_iter=%d seed=%d best=%.4f\n",
			item.RunID, item.CreatedAtUTC, item.Dataset, item.CV, item.NIter, item.Seed, item.BestScore)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.GetRun(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record.History)
	}
	fmt.Print(stats.HistoryTable(record.History))
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit best trial as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.GetRun(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"run_id":      record.Config.RunID,
			"best_index":  record.BestIndex,
			"best_score":  record.BestScore,
			"best_params": record.BestParams,
		})
	}
	fmt.Printf("run %s best trial %d scored %.4f\n", record.Config.RunID, record.BestIndex, record.BestScore)
	fmt.Printf("best params: %s\n", stats.FormatParams(record.BestParams))
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "output directory, default "+exportsDir)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "rulesearch.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, rulesearch.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run %s to %s\n", summary.RunID, summary.Directory)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: rulesearchctl <init|run|runs|history|best|export> [flags]", msg)
}
