// Package stats writes search run artifacts and maintains the run index on
// disk.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"rulesearch/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts is everything written for one completed search run.
type RunArtifacts struct {
	Config     model.RunConfig     `json:"config"`
	History    []model.TrialRecord `json:"history"`
	BestIndex  int                 `json:"best_index"`
	BestScore  float64             `json:"best_score"`
	BestParams model.FlatParams    `json:"best_params"`
}

// RunIndexEntry is one line of the append-only run index.
type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Dataset      string  `json:"dataset,omitempty"`
	CV           int     `json:"cv"`
	NIter        int     `json:"n_iter"`
	Workers      int     `json:"workers"`
	Seed         int64   `json:"seed"`
	BestScore    float64 `json:"best_score"`
}

// WriteRunArtifacts writes the run's files under baseDir/<run id> and
// returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "history.json"), artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "best.json"), map[string]any{
		"best_index":  artifacts.BestIndex,
		"best_score":  artifacts.BestScore,
		"best_params": artifacts.BestParams,
	}); err != nil {
		return "", err
	}

	return runDir, nil
}

// ReadRunArtifacts loads a run's files back from baseDir/<run id>.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, error) {
	runDir := filepath.Join(baseDir, runID)

	var artifacts RunArtifacts
	if err := readJSON(filepath.Join(runDir, "config.json"), &artifacts.Config); err != nil {
		return RunArtifacts{}, err
	}
	if err := readJSON(filepath.Join(runDir, "history.json"), &artifacts.History); err != nil {
		return RunArtifacts{}, err
	}
	var best struct {
		BestIndex  int              `json:"best_index"`
		BestScore  float64          `json:"best_score"`
		BestParams model.FlatParams `json:"best_params"`
	}
	if err := readJSON(filepath.Join(runDir, "best.json"), &best); err != nil {
		return RunArtifacts{}, err
	}
	artifacts.BestIndex = best.BestIndex
	artifacts.BestScore = best.BestScore
	artifacts.BestParams = best.BestParams
	return artifacts, nil
}

// AppendRunIndex inserts or replaces the entry for its run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index entries, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "history.json", "best.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
