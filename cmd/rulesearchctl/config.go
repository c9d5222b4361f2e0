package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"rulesearch/pkg/rulesearch"
)

// loadRunRequestFromConfig reads run settings from a JSON file. Unknown keys
// are rejected so a typoed setting never silently falls back to a default.
func loadRunRequestFromConfig(path string) (rulesearch.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rulesearch.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return rulesearch.RunRequest{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	known := map[string]bool{
		"data_path": true, "has_header": true, "label_column": true,
		"cv": true, "n_iter": true, "workers": true, "seed": true,
		"error_score": true, "metric": true, "acquisition": true, "run_id": true,
	}
	for key := range raw {
		if !known[key] {
			return rulesearch.RunRequest{}, fmt.Errorf("config %s: unknown key %q", path, key)
		}
	}

	var req rulesearch.RunRequest
	if v, ok := asString(raw["data_path"]); ok {
		req.DataPath = v
	}
	if v, ok := asBool(raw["has_header"]); ok {
		req.HasHeader = v
	}
	if v, ok := asString(raw["label_column"]); ok {
		req.LabelColumn = v
	}
	if v, ok := asInt(raw["cv"]); ok {
		req.CV = v
	}
	if v, ok := asInt(raw["n_iter"]); ok {
		req.NIter = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["seed"]); ok {
		req.Seed = int64(v)
	}
	if v, ok := asFloat64(raw["error_score"]); ok {
		score := v
		req.ErrorScore = &score
	}
	if v, ok := asString(raw["metric"]); ok {
		req.Metric = v
	}
	if v, ok := asString(raw["acquisition"]); ok {
		req.Acquisition = v
	}
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	return req, nil
}

// applyFlagOverrides copies flag values over the config-file request. With
// no config file every flag applies; with one, only flags the caller set
// explicitly override it.
func applyFlagOverrides(req *rulesearch.RunRequest, fs *flag.FlagSet, hadConfig bool,
	dataPath string, hasHeader bool, labelColumn string,
	cv, nIter, workers int, seed int64, errorScore float64,
	metric, acquisition, runID string) {

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	use := func(name string) bool { return !hadConfig || set[name] }

	if use("data") {
		req.DataPath = dataPath
	}
	if use("header") {
		req.HasHeader = hasHeader
	}
	if use("label-column") {
		req.LabelColumn = labelColumn
	}
	if use("cv") {
		req.CV = cv
	}
	if use("n-iter") {
		req.NIter = nIter
	}
	if use("workers") {
		req.Workers = workers
	}
	if use("seed") {
		req.Seed = seed
	}
	if use("error-score") {
		score := errorScore
		req.ErrorScore = &score
	}
	if use("metric") {
		req.Metric = metric
	}
	if use("acquisition") {
		req.Acquisition = acquisition
	}
	if use("run-id") {
		req.RunID = runID
	}
}

func asString(value any) (string, bool) {
	v, ok := value.(string)
	return v, ok
}

func asBool(value any) (bool, bool) {
	v, ok := value.(bool)
	return v, ok
}

func asInt(value any) (int, bool) {
	v, ok := value.(float64)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func asFloat64(value any) (float64, bool) {
	v, ok := value.(float64)
	return v, ok
}
