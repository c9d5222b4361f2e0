package rulesearch

import (
	"fmt"

	"rulesearch/internal/rules"
)

// DefaultPipeline builds the stock four-stage rule pipeline: quantile
// threshold generation, precision filtering, correlated rule reduction and a
// vote decision reading its rule list from the reducer.
func DefaultPipeline() (*Pipeline, error) {
	return NewPipeline(
		NamedStep{Name: "generate", Step: rules.NewGenerator()},
		NamedStep{Name: "filter", Step: rules.NewPrecisionFilter()},
		NamedStep{Name: "reduce", Step: rules.NewCorrelationReducer()},
		NamedStep{Name: "decide", Step: rules.NewVoteDecision(Defer("reduce", "Rules"))},
	)
}

// DefaultSpaces is the search space tuned against DefaultPipeline.
func DefaultSpaces() SearchSpace {
	return SearchSpace{
		"generate": {
			"num_thresholds": UniformInt(2, 8),
			"directions":     Choice("gte", "lte", "both"),
		},
		"filter": {
			"min_precision": UniformFloat(0.5, 1.0),
			"min_coverage":  UniformFloat(0.0, 0.2),
		},
		"reduce": {
			"max_overlap": UniformFloat(0.5, 1.0),
		},
		"decide": {
			"min_votes": UniformInt(1, 3),
		},
	}
}

// ScorerFromName maps a metric name onto its scorer: "accuracy", "f1" or
// "f0.5".
func ScorerFromName(name string) (Scorer, error) {
	switch name {
	case "", "f1":
		return rules.FBeta(1.0), nil
	case "f0.5":
		return rules.FBeta(0.5), nil
	case "accuracy":
		return rules.Accuracy, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}
