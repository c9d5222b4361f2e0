package rules

import (
	"fmt"

	"rulesearch/internal/model"
)

// Accuracy scores the share of rows whose prediction matches the label.
func Accuracy(predictions *model.Table, labels []string) (float64, error) {
	predicted, err := predictedLabels(predictions, labels)
	if err != nil {
		return 0, err
	}
	var correct int
	for i, p := range predicted {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// FBeta builds an F-beta scorer on the positive class. beta > 1 weighs
// recall higher, beta < 1 weighs precision higher. All-negative predictions
// score zero.
func FBeta(beta float64) func(*model.Table, []string) (float64, error) {
	betaSquared := beta * beta
	return func(predictions *model.Table, labels []string) (float64, error) {
		predicted, err := predictedLabels(predictions, labels)
		if err != nil {
			return 0, err
		}

		var truePositives, falsePositives, falseNegatives float64
		for i, p := range predicted {
			switch {
			case p == PositiveLabel && labels[i] == PositiveLabel:
				truePositives++
			case p == PositiveLabel:
				falsePositives++
			case labels[i] == PositiveLabel:
				falseNegatives++
			}
		}

		denominator := (1+betaSquared)*truePositives + betaSquared*falseNegatives + falsePositives
		if denominator == 0 {
			return 0, nil
		}
		return (1 + betaSquared) * truePositives / denominator, nil
	}
}

func predictedLabels(predictions *model.Table, labels []string) ([]string, error) {
	if predictions.NumColumns() != 1 {
		return nil, fmt.Errorf("expected a single prediction column, got %d", predictions.NumColumns())
	}
	if predictions.NumRows() != len(labels) {
		return nil, fmt.Errorf("prediction count %d does not match label count %d", predictions.NumRows(), len(labels))
	}
	out := make([]string, len(labels))
	for i, row := range predictions.Rows {
		if row[0] >= 0.5 {
			out[i] = PositiveLabel
		} else {
			out[i] = "0"
		}
	}
	return out, nil
}
