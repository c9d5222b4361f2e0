// Package cv builds stratified train/validation partitions for k-fold
// cross-validation.
package cv

import (
	"fmt"
	"math/rand"
	"sort"
)

// Fold is one train/validation partition. Validation sets across the k folds
// are disjoint and cover every row exactly once.
type Fold struct {
	Train      []int
	Validation []int
}

// InsufficientDataError reports a label class with fewer members than the
// requested fold count.
type InsufficientDataError struct {
	Class string
	Count int
	K     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("class %q has %d examples, need at least %d for %d folds",
		e.Class, e.Count, e.K, e.K)
}

// Split partitions the rows behind the label vector into k stratified folds.
// Rows of each class are shuffled with the seeded generator and dealt
// round-robin across folds, so each fold's class proportions approximate the
// global ones. The assignment is deterministic for a given seed and label
// order.
func Split(labels []string, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("fold count must be >= 2, got %d", k)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label vector is empty")
	}

	byClass := make(map[string][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]string, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		if len(byClass[class]) < k {
			return nil, &InsufficientDataError{Class: class, Count: len(byClass[class]), K: k}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	validation := make([][]int, k)
	for _, class := range classes {
		indices := append([]int(nil), byClass[class]...)
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for pos, idx := range indices {
			fold := pos % k
			validation[fold] = append(validation[fold], idx)
		}
	}

	folds := make([]Fold, k)
	for f := 0; f < k; f++ {
		sort.Ints(validation[f])
		inValidation := make(map[int]struct{}, len(validation[f]))
		for _, idx := range validation[f] {
			inValidation[idx] = struct{}{}
		}
		train := make([]int, 0, len(labels)-len(validation[f]))
		for i := range labels {
			if _, ok := inValidation[i]; !ok {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Validation: validation[f]}
	}
	return folds, nil
}
