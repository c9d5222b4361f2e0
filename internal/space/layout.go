// Package space validates declared search spaces and gives them a stable
// key order so sampled points can be encoded as fixed-length vectors for the
// surrogate model.
package space

import (
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/exp/constraints"

	"rulesearch/internal/model"
)

// Key identifies one tunable parameter inside a search space.
type Key struct {
	Step  string
	Param string
}

func (k Key) String() string {
	return k.Step + "." + k.Param
}

// Layout is a validated search space with a deterministic key order. The
// order is sorted by step then parameter name so the same space always maps
// to the same vector layout regardless of map iteration order.
type Layout struct {
	keys  []Key
	dists []model.Distribution
}

// NewLayout validates the space and freezes its key order.
func NewLayout(spaces model.SearchSpace) (*Layout, error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("search space must declare at least one parameter")
	}

	keys := make([]Key, 0)
	for step, params := range spaces {
		if step == "" {
			return nil, fmt.Errorf("search space step name must not be empty")
		}
		if len(params) == 0 {
			return nil, fmt.Errorf("search space for step %q declares no parameters", step)
		}
		for name := range params {
			if name == "" {
				return nil, fmt.Errorf("search space for step %q has an empty parameter name", step)
			}
			keys = append(keys, Key{Step: step, Param: name})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Step != keys[j].Step {
			return keys[i].Step < keys[j].Step
		}
		return keys[i].Param < keys[j].Param
	})

	dists := make([]model.Distribution, len(keys))
	for i, key := range keys {
		dist := spaces[key.Step][key.Param]
		if err := validateDistribution(dist); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		dists[i] = dist
	}

	return &Layout{keys: keys, dists: dists}, nil
}

func validateDistribution(d model.Distribution) error {
	switch d.Kind {
	case model.UniformFloatKind:
		if !(d.Lo < d.Hi) {
			return fmt.Errorf("uniform float requires lo < hi, got [%v, %v]", d.Lo, d.Hi)
		}
	case model.UniformIntKind:
		if !(d.IntLo < d.IntHi) {
			return fmt.Errorf("uniform int requires lo < hi, got [%d, %d]", d.IntLo, d.IntHi)
		}
	case model.ChoiceKind:
		if len(d.Choices) == 0 {
			return fmt.Errorf("choice requires at least one value")
		}
	default:
		return fmt.Errorf("unknown distribution kind: %q", d.Kind)
	}
	return nil
}

// Keys returns the frozen key order.
func (l *Layout) Keys() []Key {
	return append([]Key(nil), l.keys...)
}

// Dimensions reports the number of tunable parameters.
func (l *Layout) Dimensions() int {
	return len(l.keys)
}

// Sample draws one point from every declared distribution. Integer
// parameters are drawn directly on the inclusive integer lattice, so no
// rounding from a continuous relaxation is involved.
func (l *Layout) Sample(rng *rand.Rand) model.FlatParams {
	out := make(model.FlatParams)
	for i, key := range l.keys {
		if out[key.Step] == nil {
			out[key.Step] = make(map[string]any)
		}
		out[key.Step][key.Param] = sampleDistribution(rng, l.dists[i])
	}
	return out
}

func sampleDistribution(rng *rand.Rand, d model.Distribution) any {
	switch d.Kind {
	case model.UniformFloatKind:
		return d.Lo + rng.Float64()*(d.Hi-d.Lo)
	case model.UniformIntKind:
		return d.IntLo + rng.Int63n(d.IntHi-d.IntLo+1)
	default:
		return d.Choices[rng.Intn(len(d.Choices))]
	}
}

// Encode maps a sampled point to a normalized vector in [0, 1]^d following
// the frozen key order. Categorical values encode as their choice index
// scaled by the support size.
func (l *Layout) Encode(params model.FlatParams) ([]float64, error) {
	vec := make([]float64, len(l.keys))
	for i, key := range l.keys {
		stepParams, ok := params[key.Step]
		if !ok {
			return nil, fmt.Errorf("point is missing step %q", key.Step)
		}
		value, ok := stepParams[key.Param]
		if !ok {
			return nil, fmt.Errorf("point is missing parameter %s", key)
		}
		encoded, err := encodeValue(value, l.dists[i])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		vec[i] = encoded
	}
	return vec, nil
}

func encodeValue(value any, d model.Distribution) (float64, error) {
	switch d.Kind {
	case model.UniformFloatKind:
		v, ok := value.(float64)
		if !ok {
			return 0, fmt.Errorf("expected float64, got %T", value)
		}
		return normalize(v, d.Lo, d.Hi), nil
	case model.UniformIntKind:
		v, ok := value.(int64)
		if !ok {
			return 0, fmt.Errorf("expected int64, got %T", value)
		}
		return normalize(v, d.IntLo, d.IntHi), nil
	default:
		for i, choice := range d.Choices {
			if choice == value {
				if len(d.Choices) == 1 {
					return 0, nil
				}
				return float64(i) / float64(len(d.Choices)-1), nil
			}
		}
		return 0, fmt.Errorf("value %v is not in the choice support", value)
	}
}

// normalize maps v from [lo, hi] onto [0, 1].
func normalize[T constraints.Integer | constraints.Float](v, lo, hi T) float64 {
	return (float64(v) - float64(lo)) / (float64(hi) - float64(lo))
}
