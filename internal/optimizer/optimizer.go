// Package optimizer implements sequential model-based search over a declared
// parameter space: a Gaussian-process surrogate of the loss surface plus an
// acquisition function choosing the next point to try.
package optimizer

import (
	"fmt"
	"math"
	"math/rand"

	"rulesearch/internal/model"
	"rulesearch/internal/space"
)

// Config controls the proposal strategy.
type Config struct {
	// InitialSamples is the number of purely random proposals made before
	// the surrogate starts steering the search.
	InitialSamples int

	// Candidates is the number of random candidates scored by the
	// acquisition function per steered proposal.
	Candidates int

	// Acquisition selects the scoring strategy. Defaults to UCB.
	Acquisition AcquisitionFunc

	// Beta and Xi parameterise the acquisition function.
	Beta float64
	Xi   float64
}

// DefaultConfig returns the settings used when the caller does not override
// the proposal strategy.
func DefaultConfig() Config {
	return Config{
		InitialSamples: 5,
		Candidates:     64,
		Acquisition:    UCB,
		Beta:           2.0,
		Xi:             0.01,
	}
}

// Optimizer proposes parameter points and learns from observed losses. Each
// proposal depends on every previously observed loss, so one Optimizer
// serves exactly one sequential search loop. Deterministic for a given seed:
// the same sequence of Observe calls yields the same sequence of proposals.
type Optimizer struct {
	layout   *space.Layout
	cfg      Config
	rng      *rand.Rand
	model    *surrogate
	bestLoss float64
	observed int
}

func New(layout *space.Layout, seed int64, cfg Config) (*Optimizer, error) {
	if layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if cfg.InitialSamples < 1 {
		cfg.InitialSamples = 1
	}
	if cfg.Candidates < 1 {
		cfg.Candidates = 1
	}
	if cfg.Acquisition == nil {
		cfg.Acquisition = UCB
	}
	return &Optimizer{
		layout:   layout,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		model:    newSurrogate(),
		bestLoss: math.MaxFloat64,
	}, nil
}

// Propose returns the next parameter point to evaluate. The bootstrap phase
// samples the space uniformly; afterwards a batch of random candidates is
// scored by the acquisition function against the surrogate and the most
// promising one wins. Integer parameters are drawn directly on their integer
// lattice, so no relaxation rounding is involved.
func (o *Optimizer) Propose() (model.FlatParams, error) {
	if o.observed < o.cfg.InitialSamples {
		return o.layout.Sample(o.rng), nil
	}

	acqParams := AcquisitionParams{
		Beta:        o.cfg.Beta,
		Xi:          o.cfg.Xi,
		BestSoFar:   o.bestLoss,
		RandomState: o.rng,
	}

	var best model.FlatParams
	bestAcquisition := math.MaxFloat64
	for i := 0; i < o.cfg.Candidates; i++ {
		candidate := o.layout.Sample(o.rng)
		encoded, err := o.layout.Encode(candidate)
		if err != nil {
			return nil, fmt.Errorf("encode candidate: %w", err)
		}
		mean, variance := o.model.Predict(encoded)
		acquisition := o.cfg.Acquisition(mean, variance, acqParams)
		if acquisition < bestAcquisition {
			bestAcquisition = acquisition
			best = candidate
		}
	}
	return best, nil
}

// Observe feeds back the loss measured at a previously proposed point. All
// finite losses are valid observations, including the uniform penalty loss
// of a trial whose every fold was degenerate.
func (o *Optimizer) Observe(params model.FlatParams, loss float64) error {
	encoded, err := o.layout.Encode(params)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	o.model.Update(encoded, loss)
	o.observed++
	if loss < o.bestLoss {
		o.bestLoss = loss
	}
	return nil
}

// Observed reports how many losses have been fed back.
func (o *Optimizer) Observed() int {
	return o.observed
}
