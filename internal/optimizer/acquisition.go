package optimizer

import (
	"math"
	"math/rand"
)

// AcquisitionFunc scores how promising a candidate point is given the
// surrogate's mean and variance there. Lower values are more promising; the
// search minimises loss.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams carries the knobs shared by the built-in acquisition
// functions.
type AcquisitionParams struct {
	// Beta weighs the variance term in UCB. Higher values explore more.
	Beta float64

	// Xi is the minimum improvement margin used by the improvement-based
	// functions.
	Xi float64

	// BestSoFar is the lowest loss observed so far.
	BestSoFar float64

	// RandomState drives Thompson sampling.
	RandomState *rand.Rand
}

// UCB is the lower confidence bound: mean - beta*sqrt(variance).
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(variance)
}

// ProbabilityOfImprovement scores the chance of beating the best observed
// loss by at least Xi. Negated so lower remains better.
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		if mean < params.BestSoFar-params.Xi {
			return -1
		}
		return 0
	}
	z := (params.BestSoFar - params.Xi - mean) / sigma
	return -normalCDF(z)
}

// ExpectedImprovement scores the expected margin below the best observed
// loss. Negated so lower remains better.
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	improvement := params.BestSoFar - params.Xi - mean
	if sigma == 0 {
		if improvement > 0 {
			return -improvement
		}
		return 0
	}
	z := improvement / sigma
	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling draws one sample from the posterior at the point.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(variance)*params.RandomState.NormFloat64()
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}
