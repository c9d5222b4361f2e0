package optimizer

import "math"

// surrogate is a lightweight Gaussian-process regression model over the
// encoded parameter space. It predicts the loss at untried points from the
// points observed so far, using an RBF kernel. It is driven only by the
// orchestrating goroutine and is not safe for concurrent use.
type surrogate struct {
	points [][]float64
	losses []float64
	sigma  float64
}

func newSurrogate() *surrogate {
	return &surrogate{sigma: 1.0}
}

// kernel is the RBF similarity between two encoded points:
// exp(-||x1-x2||^2 / (2*sigma^2)).
func (s *surrogate) kernel(x1, x2 []float64) float64 {
	var sum float64
	for i := range x1 {
		diff := x1[i] - x2[i]
		sum += diff * diff
	}
	return math.Exp(-sum / (2 * s.sigma * s.sigma))
}

// Predict estimates the loss mean and the prediction variance at x. With no
// observations it returns a flat prior of (0, 1).
func (s *surrogate) Predict(x []float64) (mean, variance float64) {
	if len(s.points) == 0 {
		return 0, 1
	}

	k := make([]float64, len(s.points))
	for i := range s.points {
		k[i] = s.kernel(x, s.points[i])
	}

	var sum float64
	for i := range s.points {
		sum += k[i] * s.losses[i]
	}
	mean = sum / float64(len(s.points))

	variance = 1.0
	for i := range s.points {
		for j := range s.points {
			variance -= k[i] * k[j] / float64(len(s.points))
		}
	}
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// Update adds one observation. The point is copied so callers may reuse the
// slice.
func (s *surrogate) Update(x []float64, loss float64) {
	point := make([]float64, len(x))
	copy(point, x)
	s.points = append(s.points, point)
	s.losses = append(s.losses, loss)
}
