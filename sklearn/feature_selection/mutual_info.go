// Package feature_selection scores features against a continuous target.
package feature_selection

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"

	"github.com/ezoic/firearea/core/parallel"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

type miConfig struct {
	nNeighbors  int
	randomState uint64
	nJobs       int
}

// MIOption configures MutualInfoRegression.
type MIOption func(*miConfig)

// WithNNeighbors sets k, the neighbour count of the estimator (default 3).
func WithNNeighbors(k int) MIOption {
	return func(c *miConfig) { c.nNeighbors = k }
}

// WithRandomState seeds the jitter added to break ties.
func WithRandomState(seed uint64) MIOption {
	return func(c *miConfig) { c.randomState = seed }
}

// WithNJobs bounds the number of features scored concurrently.
func WithNJobs(n int) MIOption {
	return func(c *miConfig) { c.nJobs = n }
}

// MutualInfoRegression estimates the mutual information, in nats, between each
// column of X and the continuous target y.
//
// It uses the Kraskov-Stögbauer-Grassberger k-nearest-neighbour estimator in
// the max-norm. Columns and the target are scaled to unit variance and a tiny
// seeded jitter is added so tied values do not produce zero-radius balls.
// Estimates are clipped at zero.
//
// Parameters:
//   - X: n_samples × n_features
//   - y: target values, length n_samples
//
// Returns one non-negative score per column.
//
// Example:
//
//	mi, err := feature_selection.MutualInfoRegression(X, y, feature_selection.WithRandomState(42))
func MutualInfoRegression(X mat.Matrix, y mat.Vector, opts ...MIOption) (scores []float64, err error) {
	defer fireErrors.Recover(&err, "MutualInfoRegression")

	cfg := miConfig{nNeighbors: 3}
	for _, opt := range opts {
		opt(&cfg)
	}

	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, fireErrors.NewModelError("MutualInfoRegression", "empty data", fireErrors.ErrEmptyData)
	}
	if y.Len() != n {
		return nil, fireErrors.NewDimensionError("MutualInfoRegression", n, y.Len(), 0)
	}
	if cfg.nNeighbors < 1 || cfg.nNeighbors >= n {
		return nil, fireErrors.NewValueError("MutualInfoRegression",
			fmt.Sprintf("n_neighbors must be in [1, %d), got %d", n, cfg.nNeighbors))
	}

	rng := rand.New(rand.NewPCG(cfg.randomState, cfg.randomState))

	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = scaleUnitVariance(mat.Col(nil, j, X))
	}
	// Jitter is drawn column by column, then for the target, so scores are
	// reproducible regardless of NJobs.
	for j := 0; j < p; j++ {
		addJitter(cols[j], rng)
	}
	target := make([]float64, n)
	for i := range target {
		target[i] = y.AtVec(i)
	}
	target = scaleUnitVariance(target)
	addJitter(target, rng)

	scores = make([]float64, p)
	err = parallel.ForEach(context.Background(), p, cfg.nJobs, func(_ context.Context, j int) error {
		scores[j] = miContinuous(cols[j], target, cfg.nNeighbors)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// scaleUnitVariance divides by the population standard deviation without
// centring. A zero-variance column is returned unchanged.
func scaleUnitVariance(v []float64) []float64 {
	n := float64(len(v))
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= n
	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / n)
	out := make([]float64, len(v))
	for i, x := range v {
		if sd == 0 {
			out[i] = x
		} else {
			out[i] = x / sd
		}
	}
	return out
}

func addJitter(v []float64, rng *rand.Rand) {
	var meanAbs float64
	for _, x := range v {
		meanAbs += math.Abs(x)
	}
	meanAbs /= float64(len(v))
	amp := 1e-10 * math.Max(1, meanAbs)
	for i := range v {
		v[i] += amp * rng.NormFloat64()
	}
}

// miContinuous is the KSG estimate for two continuous variables:
//
//	ψ(n) + ψ(k) - <ψ(nx+1)> - <ψ(ny+1)>
//
// where for each point the radius is the distance to its k-th neighbour in
// the joint max-norm, and nx, ny count other points within that radius in
// each marginal.
func miContinuous(x, y []float64, k int) float64 {
	n := len(x)
	dist := make([]float64, 0, n-1)
	var sumX, sumY float64

	for i := 0; i < n; i++ {
		dist = dist[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dist = append(dist, math.Max(math.Abs(x[i]-x[j]), math.Abs(y[i]-y[j])))
		}
		radius := kthSmallest(dist, k)
		radius = math.Nextafter(radius, 0)

		nx, ny := 0, 0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if math.Abs(x[i]-x[j]) <= radius {
				nx++
			}
			if math.Abs(y[i]-y[j]) <= radius {
				ny++
			}
		}
		sumX += mathext.Digamma(float64(nx + 1))
		sumY += mathext.Digamma(float64(ny + 1))
	}

	mi := mathext.Digamma(float64(n)) + mathext.Digamma(float64(k)) - sumX/float64(n) - sumY/float64(n)
	return math.Max(0, mi)
}

// kthSmallest returns the k-th smallest value (1-based) of v, reordering v.
func kthSmallest(v []float64, k int) float64 {
	lo, hi := 0, len(v)-1
	target := k - 1
	for lo < hi {
		pivot := v[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for v[i] < pivot {
				i++
			}
			for v[j] > pivot {
				j--
			}
			if i <= j {
				v[i], v[j] = v[j], v[i]
				i++
				j--
			}
		}
		switch {
		case target <= j:
			hi = j
		case target >= i:
			lo = i
		default:
			return v[target]
		}
	}
	return v[target]
}
