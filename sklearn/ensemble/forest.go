// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	"github.com/ezoic/firearea/core/parallel"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/sklearn/tree"
)

// RandomForestRegressor averages regression trees fitted on bootstrap samples.
//
// Every source of randomness (bootstrap draws and per-tree feature order) is
// derived from the forest seed before any tree is fitted, so the result does
// not depend on how the trees are scheduled across goroutines.
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	bootstrap       bool
	randomState     uint64
	nJobs           int

	trees               []*tree.DecisionTreeRegressor
	featureImportances_ []float64
	logger              log.Logger
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees (default 100).
func WithNEstimators(n int) Option {
	return func(rf *RandomForestRegressor) { rf.nEstimators = n }
}

// WithMaxDepth limits the depth of each tree (0 = unlimited).
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestRegressor) { rf.maxDepth = depth }
}

// WithMinSamplesLeaf sets the per-leaf minimum of each tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestRegressor) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures limits features tried per split (0 = all).
func WithMaxFeatures(n int) Option {
	return func(rf *RandomForestRegressor) { rf.maxFeatures = n }
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees all rows.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestRegressor) { rf.bootstrap = b }
}

// WithRandomState sets the forest seed.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestRegressor) { rf.randomState = seed }
}

// WithNJobs bounds concurrent tree fitting (<= 0 means GOMAXPROCS).
func WithNJobs(n int) Option {
	return func(rf *RandomForestRegressor) { rf.nJobs = n }
}

// NewRandomForestRegressor creates a forest with sklearn's regression defaults:
// 100 fully grown trees, bootstrap on, all features per split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:           model.NewStateManager(),
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		logger:          log.GetLoggerWithName("RandomForestRegressor"),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit trains the forest.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext trains the forest, stopping early if ctx is cancelled.
func (rf *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer fireErrors.Recover(&err, "RandomForestRegressor.Fit")

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return fireErrors.NewModelError("RandomForestRegressor.Fit", "empty data", fireErrors.ErrEmptyData)
	}
	if rf.nEstimators <= 0 {
		return fireErrors.NewValueError("RandomForestRegressor.Fit",
			fmt.Sprintf("n_estimators must be positive, got %d", rf.nEstimators))
	}

	start := time.Now()
	rng := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	samples := make([][]int, rf.nEstimators)
	seeds := make([]uint64, rf.nEstimators)
	for t := range samples {
		seeds[t] = rng.Uint64()
		s := make([]int, nSamples)
		for i := range s {
			if rf.bootstrap {
				s[i] = rng.IntN(nSamples)
			} else {
				s[i] = i
			}
		}
		samples[t] = s
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.nEstimators)
	err = parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, t int) error {
		dt := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(seeds[t]),
		)
		if err := dt.FitSample(X, y, samples[t]); err != nil {
			return fireErrors.Wrapf(err, "fitting tree %d", t)
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return err
	}

	importances := make([]float64, nFeatures)
	for _, dt := range trees {
		for j, v := range dt.FeatureImportances() {
			importances[j] += v
		}
	}
	sum := 0.0
	for _, v := range importances {
		sum += v
	}
	if sum > 0 {
		for j := range importances {
			importances[j] /= sum
		}
	}

	rf.trees = trees
	rf.featureImportances_ = importances
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()

	rf.logger.Debug("Random forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.nEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict averages the predictions of all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, fireErrors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	nSamples, nFeatures := X.Dims()
	want, _ := rf.state.Dimensions()
	if nFeatures != want {
		return nil, fireErrors.NewDimensionError("RandomForestRegressor.Predict", want, nFeatures, 1)
	}

	out := mat.NewDense(nSamples, 1, nil)
	for _, dt := range rf.trees {
		p, err := dt.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(rf.trees)), out)
	return out, nil
}

// FeatureImportances returns the mean impurity importance across trees,
// normalised to sum to 1.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	if rf.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), rf.featureImportances_...)
}

// NEstimators returns the configured number of trees.
func (rf *RandomForestRegressor) NEstimators() int {
	return rf.nEstimators
}

// GetParams returns the model hyperparameters
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
	}
}

var (
	_ model.Regressor          = (*RandomForestRegressor)(nil)
	_ model.FeatureImportancer = (*RandomForestRegressor)(nil)
)
