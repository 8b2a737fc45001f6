// Package selection ranks candidate features against the burned-area target.
//
// The ranking is advisory: it is logged and handed to observers, but the
// feature list used for training is always the one written in the experiment
// configuration.
package selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/sklearn/ensemble"
	"github.com/ezoic/firearea/sklearn/feature_selection"
)

// Score is the evidence collected for one feature.
type Score struct {
	Feature      string  `json:"feature"`
	RFImportance float64 `json:"rf_importance"`
	MutualInfo   float64 `json:"mutual_info"`
	Correlation  float64 `json:"correlation"` // Pearson r with the target, NaN for constant columns
}

// Ranking is sorted by RFImportance, highest first.
type Ranking []Score

// Features returns the feature names in rank order.
func (r Ranking) Features() []string {
	out := make([]string, len(r))
	for i, s := range r {
		out[i] = s.Feature
	}
	return out
}

// Top returns the k best features by RF importance.
func (r Ranking) Top(k int) []string {
	k = max(0, min(k, len(r)))
	return r[:k].Features()
}

// Above returns features whose RF importance is at least threshold.
func (r Ranking) Above(threshold float64) []string {
	var out []string
	for _, s := range r {
		if s.RFImportance >= threshold {
			out = append(out, s.Feature)
		}
	}
	return out
}

// Lookup returns the score of one feature.
func (r Ranking) Lookup(feature string) (Score, bool) {
	for _, s := range r {
		if s.Feature == feature {
			return s, true
		}
	}
	return Score{}, false
}

// String renders the ranking as an aligned table.
func (r Ranking) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %12s %12s %12s\n", "feature", "rf", "mi", "corr")
	for _, s := range r {
		fmt.Fprintf(&b, "%-8s %12.4f %12.4f %12.4f\n", s.Feature, s.RFImportance, s.MutualInfo, s.Correlation)
	}
	return b.String()
}

// Selector computes a Ranking for a set of candidate features.
type Selector struct {
	NEstimators int
	NNeighbors  int
	RandomState uint64
	NJobs       int

	logger log.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithNEstimators sets the forest size (default 100).
func WithNEstimators(n int) Option {
	return func(s *Selector) { s.NEstimators = n }
}

// WithNNeighbors sets k for the mutual information estimator (default 3).
func WithNNeighbors(k int) Option {
	return func(s *Selector) { s.NNeighbors = k }
}

// WithRandomState seeds both the forest and the MI jitter.
func WithRandomState(seed uint64) Option {
	return func(s *Selector) { s.RandomState = seed }
}

// WithNJobs bounds concurrency inside the estimators.
func WithNJobs(n int) Option {
	return func(s *Selector) { s.NJobs = n }
}

// NewSelector creates a Selector with 100 trees, k=3 and seed 42.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		NEstimators: 100,
		NNeighbors:  3,
		RandomState: 42,
		logger:      log.GetLoggerWithName("selection"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rank scores every candidate against target.
//
// Errors:
//   - ErrInvalidValue: if a candidate or the target is not a frame column, or
//     the target is among the candidates
//   - ErrEmptyData: if candidates is empty
func (s *Selector) Rank(ctx context.Context, frame *dataset.Frame, candidates []string, target string) (Ranking, error) {
	if len(candidates) == 0 {
		return nil, fireErrors.NewModelError("Selector.Rank", "no candidate features", fireErrors.ErrEmptyData)
	}
	for _, c := range candidates {
		if c == target {
			return nil, fireErrors.NewValueError("Selector.Rank", fmt.Sprintf("target %q listed as a candidate", target))
		}
	}

	X, err := frame.Select(candidates...)
	if err != nil {
		return nil, err
	}
	y, err := frame.Column(target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rf := ensemble.NewRandomForestRegressor(
		ensemble.WithNEstimators(s.NEstimators),
		ensemble.WithRandomState(s.RandomState),
		ensemble.WithNJobs(s.NJobs),
	)
	yCol := mat.NewDense(y.Len(), 1, nil)
	yCol.SetCol(0, y.RawVector().Data)
	if err := rf.FitContext(ctx, X, yCol); err != nil {
		return nil, fireErrors.Wrap(err, "random forest importance")
	}
	importances := rf.FeatureImportances()

	mi, err := feature_selection.MutualInfoRegression(X, y,
		feature_selection.WithNNeighbors(s.NNeighbors),
		feature_selection.WithRandomState(s.RandomState),
		feature_selection.WithNJobs(s.NJobs),
	)
	if err != nil {
		return nil, fireErrors.Wrap(err, "mutual information")
	}

	yData := mat.Col(nil, 0, yCol)
	ranking := make(Ranking, len(candidates))
	for j, name := range candidates {
		ranking[j] = Score{
			Feature:      name,
			RFImportance: importances[j],
			MutualInfo:   mi[j],
			Correlation:  pearson(mat.Col(nil, j, X), yData),
		}
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		return ranking[a].RFImportance > ranking[b].RFImportance
	})

	s.logger.Info("Feature ranking computed",
		log.OperationKey, log.OperationRank,
		log.SamplesKey, y.Len(),
		log.FeaturesKey, len(candidates),
		"top_feature", ranking[0].Feature,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ranking, nil
}

func pearson(x, y []float64) float64 {
	if stat.StdDev(x, nil) == 0 || stat.StdDev(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
