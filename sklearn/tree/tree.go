// Package tree implements CART regression trees.
//
// DecisionTreeRegressor grows a binary tree by repeatedly choosing the
// feature/threshold pair that most reduces the mean squared error of the node.
// Split search sorts each candidate feature once per node and scans prefix
// sums, so a node costs O(features * n log n).
//
// The tree is the building block of ensemble.RandomForestRegressor, which
// fits each tree on a bootstrap sample via FitSample.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// impurityEpsilon is the impurity below which a node is treated as pure.
const impurityEpsilon = 1e-12

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf    bool      // Whether this is a leaf node
	Feature   int       // Feature index for split (internal nodes)
	Threshold float64   // Threshold value for split (internal nodes)
	Left      *TreeNode // Left child (values <= threshold)
	Right     *TreeNode // Right child (values > threshold)
	Value     float64   // Mean target of the samples reaching this node
	Impurity  float64   // Node MSE
	NSamples  int       // Number of samples at this node
	Depth     int       // Depth of this node in the tree
}

// DecisionTreeRegressor implements a CART tree for regression
type DecisionTreeRegressor struct {
	state *model.StateManager

	// Hyperparameters
	maxDepth            int     // Maximum depth of tree (0 = unlimited)
	minSamplesSplit     int     // Minimum samples to split a node
	minSamplesLeaf      int     // Minimum samples in a leaf
	maxFeatures         int     // Features examined per split (0 = all)
	minImpurityDecrease float64 // Minimum weighted impurity decrease for a split
	randomState         uint64  // Seed for feature subsampling order

	// Tree structure
	root       *TreeNode
	nFeatures_ int
	nSamples_  int

	featureImportances_ []float64
}

// DecisionTreeRegressorOption is a functional option
type DecisionTreeRegressorOption func(*DecisionTreeRegressor)

// NewDecisionTreeRegressor creates a new regression tree
func NewDecisionTreeRegressor(opts ...DecisionTreeRegressorOption) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures limits the number of features tried at each split.
// Zero or a value >= the feature count means all features.
func WithMaxFeatures(n int) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.maxFeatures = n
	}
}

// WithMinImpurityDecrease sets the minimum impurity decrease for a split
func WithMinImpurityDecrease(v float64) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.minImpurityDecrease = v
	}
}

// WithRandomState sets the seed used to order candidate features
func WithRandomState(seed uint64) DecisionTreeRegressorOption {
	return func(dt *DecisionTreeRegressor) {
		dt.randomState = seed
	}
}

// builder carries the per-fit state of the recursive construction.
type builder struct {
	dt      *DecisionTreeRegressor
	cols    [][]float64 // column-major copy of X
	y       []float64
	rng     *rand.Rand
	nTotal  int
	feature []int
}

// Fit trains the tree on all rows of X.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	n, _ := X.Dims()
	sample := make([]int, n)
	for i := range sample {
		sample[i] = i
	}
	return dt.FitSample(X, y, sample)
}

// FitSample trains the tree on the rows listed in sample. Repeated indices
// count as repeated samples, which is how bootstrap draws are expressed.
func (dt *DecisionTreeRegressor) FitSample(X, y mat.Matrix, sample []int) (err error) {
	defer fireErrors.Recover(&err, "DecisionTreeRegressor.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 || len(sample) == 0 {
		return fireErrors.NewModelError("DecisionTreeRegressor.Fit", "empty data", fireErrors.ErrEmptyData)
	}
	if nSamples != yRows {
		return fireErrors.NewDimensionError("DecisionTreeRegressor.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return fireErrors.NewValueError("DecisionTreeRegressor.Fit",
			fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}
	if dt.minSamplesLeaf < 1 || dt.minSamplesSplit < 2 {
		return fireErrors.NewValueError("DecisionTreeRegressor.Fit", "min_samples_leaf must be >= 1 and min_samples_split >= 2")
	}

	b := &builder{
		dt:      dt,
		cols:    make([][]float64, nFeatures),
		y:       make([]float64, nSamples),
		rng:     rand.New(rand.NewPCG(dt.randomState, dt.randomState)),
		nTotal:  len(sample),
		feature: make([]int, nFeatures),
	}
	for j := 0; j < nFeatures; j++ {
		b.cols[j] = mat.Col(nil, j, X)
		b.feature[j] = j
	}
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fireErrors.NewValueError("DecisionTreeRegressor.Fit", fmt.Sprintf("non-finite target at row %d", i))
		}
		b.y[i] = v
	}
	for _, idx := range sample {
		if idx < 0 || idx >= nSamples {
			return fireErrors.NewValueError("DecisionTreeRegressor.Fit", fmt.Sprintf("sample index %d out of range", idx))
		}
	}

	dt.nFeatures_ = nFeatures
	dt.nSamples_ = len(sample)
	dt.featureImportances_ = make([]float64, nFeatures)

	idx := append([]int(nil), sample...)
	dt.root = b.build(idx, 0)
	dt.normalizeFeatureImportances()

	dt.state.SetDimensions(nFeatures, len(sample))
	dt.state.SetFitted()
	return nil
}

func (b *builder) build(idx []int, depth int) *TreeNode {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	node := &TreeNode{
		Value:    mean,
		Impurity: impurity,
		NSamples: n,
		Depth:    depth,
	}

	dt := b.dt
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) || n < dt.minSamplesSplit || n < 2*dt.minSamplesLeaf || impurity <= impurityEpsilon {
		node.IsLeaf = true
		return node
	}

	feature, threshold, childImpurity, ok := b.bestSplit(idx, sum)
	if !ok {
		node.IsLeaf = true
		return node
	}

	// Weighted impurity decrease as defined for sklearn's min_impurity_decrease.
	decrease := float64(n) / float64(b.nTotal) * (impurity - childImpurity)
	if decrease < dt.minImpurityDecrease {
		node.IsLeaf = true
		return node
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	col := b.cols[feature]
	for _, i := range idx {
		if col[i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	dt.featureImportances_[feature] += float64(n) * (impurity - childImpurity)

	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// bestSplit returns the split minimising the weighted child MSE, which is
// the weighted mean of the two child impurities.
func (b *builder) bestSplit(idx []int, total float64) (feature int, threshold, childImpurity float64, ok bool) {
	n := len(idx)
	nf := len(b.feature)
	tries := nf
	if b.dt.maxFeatures > 0 && b.dt.maxFeatures < nf {
		tries = b.dt.maxFeatures
	}
	b.rng.Shuffle(nf, func(i, j int) { b.feature[i], b.feature[j] = b.feature[j], b.feature[i] })

	minLeaf := b.dt.minSamplesLeaf
	best := math.Inf(-1)
	order := make([]int, n)

	var sumSqTotal float64
	for _, i := range idx {
		sumSqTotal += b.y[i] * b.y[i]
	}

	for _, f := range b.feature[:tries] {
		col := b.cols[f]
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		if col[order[0]] == col[order[n-1]] {
			continue
		}

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.y[order[k]]
			nLeft := k + 1
			if nLeft < minLeaf {
				continue
			}
			if n-nLeft < minLeaf {
				break
			}
			lo, hi := col[order[k]], col[order[k+1]]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			// Maximising this proxy minimises the summed child squared error.
			proxy := leftSum*leftSum/float64(nLeft) + rightSum*rightSum/float64(n-nLeft)
			if proxy > best {
				best = proxy
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold == hi {
					threshold = lo
				}
				ok = true
			}
		}
	}

	if ok {
		childImpurity = math.Max((sumSqTotal-best)/float64(n), 0)
	}
	return feature, threshold, childImpurity, ok
}

// normalizeFeatureImportances normalizes feature importance scores to sum to 1
func (dt *DecisionTreeRegressor) normalizeFeatureImportances() {
	sum := 0.0
	for _, imp := range dt.featureImportances_ {
		sum += imp
	}
	if sum > 0 {
		for i := range dt.featureImportances_ {
			dt.featureImportances_[i] /= sum
		}
	}
}

// Predict returns an n×1 matrix of leaf means.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.state.IsFitted() {
		return nil, fireErrors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != dt.nFeatures_ {
		return nil, fireErrors.NewDimensionError("DecisionTreeRegressor.Predict", dt.nFeatures_, nFeatures, 1)
	}

	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, dt.leaf(X, i).Value)
	}
	return predictions, nil
}

func (dt *DecisionTreeRegressor) leaf(X mat.Matrix, row int) *TreeNode {
	node := dt.root
	for !node.IsLeaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             "squared_error",
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"min_impurity_decrease": dt.minImpurityDecrease,
		"random_state":          dt.randomState,
	}
}

// FeatureImportances returns a copy of the normalised impurity importances.
// The scores sum to 1 unless the tree is a single leaf, in which case all are 0.
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 {
	if dt.featureImportances_ == nil {
		return nil
	}
	return append([]float64(nil), dt.featureImportances_...)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool {
	return dt.state.IsFitted()
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.root == nil {
		return 0
	}
	return maxDepth(dt.root)
}

func maxDepth(node *TreeNode) int {
	if node.IsLeaf {
		return node.Depth
	}
	return max(maxDepth(node.Left), maxDepth(node.Right))
}

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.root == nil {
		return 0
	}
	return countLeaves(dt.root)
}

func countLeaves(node *TreeNode) int {
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}

var (
	_ model.Regressor          = (*DecisionTreeRegressor)(nil)
	_ model.FeatureImportancer = (*DecisionTreeRegressor)(nil)
)
