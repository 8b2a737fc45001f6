// Package neural_network provides a small feed-forward regressor trained with
// mini-batch gradient descent.
//
// MLPRegressor stacks Dense+ReLU hidden layers and a single linear output
// unit, minimises mean squared error and tracks mean absolute error as an
// auxiliary metric. Training follows the conventions of Keras' Sequential.fit:
// the validation rows are the last fraction of the input, training rows are
// reshuffled each epoch, and the reported epoch loss is the sample-weighted
// mean of the batch losses.
//
// Example usage:
//
//	reg := neural_network.NewMLPRegressor(
//		neural_network.WithHiddenLayerSizes(32, 12),
//		neural_network.WithBatchSize(16),
//		neural_network.WithEpochs(50),
//		neural_network.WithRandomState(42),
//	)
//	if err := reg.Fit(X, y); err != nil {
//		log.Fatal(err)
//	}
//	pred, err := reg.Predict(Xtest)
package neural_network

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
)

// MLPRegressor is a dense ReLU network with one linear output.
//
// Exported fields are the gob-encoded state; see core/model.SaveModel.
type MLPRegressor struct {
	State *model.StateManager

	// Hyperparameters
	HiddenLayerSizes []int
	Optimizer        string
	LearningRate     float64 // 0 selects the optimizer default
	BatchSize        int
	Epochs           int
	ValidationSplit  float64
	RandomState      uint64
	Shuffle          bool

	// Learned state
	Layers  []*Dense
	History History

	callbacks []Callback
	logger    log.Logger
}

// Option configures an MLPRegressor.
type Option func(*MLPRegressor)

// WithHiddenLayerSizes sets the hidden layer widths in order.
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLPRegressor) { m.HiddenLayerSizes = append([]int(nil), sizes...) }
}

// WithOptimizer selects "adam", "sgd" or "rmsprop".
func WithOptimizer(name string) Option {
	return func(m *MLPRegressor) { m.Optimizer = name }
}

// WithLearningRate overrides the optimizer's default learning rate.
func WithLearningRate(lr float64) Option {
	return func(m *MLPRegressor) { m.LearningRate = lr }
}

// WithBatchSize sets the mini-batch size.
func WithBatchSize(n int) Option {
	return func(m *MLPRegressor) { m.BatchSize = n }
}

// WithEpochs sets the number of passes over the training rows.
func WithEpochs(n int) Option {
	return func(m *MLPRegressor) { m.Epochs = n }
}

// WithValidationSplit holds out the last fraction of rows for validation.
func WithValidationSplit(f float64) Option {
	return func(m *MLPRegressor) { m.ValidationSplit = f }
}

// WithRandomState seeds weight initialisation and batch shuffling.
func WithRandomState(seed uint64) Option {
	return func(m *MLPRegressor) { m.RandomState = seed }
}

// WithShuffle toggles per-epoch reshuffling of training rows.
func WithShuffle(b bool) Option {
	return func(m *MLPRegressor) { m.Shuffle = b }
}

// WithCallbacks attaches training callbacks.
func WithCallbacks(cbs ...Callback) Option {
	return func(m *MLPRegressor) { m.callbacks = append(m.callbacks, cbs...) }
}

// NewMLPRegressor creates an unfitted regressor. Defaults: hidden layers
// [32, 12], Adam, batch size 32, 50 epochs, validation split 0.2, shuffle on.
func NewMLPRegressor(opts ...Option) *MLPRegressor {
	m := &MLPRegressor{
		State:            model.NewStateManager(),
		HiddenLayerSizes: []int{32, 12},
		Optimizer:        OptimizerAdam,
		BatchSize:        32,
		Epochs:           50,
		ValidationSplit:  0.2,
		Shuffle:          true,
		logger:           log.GetLoggerWithName("MLPRegressor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MLPRegressor) log() log.Logger {
	if m.logger == nil {
		m.logger = log.GetLoggerWithName("MLPRegressor")
	}
	return m.logger
}

func (m *MLPRegressor) validate(nSamples int) error {
	if len(m.HiddenLayerSizes) == 0 {
		return fireErrors.NewValidationError("hidden_layer_sizes", "at least one hidden layer is required", m.HiddenLayerSizes)
	}
	for i, w := range m.HiddenLayerSizes {
		if w <= 0 {
			return fireErrors.NewValidationError(fmt.Sprintf("hidden_layer_%d", i+1), "width must be positive", w)
		}
	}
	if m.BatchSize <= 0 {
		return fireErrors.NewValidationError("batch_size", "must be positive", m.BatchSize)
	}
	if m.Epochs <= 0 {
		return fireErrors.NewValidationError("epochs", "must be positive", m.Epochs)
	}
	if m.ValidationSplit < 0 || m.ValidationSplit >= 1 || math.IsNaN(m.ValidationSplit) {
		return fireErrors.NewValidationError("validation_split", "must be in [0, 1)", m.ValidationSplit)
	}
	if _, err := DefaultLearningRate(m.Optimizer); err != nil {
		return fireErrors.NewValidationError("optimizer", "must be adam, sgd or rmsprop", m.Optimizer)
	}
	if m.LearningRate < 0 || math.IsNaN(m.LearningRate) {
		return fireErrors.NewValidationError("learning_rate", "must be non-negative", m.LearningRate)
	}
	if nTrain := trainRows(nSamples, m.ValidationSplit); nTrain == 0 || (m.ValidationSplit > 0 && nTrain == nSamples) {
		return fireErrors.NewValueError("MLPRegressor.Fit",
			fmt.Sprintf("validation_split %.3g leaves an empty split for %d samples", m.ValidationSplit, nSamples))
	}
	return nil
}

// trainRows is the number of leading rows used for training.
func trainRows(n int, split float64) int {
	return int(math.Floor(float64(n) * (1 - split)))
}

// Fit trains the network on X (n×p) and y (n×1).
func (m *MLPRegressor) Fit(X, y mat.Matrix) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext trains the network; ctx is checked between epochs.
//
// Fit always starts from freshly initialised weights, so a fitted model can
// be refitted without carrying state across runs.
//
// Errors:
//   - ErrEmptyData: if X has no rows
//   - *DimensionError: if X and y disagree
//   - ErrInvalidConfig: if a hyperparameter is invalid
//   - ErrInvalidValue: if inputs are non-finite or the loss diverges
func (m *MLPRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer fireErrors.Recover(&err, "MLPRegressor.Fit")

	n, p := X.Dims()
	yRows, yCols := y.Dims()
	if n == 0 || p == 0 {
		return fireErrors.NewModelError("MLPRegressor.Fit", "empty data", fireErrors.ErrEmptyData)
	}
	if yRows != n {
		return fireErrors.NewDimensionError("MLPRegressor.Fit", n, yRows, 0)
	}
	if yCols != 1 {
		return fireErrors.NewDimensionError("MLPRegressor.Fit", 1, yCols, 1)
	}
	if err := m.validate(n); err != nil {
		return err
	}

	Xd := mat.DenseCopyOf(X)
	yd := mat.Col(nil, 0, y)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if v := Xd.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fireErrors.NewValueError("MLPRegressor.Fit", fmt.Sprintf("non-finite feature at row %d column %d", i, j))
			}
		}
		if math.IsNaN(yd[i]) || math.IsInf(yd[i], 0) {
			return fireErrors.NewValueError("MLPRegressor.Fit", fmt.Sprintf("non-finite target at row %d", i))
		}
	}

	opt, err := NewOptimizer(m.Optimizer, m.LearningRate)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(m.RandomState, m.RandomState))
	m.Layers = m.initLayers(p, rng)
	m.History = History{}
	if m.State == nil {
		m.State = model.NewStateManager()
	}
	m.State.Reset()

	nTrain := trainRows(n, m.ValidationSplit)
	var Xval *mat.Dense
	var yval []float64
	if nTrain < n {
		Xval = mat.DenseCopyOf(Xd.Slice(nTrain, n, 0, p))
		yval = yd[nTrain:]
	}

	env := &CallbackEnv{Epochs: m.Epochs, History: &m.History, Model: m}
	for _, cb := range m.callbacks {
		if err := cb.Init(env); err != nil {
			return fmt.Errorf("callback initialization failed: %w", err)
		}
	}

	start := time.Now()
	m.log().Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nTrain,
		log.FeaturesKey, p,
		log.BatchSizeKey, m.BatchSize,
		log.EpochsKey, m.Epochs,
		log.RandomSeedKey, int64(m.RandomState),
	)

	order := make([]int, nTrain)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Shuffle {
			rng.Shuffle(nTrain, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var sumLoss, sumAbs float64
		for b := 0; b < nTrain; b += m.BatchSize {
			idx := order[b:min(b+m.BatchSize, nTrain)]
			xb := mat.NewDense(len(idx), p, nil)
			yb := make([]float64, len(idx))
			for k, i := range idx {
				xb.SetRow(k, Xd.RawRowView(i))
				yb[k] = yd[i]
			}
			loss, mae := m.trainBatch(xb, yb, opt)
			sumLoss += loss * float64(len(idx))
			sumAbs += mae * float64(len(idx))
		}

		epochLoss := sumLoss / float64(nTrain)
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return fireErrors.NewModelError("MLPRegressor.Fit",
				fmt.Sprintf("training diverged at epoch %d", epoch+1), fireErrors.ErrInvalidValue)
		}
		m.History.Loss = append(m.History.Loss, epochLoss)
		m.History.MAE = append(m.History.MAE, sumAbs/float64(nTrain))

		if Xval != nil {
			vl, vm := m.evaluate(Xval, yval)
			m.History.ValLoss = append(m.History.ValLoss, vl)
			m.History.ValMAE = append(m.History.ValMAE, vm)
		}

		env.Epoch = epoch
		for _, cb := range m.callbacks {
			if err := cb.AfterEpoch(env); err != nil {
				return err
			}
		}
		if env.StopTraining {
			break
		}
	}

	for _, cb := range m.callbacks {
		if err := cb.Finalize(env); err != nil {
			return err
		}
	}

	m.State.SetDimensions(p, nTrain)
	m.State.SetFitted()

	fields := []interface{}{
		log.EpochsKey, m.History.Len(),
		log.LossKey, m.History.Loss[len(m.History.Loss)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if len(m.History.ValLoss) > 0 {
		fields = append(fields, log.ValLossKey, m.History.ValLoss[len(m.History.ValLoss)-1])
	}
	m.log().Info("Training finished", fields...)
	return nil
}

func (m *MLPRegressor) initLayers(nFeatures int, rng *rand.Rand) []*Dense {
	layers := make([]*Dense, 0, len(m.HiddenLayerSizes)+1)
	in := nFeatures
	for _, w := range m.HiddenLayerSizes {
		layers = append(layers, newDense(in, w, true, rng))
		in = w
	}
	return append(layers, newDense(in, 1, false, rng))
}

// trainBatch runs one forward/backward pass and optimizer step. It returns the
// batch MSE and MAE computed before the update.
func (m *MLPRegressor) trainBatch(xb *mat.Dense, yb []float64, opt Optimizer) (loss, mae float64) {
	nl := len(m.Layers)
	inputs := make([]*mat.Dense, nl)
	zs := make([]*mat.Dense, nl)

	var a *mat.Dense = xb
	for l, layer := range m.Layers {
		inputs[l] = a
		zs[l], a = layer.forward(a)
	}

	rows := len(yb)
	dA := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		diff := a.At(i, 0) - yb[i]
		loss += diff * diff
		mae += math.Abs(diff)
		dA.Set(i, 0, 2*diff/float64(rows))
	}
	loss /= float64(rows)
	mae /= float64(rows)

	params := make([][]float64, 0, 2*nl)
	grads := make([][]float64, 0, 2*nl)
	for l := nl - 1; l >= 0; l-- {
		dW, dB, dIn := m.Layers[l].backward(inputs[l], zs[l], dA, l > 0)
		params = append(params, m.Layers[l].W.RawMatrix().Data, m.Layers[l].B.RawVector().Data)
		grads = append(grads, dW.RawMatrix().Data, dB.RawVector().Data)
		dA = dIn
	}
	opt.Update(params, grads)
	return loss, mae
}

func (m *MLPRegressor) forward(X mat.Matrix) *mat.Dense {
	var a mat.Matrix = X
	var out *mat.Dense
	for _, layer := range m.Layers {
		_, out = layer.forward(a)
		a = out
	}
	return out
}

func (m *MLPRegressor) evaluate(X mat.Matrix, y []float64) (mse, mae float64) {
	pred := m.forward(X)
	for i, t := range y {
		d := pred.At(i, 0) - t
		mse += d * d
		mae += math.Abs(d)
	}
	n := float64(len(y))
	return mse / n, mae / n
}

// Predict returns an n×1 matrix of predictions.
func (m *MLPRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer fireErrors.Recover(&err, "MLPRegressor.Predict")
	if m.State == nil || !m.State.IsFitted() {
		return nil, fireErrors.NewNotFittedError("MLPRegressor", "Predict")
	}
	r, c := X.Dims()
	if want := m.NFeatures(); c != want {
		return nil, fireErrors.NewDimensionError("MLPRegressor.Predict", want, c, 1)
	}
	if r == 0 {
		return nil, fireErrors.NewModelError("MLPRegressor.Predict", "empty data", fireErrors.ErrEmptyData)
	}
	return m.forward(X), nil
}

// Evaluate returns the MSE loss and MAE metric of the network on (X, y), in
// the units of y.
func (m *MLPRegressor) Evaluate(X, y mat.Matrix) (loss, mae float64, err error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, 0, err
	}
	r, _ := X.Dims()
	yRows, yCols := y.Dims()
	if yRows != r || yCols != 1 {
		return 0, 0, fireErrors.NewDimensionError("MLPRegressor.Evaluate", r, yRows, 0)
	}
	for i := 0; i < r; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		loss += d * d
		mae += math.Abs(d)
	}
	return loss / float64(r), mae / float64(r), nil
}

// NFeatures is the input width of the fitted network, or 0.
func (m *MLPRegressor) NFeatures() int {
	if len(m.Layers) == 0 {
		return 0
	}
	in, _ := m.Layers[0].dims()
	return in
}

// IsFitted reports whether Fit has completed.
func (m *MLPRegressor) IsFitted() bool {
	return m.State != nil && m.State.IsFitted()
}

// GetParams returns the model hyperparameters
func (m *MLPRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.HiddenLayerSizes...),
		"optimizer":          m.Optimizer,
		"learning_rate":      m.LearningRate,
		"batch_size":         m.BatchSize,
		"epochs":             m.Epochs,
		"validation_split":   m.ValidationSplit,
		"random_state":       m.RandomState,
		"shuffle":            m.Shuffle,
	}
}

// String returns a short description.
func (m *MLPRegressor) String() string {
	return fmt.Sprintf("MLPRegressor(hidden_layer_sizes=%v, optimizer=%s, batch_size=%d, epochs=%d)",
		m.HiddenLayerSizes, m.Optimizer, m.BatchSize, m.Epochs)
}

var _ model.Regressor = (*MLPRegressor)(nil)
