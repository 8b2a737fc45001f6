package neural_network

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
)

// ModelName is the name written into exported envelopes.
const ModelName = "MLPRegressor"

// LayerParams is the JSON form of one Dense layer.
type LayerParams struct {
	Weights    [][]float64 `json:"weights"` // in×out
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// Params is the JSON form of a fitted MLPRegressor.
type Params struct {
	HiddenLayerSizes []int         `json:"hidden_layer_sizes"`
	Optimizer        string        `json:"optimizer"`
	LearningRate     float64       `json:"learning_rate"`
	BatchSize        int           `json:"batch_size"`
	Epochs           int           `json:"epochs"`
	ValidationSplit  float64       `json:"validation_split"`
	RandomState      uint64        `json:"random_state"`
	NFeatures        int           `json:"n_features"`
	Layers           []LayerParams `json:"layers"`
	History          History       `json:"history"`
}

// ExportParams returns the fitted network as plain slices.
func (m *MLPRegressor) ExportParams() (*Params, error) {
	if !m.IsFitted() {
		return nil, fireErrors.NewNotFittedError("MLPRegressor", "ExportParams")
	}
	lr := m.LearningRate
	if lr == 0 {
		lr, _ = DefaultLearningRate(m.Optimizer)
	}
	p := &Params{
		HiddenLayerSizes: append([]int(nil), m.HiddenLayerSizes...),
		Optimizer:        m.Optimizer,
		LearningRate:     lr,
		BatchSize:        m.BatchSize,
		Epochs:           m.Epochs,
		ValidationSplit:  m.ValidationSplit,
		RandomState:      m.RandomState,
		NFeatures:        m.NFeatures(),
		History:          m.History,
	}
	for _, l := range m.Layers {
		in, out := l.dims()
		w := make([][]float64, in)
		for i := range w {
			w[i] = mat.Row(nil, i, l.W)
		}
		act := "linear"
		if l.ReLU {
			act = "relu"
		}
		p.Layers = append(p.Layers, LayerParams{
			Weights:    w,
			Bias:       append([]float64(nil), l.B.RawVector().Data[:out]...),
			Activation: act,
		})
	}
	return p, nil
}

// Export writes the fitted network as a model envelope. example is an optional
// input sample stored alongside for schema inference.
func (m *MLPRegressor) Export(w io.Writer, example [][]float64, featureNames []string) error {
	p, err := m.ExportParams()
	if err != nil {
		return err
	}
	return model.ExportModel(ModelName, p, example, featureNames, w)
}

// FromParams rebuilds a fitted regressor from exported parameters.
func FromParams(p *Params) (*MLPRegressor, error) {
	if len(p.Layers) == 0 {
		return nil, fireErrors.NewValueError("FromParams", "no layers")
	}
	m := NewMLPRegressor(
		WithHiddenLayerSizes(p.HiddenLayerSizes...),
		WithOptimizer(p.Optimizer),
		WithLearningRate(p.LearningRate),
		WithBatchSize(p.BatchSize),
		WithEpochs(p.Epochs),
		WithValidationSplit(p.ValidationSplit),
		WithRandomState(p.RandomState),
	)

	in := p.NFeatures
	for k, lp := range p.Layers {
		if len(lp.Weights) != in {
			return nil, fireErrors.NewDimensionError("FromParams", in, len(lp.Weights), 0)
		}
		out := len(lp.Bias)
		if in == 0 || out == 0 {
			return nil, fireErrors.NewValueError("FromParams", fmt.Sprintf("layer %d has an empty shape", k))
		}
		data := make([]float64, 0, in*out)
		for i, row := range lp.Weights {
			if len(row) != out {
				return nil, fireErrors.NewValueError("FromParams",
					fmt.Sprintf("layer %d row %d has %d weights, want %d", k, i, len(row), out))
			}
			data = append(data, row...)
		}
		m.Layers = append(m.Layers, &Dense{
			W:    mat.NewDense(in, out, data),
			B:    mat.NewVecDense(out, append([]float64(nil), lp.Bias...)),
			ReLU: lp.Activation == "relu",
		})
		in = out
	}
	if in != 1 {
		return nil, fireErrors.NewValueError("FromParams", fmt.Sprintf("output layer has %d units, want 1", in))
	}

	m.History = p.History
	m.State.SetDimensions(p.NFeatures, 0)
	m.State.SetFitted()
	return m, nil
}

// Import reads an envelope written by Export.
func Import(r io.Reader) (*MLPRegressor, error) {
	env, err := model.ReadExportedModel(r)
	if err != nil {
		return nil, err
	}
	var p Params
	if err := env.DecodeParams(ModelName, &p); err != nil {
		return nil, err
	}
	return FromParams(&p)
}
