// Package experiment drives the forest-fire modelling workflow: train a fresh
// network per configuration, evaluate it in original target units and record
// the result in a tracking store.
//
// Each experiment runs Train, Evaluate and Record in sequence and owns its
// artifact; nothing is shared between experiments.
package experiment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// DefaultValidationSplit is the fraction of training rows held out during Fit.
const DefaultValidationSplit = 0.2

// HyperParams configures one experiment.
type HyperParams struct {
	Title           string   `yaml:"title"`
	Features        []string `yaml:"features"`
	HiddenLayers    []int    `yaml:"hidden_layers"`
	Optimizer       string   `yaml:"optimizer"`
	LearningRate    float64  `yaml:"learning_rate"` // 0 selects the optimizer default
	BatchSize       int      `yaml:"batch_size"`
	Epochs          int      `yaml:"epochs"`
	ValidationSplit float64  `yaml:"validation_split"`
	Seed            uint64   `yaml:"seed"`
}

// DefaultHyperParams returns the baseline configuration: temp and RH, hidden
// layers [32, 12], Adam, batch size 16, 50 epochs, seed 42.
func DefaultHyperParams(title string) HyperParams {
	return HyperParams{
		Title:           title,
		Features:        []string{"temp", "RH"},
		HiddenLayers:    []int{32, 12},
		Optimizer:       neural_network.OptimizerAdam,
		BatchSize:       16,
		Epochs:          50,
		ValidationSplit: DefaultValidationSplit,
		Seed:            42,
	}
}

// Clone returns a deep copy.
func (hp HyperParams) Clone() HyperParams {
	hp.Features = append([]string(nil), hp.Features...)
	hp.HiddenLayers = append([]int(nil), hp.HiddenLayers...)
	return hp
}

// Validate rejects configurations that cannot be trained.
func (hp HyperParams) Validate() error {
	if strings.TrimSpace(hp.Title) == "" {
		return fireErrors.NewValidationError("title", "must not be empty", hp.Title)
	}
	if len(hp.Features) == 0 {
		return fireErrors.NewValidationError("features", "at least one feature is required", hp.Features)
	}
	seen := make(map[string]bool, len(hp.Features))
	for _, f := range hp.Features {
		if seen[f] {
			return fireErrors.NewValidationError("features", "duplicate feature "+f, hp.Features)
		}
		seen[f] = true
	}
	if len(hp.HiddenLayers) == 0 {
		return fireErrors.NewValidationError("hidden_layers", "at least one hidden layer is required", hp.HiddenLayers)
	}
	for i, w := range hp.HiddenLayers {
		if w <= 0 {
			return fireErrors.NewValidationError(fmt.Sprintf("hidden_layer_%d", i+1), "width must be positive", w)
		}
	}
	if hp.BatchSize <= 0 {
		return fireErrors.NewValidationError("batch_size", "must be positive", hp.BatchSize)
	}
	if hp.Epochs <= 0 {
		return fireErrors.NewValidationError("epochs", "must be positive", hp.Epochs)
	}
	if _, err := neural_network.DefaultLearningRate(hp.Optimizer); err != nil {
		return fireErrors.NewValidationError("optimizer", "must be adam, sgd or rmsprop", hp.Optimizer)
	}
	if hp.LearningRate < 0 || math.IsNaN(hp.LearningRate) {
		return fireErrors.NewValidationError("learning_rate", "must be non-negative", hp.LearningRate)
	}
	// final_validation_loss needs at least one held-out row.
	if !(hp.ValidationSplit > 0 && hp.ValidationSplit < 1) {
		return fireErrors.NewValidationError("validation_split", "must be in (0, 1)", hp.ValidationSplit)
	}
	return nil
}

// Params flattens the configuration into the parameter map logged with each
// run. Hidden layers become hidden_layer_1, hidden_layer_2, ...
func (hp HyperParams) Params() map[string]string {
	p := map[string]string{
		"title":            hp.Title,
		"Features":         strings.Join(hp.Features, ", "),
		"optimizer":        hp.Optimizer,
		"batch_size":       strconv.Itoa(hp.BatchSize),
		"epochs":           strconv.Itoa(hp.Epochs),
		"seed":             strconv.FormatUint(hp.Seed, 10),
		"validation_split": strconv.FormatFloat(hp.ValidationSplit, 'g', -1, 64),
	}
	if hp.LearningRate > 0 {
		p["learning_rate"] = strconv.FormatFloat(hp.LearningRate, 'g', -1, 64)
	}
	for i, w := range hp.HiddenLayers {
		p[fmt.Sprintf("hidden_layer_%d", i+1)] = strconv.Itoa(w)
	}
	return p
}

func (hp HyperParams) options() []neural_network.Option {
	return []neural_network.Option{
		neural_network.WithHiddenLayerSizes(hp.HiddenLayers...),
		neural_network.WithOptimizer(hp.Optimizer),
		neural_network.WithLearningRate(hp.LearningRate),
		neural_network.WithBatchSize(hp.BatchSize),
		neural_network.WithEpochs(hp.Epochs),
		neural_network.WithValidationSplit(hp.ValidationSplit),
		neural_network.WithRandomState(hp.Seed),
	}
}
