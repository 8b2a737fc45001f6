package diagnostics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/firearea/experiment"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/selection"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Experiment 1, validation set": "experiment_1_validation_set",
		"  Loss / test ":               "loss_test",
		"plain":                        "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestPlotObserver_WritesCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	o, err := NewPlotObserver(dir)
	require.NoError(t, err)

	ranking := selection.Ranking{
		{Feature: "temp", RFImportance: 0.6, MutualInfo: 0.1},
		{Feature: "RH", RFImportance: 0.4, MutualInfo: 0.05},
	}
	require.NoError(t, o.ObserveRanking(ranking))

	history := neural_network.History{Loss: []float64{3, 2, 1.5}, ValLoss: []float64{3.5, 2.5, 2.2}}
	require.NoError(t, o.ObserveHistory("Experiment 1", history))

	eval := &experiment.Evaluation{Actual: []float64{0, 1.5, 10}, Predictions: []float64{0.5, 1, 4}}
	require.NoError(t, o.ObserveEvaluation("Experiment 1, validation set", eval))

	files := o.Files()
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "feature_importance.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "experiment_1_loss.png"), files[1])
	assert.Equal(t, filepath.Join(dir, "experiment_1_validation_set_predictions.png"), files[2])
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestPlots_RejectEmptyInput(t *testing.T) {
	_, err := ImportancePlot(nil)
	assert.ErrorIs(t, err, fireErrors.ErrEmptyData)

	_, err = LossPlot("x", neural_network.History{})
	assert.ErrorIs(t, err, fireErrors.ErrEmptyData)

	_, err = PredictionPlot("x", []float64{1, 2}, []float64{1})
	var de *fireErrors.DimensionError
	assert.ErrorAs(t, err, &de)

	p, err := LossPlot("training only", neural_network.History{Loss: []float64{1, 0.5}})
	require.NoError(t, err)
	assert.Equal(t, "training only: Model Loss Progress During Training", p.Title.Text)
}
