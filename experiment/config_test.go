package experiment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/preprocessing"
)

const sampleConfig = `
data: data/forestfires.csv
tracking_uri: sqlite:///mlflow.db
split:
  holdout: 0.3
  seed: 42
ranking:
  n_estimators: 50
experiments:
  - title: Experiment 1
    epochs: 50
  - title: Experiment 3
    hidden_layers: [64, 32, 12]
    batch_size: 50
    epochs: 100
    evaluate_on: [validation, test]
`

func TestParseConfig_AppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/forestfires.csv", cfg.Data)
	assert.Equal(t, preprocessing.ScalingMinMax, cfg.Scaling)
	assert.True(t, cfg.Ranking.Enabled)
	assert.Equal(t, 50, cfg.Ranking.NEstimators)
	assert.Equal(t, 3, cfg.Ranking.NNeighbors)

	require.Len(t, cfg.Experiments, 2)
	e1 := cfg.Experiments[0]
	assert.Equal(t, "Experiment 1", e1.Title)
	assert.Equal(t, []string{"temp", "RH"}, e1.Features)
	assert.Equal(t, []int{32, 12}, e1.HiddenLayers)
	assert.Equal(t, 16, e1.BatchSize)
	assert.Equal(t, DefaultValidationSplit, e1.ValidationSplit)
	assert.Equal(t, []string{SplitValidation}, e1.EvaluateOn)

	e3 := cfg.Experiments[1]
	assert.Equal(t, []int{64, 32, 12}, e3.HiddenLayers)
	assert.Equal(t, 50, e3.BatchSize)
	assert.Equal(t, []string{SplitValidation, SplitTest}, e3.EvaluateOn)

	hps := cfg.HyperParams()
	require.Len(t, hps, 2)
	hps[0].HiddenLayers[0] = 1
	assert.Equal(t, 32, cfg.Experiments[0].HiddenLayers[0])
}

func TestParseConfig_UnknownKey(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("trackign_uri: x\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tracking uri", func(c *Config) { c.TrackingURI = "" }},
		{"bad scaling", func(c *Config) { c.Scaling = "robust" }},
		{"holdout zero", func(c *Config) { c.Split.Holdout = 0 }},
		{"no candidates", func(c *Config) { c.Ranking.Candidates = nil }},
		{"no trees", func(c *Config) { c.Ranking.NEstimators = 0 }},
		{"no experiments", func(c *Config) { c.Experiments = nil }},
		{"bad experiment", func(c *Config) { c.Experiments[0].Epochs = 0 }},
		{"bad split name", func(c *Config) { c.Experiments[0].EvaluateOn = []string{"train"} }},
		{"no validation rows", func(c *Config) { c.Experiments[0].ValidationSplit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Experiments = []ExperimentConfig{{HyperParams: DefaultHyperParams("e"), EvaluateOn: []string{SplitTest}}}
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), fireErrors.ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experiments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	t.Setenv(EnvTrackingURI, "sqlite://:memory:")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvData, "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://:memory:", cfg.TrackingURI)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "data/forestfires.csv", cfg.Data)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	const key = "FIREAREA_TEST_DOTENV"
	t.Setenv(key, "") // registers restore on cleanup
	require.NoError(t, os.Unsetenv(key))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestDefaultConfig_RanksEveryInputFeature(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, dataset.FeatureColumns, cfg.Ranking.Candidates)
	assert.Contains(t, cfg.Ranking.Candidates, dataset.ColMonth)
	assert.Contains(t, cfg.Ranking.Candidates, dataset.ColDay)
	assert.NotContains(t, cfg.Ranking.Candidates, dataset.ColArea)
}

func TestShippedConfigIsValid(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "configs", "experiments.yaml"))
	require.NoError(t, err)
	defer f.Close()

	cfg, err := ParseConfig(f)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Experiments, 3)
	assert.Equal(t, []int{64, 32, 12}, cfg.Experiments[2].HiddenLayers)
	assert.Equal(t, []string{SplitValidation, SplitTest}, cfg.Experiments[2].EvaluateOn)
	assert.Equal(t, []string{SplitValidation}, cfg.Experiments[0].EvaluateOn)
}
