package experiment

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/preprocessing"
)

// Environment variables that override the config file.
const (
	EnvTrackingURI = "FIREAREA_TRACKING_URI"
	EnvData        = "FIREAREA_DATA"
	EnvLogLevel    = "FIREAREA_LOG_LEVEL"
)

// Split names accepted in evaluate_on.
const (
	SplitValidation = "validation"
	SplitTest       = "test"
)

// SplitConfig controls the train/validation/test partition. The holdout
// fraction is halved into validation and test.
type SplitConfig struct {
	Holdout float64 `yaml:"holdout"`
	Seed    uint64  `yaml:"seed"`
}

// RankingConfig controls the advisory feature ranking.
type RankingConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Candidates  []string `yaml:"candidates"`
	Target      string   `yaml:"target"`
	NEstimators int      `yaml:"n_estimators"`
	NNeighbors  int      `yaml:"n_neighbors"`
	Seed        uint64   `yaml:"seed"`
}

// ExperimentConfig is one entry of the experiments list. Unset fields take
// the values of DefaultHyperParams.
type ExperimentConfig struct {
	HyperParams `yaml:",inline"`
	EvaluateOn  []string `yaml:"evaluate_on"`
}

// UnmarshalYAML decodes onto the defaults so omitted keys keep them.
func (e *ExperimentConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ExperimentConfig
	p := plain{HyperParams: DefaultHyperParams(""), EvaluateOn: []string{SplitValidation}}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = ExperimentConfig(p)
	return nil
}

// Config is the experiment file.
type Config struct {
	Data        string                `yaml:"data"`
	TrackingURI string                `yaml:"tracking_uri"`
	LogLevel    string                `yaml:"log_level"`
	Scaling     preprocessing.Scaling `yaml:"scaling"`
	Split       SplitConfig           `yaml:"split"`
	Ranking     RankingConfig         `yaml:"ranking"`
	ModelOutput string                `yaml:"model_output"`
	PlotDir     string                `yaml:"plot_dir"`
	Experiments []ExperimentConfig    `yaml:"experiments"`
}

// DefaultConfig returns a config with a 70/15/15 split seeded with 42, a local
// SQLite tracking store and ranking over every input column.
func DefaultConfig() *Config {
	return &Config{
		Data:        "forestfires.csv",
		TrackingURI: "sqlite:///mlflow.db",
		LogLevel:    "info",
		Scaling:     preprocessing.ScalingMinMax,
		Split:       SplitConfig{Holdout: 0.3, Seed: 42},
		Ranking: RankingConfig{
			Enabled:     true,
			Candidates:  append([]string(nil), dataset.FeatureColumns...),
			Target:      dataset.ColArea,
			NEstimators: 100,
			NNeighbors:  3,
			Seed:        42,
		},
	}
}

// LoadConfig reads a YAML config from path on top of DefaultConfig and then
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fireErrors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, fireErrors.Wrapf(err, "parse config %s", path)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ParseConfig decodes YAML from r on top of DefaultConfig.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, name := range files {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fireErrors.Wrapf(err, "load %s", name)
		}
	}
	return nil
}

// ApplyEnv overrides fields from FIREAREA_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvTrackingURI); v != "" {
		c.TrackingURI = v
	}
	if v := os.Getenv(EnvData); v != "" {
		c.Data = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the whole config, including every experiment, so a bad
// entry is reported before any training starts.
func (c *Config) Validate() error {
	if c.TrackingURI == "" {
		return fireErrors.NewValidationError("tracking_uri", "must not be empty", c.TrackingURI)
	}
	switch c.Scaling {
	case preprocessing.ScalingMinMax, preprocessing.ScalingStandard:
	default:
		return fireErrors.NewValidationError("scaling", "must be minmax or standard", c.Scaling)
	}
	if c.Split.Holdout <= 0 || c.Split.Holdout >= 1 {
		return fireErrors.NewValidationError("split.holdout", "must be in (0, 1)", c.Split.Holdout)
	}
	if c.Ranking.Enabled {
		if len(c.Ranking.Candidates) == 0 {
			return fireErrors.NewValidationError("ranking.candidates", "must not be empty", c.Ranking.Candidates)
		}
		if c.Ranking.NEstimators <= 0 {
			return fireErrors.NewValidationError("ranking.n_estimators", "must be positive", c.Ranking.NEstimators)
		}
		if c.Ranking.NNeighbors <= 0 {
			return fireErrors.NewValidationError("ranking.n_neighbors", "must be positive", c.Ranking.NNeighbors)
		}
	}
	if len(c.Experiments) == 0 {
		return fireErrors.NewValidationError("experiments", "at least one experiment is required", 0)
	}
	for i, e := range c.Experiments {
		if err := e.HyperParams.Validate(); err != nil {
			return fireErrors.Wrapf(err, "experiments[%d]", i)
		}
		if len(e.EvaluateOn) == 0 {
			return fireErrors.NewValidationError(fmt.Sprintf("experiments[%d].evaluate_on", i), "must name a split", e.EvaluateOn)
		}
		for _, s := range e.EvaluateOn {
			if s != SplitValidation && s != SplitTest {
				return fireErrors.NewValidationError(fmt.Sprintf("experiments[%d].evaluate_on", i), "must be validation or test", s)
			}
		}
	}
	return nil
}

// HyperParams returns the configured experiments in order.
func (c *Config) HyperParams() []HyperParams {
	out := make([]HyperParams, len(c.Experiments))
	for i, e := range c.Experiments {
		out[i] = e.HyperParams.Clone()
	}
	return out
}
