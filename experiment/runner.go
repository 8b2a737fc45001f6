package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/preprocessing"
	"github.com/ezoic/firearea/selection"
	"github.com/ezoic/firearea/tracking"
)

// Result is the outcome of one experiment on one split.
type Result struct {
	Title      string // run title, "<experiment>, <split> set"
	Split      string
	RunID      string
	Evaluation *Evaluation
}

// Report summarises a Runner invocation.
type Report struct {
	Removed   int // duplicate rows dropped during preprocessing
	Ranking   selection.Ranking
	Results   []Result
	Artifacts []*Artifact // one per experiment, in config order
}

// Runner executes every configured experiment in sequence.
type Runner struct {
	cfg       *Config
	trainer   *Trainer
	evaluator *Evaluator
	recorder  *Recorder
	observers []Observer
	out       io.Writer
	logger    log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObservers attaches diagnostic observers.
func WithObservers(obs ...Observer) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, obs...) }
}

// WithOutput sets where metric summaries are printed (default os.Stdout).
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) { r.out = w }
}

// WithTrainer replaces the default Trainer.
func WithTrainer(t *Trainer) RunnerOption {
	return func(r *Runner) { r.trainer = t }
}

// NewRunner creates a Runner that records into store.
func NewRunner(cfg *Config, store tracking.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:       cfg,
		trainer:   NewTrainer(),
		evaluator: NewEvaluator(),
		recorder:  NewRecorder(store),
		out:       os.Stdout,
		logger:    log.GetLoggerWithName("Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads the configured CSV and runs every experiment.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	obs, err := dataset.LoadCSV(r.cfg.Data)
	if err != nil {
		return nil, err
	}
	return r.RunObservations(ctx, obs)
}

// RunObservations preprocesses obs, ranks features, splits the rows and then
// trains, evaluates and records each experiment. The first failing step
// aborts the run; results recorded before it are kept in the store.
func (r *Runner) RunObservations(ctx context.Context, obs []dataset.Observation) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	pre := preprocessing.NewPreprocessor(preprocessing.WithScaling(r.cfg.Scaling))
	frame, removed, err := pre.FitTransform(obs)
	if err != nil {
		return nil, err
	}
	for i, e := range r.cfg.Experiments {
		for _, f := range e.Features {
			if !frame.Has(f) || f == dataset.ColArea || f == dataset.ColAreaLog {
				return nil, fireErrors.NewValidationError(fmt.Sprintf("experiments[%d].features", i), "not a feature column", f)
			}
		}
	}
	report := &Report{Removed: removed}

	if r.cfg.Ranking.Enabled {
		if report.Ranking, err = r.rank(ctx, frame); err != nil {
			return nil, err
		}
	}

	splits, err := dataset.ThreeWaySplit(frame.Len(), r.cfg.Split.Holdout, r.cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	parts := map[string]*dataset.Frame{}
	for name, rows := range map[string][]int{"train": splits.Train, SplitValidation: splits.Validation, SplitTest: splits.Test} {
		if parts[name], err = frame.Rows(rows); err != nil {
			return nil, err
		}
	}
	r.logger.Info("Data split",
		log.PhaseKey, log.PhasePreprocessing,
		"train", len(splits.Train),
		"validation", len(splits.Validation),
		"test", len(splits.Test),
		log.RandomSeedKey, r.cfg.Split.Seed,
	)

	for _, e := range r.cfg.Experiments {
		art, results, err := r.runExperiment(ctx, e, parts)
		if err != nil {
			return report, fireErrors.Wrapf(err, "experiment %q", e.Title)
		}
		report.Artifacts = append(report.Artifacts, art)
		report.Results = append(report.Results, results...)
	}

	if r.cfg.ModelOutput != "" && len(report.Artifacts) > 0 {
		last := report.Artifacts[len(report.Artifacts)-1]
		if err := model.SaveModel(last.Model, r.cfg.ModelOutput); err != nil {
			return report, fireErrors.Wrap(err, "save model")
		}
		r.logger.Info("Model saved", log.ExperimentKey, last.HyperParams.Title, "path", r.cfg.ModelOutput)
	}
	return report, nil
}

// Rank scores the configured candidates against the target. Candidates that
// are not frame columns, or that name the target or its log, are returned in
// skipped instead of failing the ranking.
func (rc RankingConfig) Rank(ctx context.Context, frame *dataset.Frame) (ranking selection.Ranking, skipped []string, err error) {
	var candidates []string
	for _, c := range rc.Candidates {
		if !frame.Has(c) || c == rc.Target || c == dataset.ColArea || c == dataset.ColAreaLog {
			skipped = append(skipped, c)
			continue
		}
		candidates = append(candidates, c)
	}

	ranking, err = selection.NewSelector(
		selection.WithNEstimators(rc.NEstimators),
		selection.WithNNeighbors(rc.NNeighbors),
		selection.WithRandomState(rc.Seed),
	).Rank(ctx, frame, candidates, rc.Target)
	return ranking, skipped, err
}

func (r *Runner) rank(ctx context.Context, frame *dataset.Frame) (selection.Ranking, error) {
	ranking, skipped, err := r.cfg.Ranking.Rank(ctx, frame)
	for _, c := range skipped {
		r.logger.Warn("Ranking candidate skipped", "feature", c)
	}
	if err != nil {
		return nil, err
	}

	ranked := ranking.Features()
	for _, e := range r.cfg.Experiments {
		for _, f := range e.Features {
			if !slices.Contains(ranked, f) {
				r.logger.Warn("Configured feature was not ranked", log.ExperimentKey, e.Title, "feature", f)
			}
		}
	}
	r.notify(func(o Observer) error { return o.ObserveRanking(ranking) })
	return ranking, nil
}

func (r *Runner) runExperiment(ctx context.Context, e ExperimentConfig, parts map[string]*dataset.Frame) (*Artifact, []Result, error) {
	hp := e.HyperParams.Clone()
	start := time.Now()

	X, y, err := xy(parts["train"], hp.Features)
	if err != nil {
		return nil, nil, err
	}
	art, err := r.trainer.Train(ctx, hp, X, y)
	if err != nil {
		return nil, nil, err
	}
	r.notify(func(o Observer) error { return o.ObserveHistory(hp.Title, art.History) })
	example := [][]float64{mat.Row(nil, 0, X)}

	var results []Result
	for _, split := range e.EvaluateOn {
		Xs, ys, err := xy(parts[split], hp.Features)
		if err != nil {
			return nil, nil, err
		}
		eval, err := r.evaluator.Evaluate(art.Model, Xs, ys, art.History)
		if err != nil {
			return nil, nil, fireErrors.Wrapf(err, "evaluate on %s set", split)
		}
		title := fmt.Sprintf("%s, %s set", hp.Title, split)
		fmt.Fprintf(r.out, "%s:\nMetrics: %s\n", title, eval.Record.Format())
		r.notify(func(o Observer) error { return o.ObserveEvaluation(title, eval) })

		runID, err := r.recorder.Record(ctx, title, hp, eval.Record, art.Model, example)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, Result{Title: title, Split: split, RunID: runID, Evaluation: eval})
	}

	r.logger.Info("Experiment completed",
		log.ExperimentKey, hp.Title,
		"runs", len(results),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return art, results, nil
}

func (r *Runner) notify(fn func(Observer) error) {
	for _, o := range r.observers {
		if err := fn(o); err != nil {
			r.logger.Warn("Observer failed", "error", err.Error())
		}
	}
}

func xy(f *dataset.Frame, features []string) (*mat.Dense, *mat.Dense, error) {
	X, err := f.Select(features...)
	if err != nil {
		return nil, nil, err
	}
	y, err := f.Select(dataset.ColAreaLog)
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}
