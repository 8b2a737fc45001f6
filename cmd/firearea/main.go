// Command firearea trains and tracks burned-area regressors on the
// forest-fires dataset.
//
// Usage:
//
//	firearea rank -config experiments.yaml
//	firearea run  -config experiments.yaml
//	firearea runs -config experiments.yaml -experiment "Experiment 1, validation set"
//
// Settings come from the YAML config, then FIREAREA_* variables (a .env file
// in the working directory is loaded first), then command-line flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ezoic/firearea/dataset"
	"github.com/ezoic/firearea/diagnostics"
	"github.com/ezoic/firearea/experiment"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/preprocessing"
	"github.com/ezoic/firearea/tracking"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

const usage = `usage: firearea <command> [flags]

commands:
  rank   rank candidate features by importance
  run    train, evaluate and record every configured experiment
  runs   list recorded runs of an experiment
`

// usageError marks bad invocations; they exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// parse maps flag errors other than -h to usage errors. The flag package has
// already printed them with the defaults.
func parse(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || err == flag.ErrHelp {
		return err
	}
	return usageError{err.Error()}
}

// common holds flags shared by every subcommand.
type common struct {
	config      string
	envFile     string
	data        string
	trackingURI string
	synthetic   int
	seed        uint64
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "experiments.yaml", "experiment config file")
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file with FIREAREA_* overrides")
	fs.StringVar(&c.data, "data", "", "input CSV (overrides config)")
	fs.StringVar(&c.trackingURI, "tracking-uri", "", "tracking store URI (overrides config)")
	fs.IntVar(&c.synthetic, "synthetic", 0, "use N generated observations instead of the CSV")
	fs.Uint64Var(&c.seed, "synthetic-seed", 1, "seed for -synthetic")
}

func (c *common) load() (*experiment.Config, error) {
	if err := experiment.LoadEnv(c.envFile); err != nil {
		return nil, err
	}
	cfg, err := experiment.LoadConfig(c.config)
	if err != nil {
		return nil, err
	}
	if c.data != "" {
		cfg.Data = c.data
	}
	if c.trackingURI != "" {
		cfg.TrackingURI = c.trackingURI
	}
	log.SetupLogger(cfg.LogLevel)
	return cfg, nil
}

func (c *common) observations(cfg *experiment.Config) ([]dataset.Observation, error) {
	if c.synthetic > 0 {
		return dataset.Synthetic(c.synthetic, c.seed), nil
	}
	return dataset.LoadCSV(cfg.Data)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "rank":
		err = rankCmd(ctx, args[1:], stdout, stderr)
	case "run":
		err = runCmd(ctx, args[1:], stdout, stderr)
	case "runs":
		err = runsCmd(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err == flag.ErrHelp {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "firearea %s: %v\n", args[0], err)
		return 2
	}
	if err != nil {
		log.GetLogger().Error().Err(err).Str("command", args[0]).Msg("command failed")
		fmt.Fprintf(stderr, "firearea %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func rankCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	target := fs.String("target", "", "target column (default from config)")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	obs, err := c.observations(cfg)
	if err != nil {
		return err
	}
	frame, removed, err := preprocessing.NewPreprocessor(preprocessing.WithScaling(cfg.Scaling)).FitTransform(obs)
	if err != nil {
		return err
	}
	if removed > 0 {
		fmt.Fprintf(stdout, "removed %d duplicate rows\n", removed)
	}

	rc := cfg.Ranking
	if *target != "" {
		rc.Target = *target
	}
	ranking, skipped, err := rc.Rank(ctx, frame)
	if len(skipped) > 0 {
		fmt.Fprintf(stderr, "skipped candidates: %s\n", strings.Join(skipped, ", "))
	}
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, ranking.String())
	return nil
}

func runCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	plotDir := fs.String("plots", "", "directory for diagnostic charts (overrides config)")
	modelOut := fs.String("model-out", "", "gob file for the last trained model (overrides config)")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *plotDir != "" {
		cfg.PlotDir = *plotDir
	}
	if *modelOut != "" {
		cfg.ModelOutput = *modelOut
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	obs, err := c.observations(cfg)
	if err != nil {
		return err
	}

	store, err := tracking.Open(ctx, cfg.TrackingURI)
	if err != nil {
		return err
	}
	defer store.Close()

	observers := []experiment.Observer{experiment.NewLogObserver()}
	if cfg.PlotDir != "" {
		plots, err := diagnostics.NewPlotObserver(cfg.PlotDir)
		if err != nil {
			return err
		}
		observers = append(observers, plots)
	}

	report, err := experiment.NewRunner(cfg, store,
		experiment.WithOutput(stdout),
		experiment.WithObservers(observers...),
	).RunObservations(ctx, obs)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nrecorded %d run(s) in %s\n", len(report.Results), cfg.TrackingURI)
	for _, r := range report.Results {
		fmt.Fprintf(stdout, "  %s  %s\n", r.RunID, r.Title)
	}
	return nil
}

func runsCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	name := fs.String("experiment", "", "experiment (run title) to list")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *name == "" {
		return usageError{"-experiment is required"}
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	store, err := tracking.Open(ctx, cfg.TrackingURI)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, *name)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(stdout, "no runs for %q\n", *name)
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tSTARTED\tMETRICS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.StartTime.Local().Format(time.DateTime), formatMetrics(r.Metrics))
	}
	return tw.Flush()
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}
