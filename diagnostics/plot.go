// Package diagnostics renders experiment observations as PNG charts with
// gonum/plot: feature importance bars, training loss curves and
// predicted-versus-actual scatter plots.
package diagnostics

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/firearea/experiment"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/selection"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// PlotObserver writes one chart per observation into Dir.
type PlotObserver struct {
	Dir    string
	Width  vg.Length
	Height vg.Length

	mu     sync.Mutex
	files  []string
	logger log.Logger
}

var _ experiment.Observer = (*PlotObserver)(nil)

// NewPlotObserver creates dir if needed and returns an observer writing 8x6 inch PNGs.
func NewPlotObserver(dir string) (*PlotObserver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fireErrors.Wrapf(err, "create plot directory %s", dir)
	}
	return &PlotObserver{
		Dir:    dir,
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
		logger: log.GetLoggerWithName("diagnostics"),
	}, nil
}

// Files lists the charts written so far.
func (o *PlotObserver) Files() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.files...)
}

func (o *PlotObserver) ObserveRanking(ranking selection.Ranking) error {
	p, err := ImportancePlot(ranking)
	if err != nil {
		return err
	}
	return o.save(p, "feature_importance.png")
}

func (o *PlotObserver) ObserveHistory(title string, history neural_network.History) error {
	p, err := LossPlot(title, history)
	if err != nil {
		return err
	}
	return o.save(p, Slug(title)+"_loss.png")
}

func (o *PlotObserver) ObserveEvaluation(title string, eval *experiment.Evaluation) error {
	p, err := PredictionPlot(title, eval.Actual, eval.Predictions)
	if err != nil {
		return err
	}
	return o.save(p, Slug(title)+"_predictions.png")
}

func (o *PlotObserver) save(p *plot.Plot, name string) error {
	path := filepath.Join(o.Dir, name)
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return fireErrors.Wrapf(err, "save plot %s", path)
	}
	o.mu.Lock()
	o.files = append(o.files, path)
	o.mu.Unlock()
	o.logger.Debug("Plot saved", "path", path)
	return nil
}

// ImportancePlot draws RF importance per feature, in ranking order.
func ImportancePlot(ranking selection.Ranking) (*plot.Plot, error) {
	if len(ranking) == 0 {
		return nil, fireErrors.NewModelError("ImportancePlot", "empty ranking", fireErrors.ErrEmptyData)
	}
	values := make(plotter.Values, len(ranking))
	for i, s := range ranking {
		values[i] = s.RFImportance
	}

	p := plot.New()
	p.Title.Text = "Random Forest Feature Importance"
	p.Y.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(ranking.Features()...)
	return p, nil
}

// LossPlot draws training and, when present, validation loss per epoch.
func LossPlot(title string, history neural_network.History) (*plot.Plot, error) {
	if history.Len() == 0 {
		return nil, fireErrors.NewModelError("LossPlot", "empty history", fireErrors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = title + ": Model Loss Progress During Training"
	p.X.Label.Text = "Epochs"
	p.Y.Label.Text = "Training and Validation Loss"

	args := []interface{}{"Training Loss", series(history.Loss)}
	if len(history.ValLoss) > 0 {
		args = append(args, "Validation Loss", series(history.ValLoss))
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return nil, err
	}
	return p, nil
}

// PredictionPlot scatters predictions against actual values with the
// identity line for reference.
func PredictionPlot(title string, actual, predicted []float64) (*plot.Plot, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return nil, fireErrors.NewDimensionError("PredictionPlot", len(actual), len(predicted), 0)
	}
	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X, pts[i].Y = actual[i], predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}

	p := plot.New()
	p.Title.Text = title + ": Predicted vs Actual"
	p.X.Label.Text = "Actual area (ha)"
	p.Y.Label.Text = "Predicted area (ha)"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	scatter.Color = plotter.DefaultLineStyle.Color
	p.Add(scatter)
	p.Legend.Add("Predictions", scatter)

	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	line.Color = plotutil.Color(1)
	line.Dashes = plotutil.Dashes(1)
	p.Add(line)
	p.Legend.Add("Perfect prediction", line)
	return p, nil
}

// Slug turns a run title into a file-name fragment.
func Slug(title string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func series(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}
