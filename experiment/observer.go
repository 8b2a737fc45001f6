package experiment

import (
	"github.com/ezoic/firearea/pkg/log"
	"github.com/ezoic/firearea/selection"
	"github.com/ezoic/firearea/sklearn/neural_network"
)

// Observer receives intermediate results of a run for diagnostics. Returned
// errors are logged by the Runner and do not abort the experiment.
type Observer interface {
	ObserveRanking(ranking selection.Ranking) error
	ObserveHistory(title string, history neural_network.History) error
	ObserveEvaluation(title string, eval *Evaluation) error
}

// LogObserver writes every observation to the structured log.
type LogObserver struct {
	logger log.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver() *LogObserver {
	return &LogObserver{logger: log.GetLoggerWithName("observer")}
}

func (o *LogObserver) ObserveRanking(ranking selection.Ranking) error {
	for i, s := range ranking {
		o.logger.Info("Feature importance",
			"rank", i+1,
			"feature", s.Feature,
			"rf_importance", s.RFImportance,
			"mutual_info", s.MutualInfo,
			"correlation", s.Correlation,
		)
	}
	return nil
}

func (o *LogObserver) ObserveHistory(title string, history neural_network.History) error {
	for epoch := range history.Loss {
		fields := []interface{}{log.ExperimentKey, title, log.EpochKey, epoch + 1, log.LossKey, history.Loss[epoch]}
		if epoch < len(history.ValLoss) {
			fields = append(fields, log.ValLossKey, history.ValLoss[epoch])
		}
		o.logger.Debug("Epoch", fields...)
	}
	return nil
}

func (o *LogObserver) ObserveEvaluation(title string, eval *Evaluation) error {
	o.logger.Info("Metrics",
		log.ExperimentKey, title,
		"metrics", eval.Record.Format(),
		"raw_loss", eval.RawLoss,
		"raw_mae", eval.RawMAE,
	)
	return nil
}
