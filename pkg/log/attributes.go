package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "MLPRegressor", "MinMaxScaler".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed: fit, predict, transform, evaluate, record.
	OperationKey = "ml.operation"

	// ComponentKey is the package doing the work, e.g. "preprocessing", "experiment".
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: training, validation, testing, preprocessing.
	PhaseKey = "ml.phase"

	// ExperimentKey is the human-readable experiment title.
	ExperimentKey = "experiment.title"

	// RunIDKey is the tracking-store run identifier.
	RunIDKey = "experiment.run_id"
)

// Data shape.
const (
	SamplesKey    = "data.samples"
	FeaturesKey   = "data.features"
	BatchSizeKey  = "data.batch_size"
	DuplicatesKey = "data.duplicates"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	ValLossKey    = "metrics.val_loss"
	R2ScoreKey    = "metrics.r2_score"
	RMSEKey       = "metrics.rmse"
	EpochKey      = "training.epoch"
	EpochsKey     = "training.epochs"
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationEvaluate     = "evaluate"
	OperationRecord       = "record"
	OperationRank         = "rank"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
