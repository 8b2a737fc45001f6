package preprocessing

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/firearea/core/model"
	"github.com/ezoic/firearea/dataset"
	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
)

// Scaling names the numeric scaler used by a Preprocessor.
type Scaling string

const (
	// ScalingMinMax maps numeric features to [0, 1].
	ScalingMinMax Scaling = "minmax"
	// ScalingStandard maps numeric features to zero mean and unit variance.
	ScalingStandard Scaling = "standard"
)

// OutputColumns is the column layout of every Frame produced by a Preprocessor.
var OutputColumns = []string{
	dataset.ColX, dataset.ColY, dataset.ColMonth, dataset.ColDay,
	dataset.ColFFMC, dataset.ColDMC, dataset.ColDC, dataset.ColISI,
	dataset.ColTemp, dataset.ColRH, dataset.ColWind, dataset.ColRain,
	dataset.ColArea, dataset.ColAreaLog,
}

// Preprocessor turns forest-fire observations into a model-ready Frame.
//
// Fit learns one LabelEncoder per categorical column and a scaler over the
// numeric feature columns. Transform replays those parameters and adds the
// area_log = ln(area+1) target. The raw area column is carried through
// unscaled.
//
// A fitted Preprocessor refuses to Fit again; call Reset first to discard the
// learned parameters.
type Preprocessor struct {
	model.BaseEstimator

	Scaling  Scaling
	Encoders map[string]*LabelEncoder
	MinMax   *MinMaxScaler
	Standard *StandardScaler
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithScaling selects the numeric scaler. Unknown values fail at Fit.
func WithScaling(s Scaling) PreprocessorOption {
	return func(p *Preprocessor) {
		p.Scaling = s
	}
}

// NewPreprocessor creates an unfitted Preprocessor with min/max scaling.
func NewPreprocessor(opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{Scaling: ScalingMinMax}
	p.ModelType = "Preprocessor"
	for _, opt := range opts {
		opt(p)
	}
	p.SetLogger(log.GetLoggerWithName("preprocessing"))
	return p
}

// Validate checks every observation and reports all offending cells at once.
// Rows are indexed by position in obs.
func (p *Preprocessor) Validate(obs []dataset.Observation) error {
	var invalid, missing []fireErrors.Cell
	for i, o := range obs {
		for _, col := range dataset.Columns {
			if v, ok := o.Numeric(col); ok {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					invalid = append(invalid, fireErrors.Cell{Row: i, Column: col, Value: formatFloat(v)})
					continue
				}
				if col == dataset.ColArea && v < 0 {
					invalid = append(invalid, fireErrors.Cell{Row: i, Column: col, Value: formatFloat(v)})
				}
				continue
			}
			if s, ok := o.Category(col); ok && s == "" {
				missing = append(missing, fireErrors.Cell{Row: i, Column: col})
			}
		}
	}

	if len(missing) > 0 {
		return fireErrors.NewDataError("Preprocessor.Validate", "empty category", missing, fireErrors.ErrMissingValue)
	}
	if len(invalid) > 0 {
		return fireErrors.NewDataError("Preprocessor.Validate", "non-finite or negative value", invalid, fireErrors.ErrInvalidValue)
	}
	return nil
}

// Fit learns encoders and scaler parameters from obs.
//
// Errors:
//   - ErrAlreadyFitted: if the Preprocessor is fitted and Reset was not called
//   - ErrEmptyData: if obs is empty
//   - *DataError: if any observation is invalid
func (p *Preprocessor) Fit(obs []dataset.Observation) (err error) {
	defer fireErrors.Recover(&err, "Preprocessor.Fit")
	if p.IsFitted() {
		return fireErrors.NewModelError("Preprocessor.Fit", "call Reset before refitting", fireErrors.ErrAlreadyFitted)
	}
	if len(obs) == 0 {
		return fireErrors.NewModelError("Preprocessor.Fit", "empty data", fireErrors.ErrEmptyData)
	}
	if err := p.Validate(obs); err != nil {
		return err
	}

	encoders := make(map[string]*LabelEncoder, len(dataset.CategoricalColumns))
	for _, col := range dataset.CategoricalColumns {
		enc := NewLabelEncoder()
		if err := enc.Fit(categoryColumn(obs, col)); err != nil {
			return fireErrors.Wrapf(err, "encoding column %q", col)
		}
		encoders[col] = enc
	}

	numeric := numericMatrix(obs, dataset.NumericFeatureColumns)
	switch p.Scaling {
	case ScalingMinMax, "":
		s := NewMinMaxScalerDefault()
		if err := s.Fit(numeric); err != nil {
			return err
		}
		p.MinMax, p.Standard = s, nil
		p.Scaling = ScalingMinMax
	case ScalingStandard:
		s := NewStandardScalerDefault()
		if err := s.Fit(numeric); err != nil {
			return err
		}
		p.Standard, p.MinMax = s, nil
	default:
		return fireErrors.NewValidationError("scaling", "must be minmax or standard", string(p.Scaling))
	}

	p.Encoders = encoders
	p.SetFitted()
	p.LogInfo("preprocessor fitted",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, len(obs),
		log.FeaturesKey, len(dataset.NumericFeatureColumns),
		"scaling", string(p.Scaling),
	)
	return nil
}

// Transform applies the fitted encoders and scaler and derives area_log.
// The returned Frame has OutputColumns in order.
func (p *Preprocessor) Transform(obs []dataset.Observation) (_ *dataset.Frame, err error) {
	defer fireErrors.Recover(&err, "Preprocessor.Transform")
	if !p.IsFitted() {
		return nil, fireErrors.NewNotFittedError("Preprocessor", "Transform")
	}
	if len(obs) == 0 {
		return nil, fireErrors.NewModelError("Preprocessor.Transform", "empty data", fireErrors.ErrEmptyData)
	}
	if err := p.Validate(obs); err != nil {
		return nil, err
	}

	scaled, err := p.scaler().Transform(numericMatrix(obs, dataset.NumericFeatureColumns))
	if err != nil {
		return nil, err
	}

	codes := make(map[string]mat.Matrix, len(p.Encoders))
	for _, col := range dataset.CategoricalColumns {
		enc, ok := p.Encoders[col]
		if !ok {
			return nil, fireErrors.NewValueError("Preprocessor.Transform", fmt.Sprintf("no encoder for column %q", col))
		}
		c, err := enc.TransformColumn(categoryColumn(obs, col))
		if err != nil {
			return nil, fireErrors.Wrapf(err, "encoding column %q", col)
		}
		codes[col] = c
	}

	numericIdx := make(map[string]int, len(dataset.NumericFeatureColumns))
	for j, col := range dataset.NumericFeatureColumns {
		numericIdx[col] = j
	}

	out := mat.NewDense(len(obs), len(OutputColumns), nil)
	for i, o := range obs {
		for j, col := range OutputColumns {
			switch col {
			case dataset.ColMonth, dataset.ColDay:
				out.Set(i, j, codes[col].At(i, 0))
			case dataset.ColArea:
				out.Set(i, j, o.Area)
			case dataset.ColAreaLog:
				out.Set(i, j, math.Log1p(o.Area))
			default:
				out.Set(i, j, scaled.At(i, numericIdx[col]))
			}
		}
	}

	return dataset.NewFrame(OutputColumns, out)
}

// FitTransform removes duplicates, validates, fits and transforms. It returns
// the frame and the number of duplicate rows removed.
func (p *Preprocessor) FitTransform(obs []dataset.Observation) (*dataset.Frame, int, error) {
	clean, removed := dataset.DropDuplicates(obs)
	if removed > 0 {
		p.LogInfo("dropped duplicate observations", log.DuplicatesKey, removed, log.SamplesKey, len(clean))
	}
	if err := p.Fit(clean); err != nil {
		return nil, removed, err
	}
	frame, err := p.Transform(clean)
	if err != nil {
		return nil, removed, err
	}
	return frame, removed, nil
}

// Reset discards fitted parameters so Fit may be called again.
func (p *Preprocessor) Reset() {
	p.Encoders = nil
	p.MinMax = nil
	p.Standard = nil
	p.BaseEstimator.Reset()
}

// Encoder returns the fitted encoder of a categorical column.
func (p *Preprocessor) Encoder(col string) (*LabelEncoder, bool) {
	enc, ok := p.Encoders[col]
	return enc, ok
}

func (p *Preprocessor) scaler() model.Transformer {
	if p.Standard != nil {
		return p.Standard
	}
	return p.MinMax
}

func categoryColumn(obs []dataset.Observation, col string) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i], _ = o.Category(col)
	}
	return out
}

func numericMatrix(obs []dataset.Observation, cols []string) *mat.Dense {
	m := mat.NewDense(len(obs), len(cols), nil)
	for i, o := range obs {
		for j, col := range cols {
			v, _ := o.Numeric(col)
			m.Set(i, j, v)
		}
	}
	return m
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
