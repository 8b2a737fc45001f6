package model

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ezoic/firearea/pkg/errors"
)

// ExportFormatVersion is the envelope version written by ExportModel.
const ExportFormatVersion = "1.0"

// ModelSpec is the metadata header of an exported model.
type ModelSpec struct {
	Name          string `json:"name"`           // estimator name, e.g. "MLPRegressor"
	FormatVersion string `json:"format_version"` // envelope version
	Flavor        string `json:"flavor,omitempty"`
}

// ExportedModel is a versioned JSON envelope around estimator parameters.
// InputExample holds rows used for schema inference by a tracking store.
type ExportedModel struct {
	ModelSpec    ModelSpec       `json:"model_spec"`
	Params       json.RawMessage `json:"params"`
	InputExample [][]float64     `json:"input_example,omitempty"`
	FeatureNames []string        `json:"feature_names,omitempty"`
}

// ExportModel writes params inside an ExportedModel envelope to w.
//
// Parameters:
//   - modelName: estimator name stored in the spec
//   - params: JSON-serialisable estimator parameters (weights, shapes)
//   - example: optional input rows attached for schema inference
//   - w: destination
func ExportModel(modelName string, params interface{}, example [][]float64, featureNames []string, w io.Writer) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	env := ExportedModel{
		ModelSpec: ModelSpec{
			Name:          modelName,
			FormatVersion: ExportFormatVersion,
			Flavor:        "firearea",
		},
		Params:       paramsJSON,
		InputExample: example,
		FeatureNames: featureNames,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&env); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	return nil
}

// ReadExportedModel decodes and validates an envelope written by ExportModel.
func ReadExportedModel(r io.Reader) (*ExportedModel, error) {
	var env ExportedModel
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if env.ModelSpec.FormatVersion == "" {
		return nil, errors.NewValueError("ReadExportedModel", "format_version is required")
	}
	if env.ModelSpec.FormatVersion != ExportFormatVersion {
		return nil, errors.NewValueError("ReadExportedModel",
			fmt.Sprintf("unsupported format version: %s", env.ModelSpec.FormatVersion))
	}
	if env.ModelSpec.Name == "" {
		return nil, errors.NewValueError("ReadExportedModel", "model name is required")
	}

	return &env, nil
}

// DecodeParams unmarshals the envelope params into v, checking the model name.
func (e *ExportedModel) DecodeParams(expectedName string, v interface{}) error {
	if e.ModelSpec.Name != expectedName {
		return errors.NewValueError("ExportedModel.DecodeParams",
			fmt.Sprintf("expected %s, got %s", expectedName, e.ModelSpec.Name))
	}
	if err := json.Unmarshal(e.Params, v); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}
