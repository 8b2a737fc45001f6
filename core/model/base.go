// Package model provides core abstractions shared by firearea estimators.
//
// This package defines:
//
//   - BaseEstimator: embeddable fitted-state tracking plus hyperparameters
//   - StateManager: composable fitted-state and shape bookkeeping
//   - Transformer / Regressor: the Fit/Transform and Fit/Predict contracts
//   - Persistence: gob save/load of fitted estimators
//   - Export: a versioned JSON envelope for handing models to a tracking store
//
// Example usage:
//
//	type MyScaler struct {
//		model.BaseEstimator
//		// scaler-specific fields
//	}
//
//	func (s *MyScaler) Fit(X mat.Matrix) error {
//		// learn parameters
//		s.SetFitted()
//		return nil
//	}
package model

import (
	"github.com/ezoic/firearea/pkg/log"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// BaseEstimator is the base structure for preprocessing components.
type BaseEstimator struct {
	// State holds the learning state. Public for gob encoding.
	State EstimatorState

	// ModelType identifies the type of model
	ModelType string

	logger          log.Logger
	hyperparameters map[string]interface{}
}

// IsFitted returns whether the estimator has been fitted with data.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted. Called by implementations at the
// end of a successful Fit.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial untrained state.
//
// Components that refuse to refit silently (such as the forest-fire
// Preprocessor) require Reset as the explicit signal that new fitted
// parameters are wanted.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// SetLogger sets the logger for this estimator.
func (e *BaseEstimator) SetLogger(logger log.Logger) {
	e.logger = logger
}

// GetLogger returns the logger for this estimator, or nil.
func (e *BaseEstimator) GetLogger() log.Logger {
	return e.logger
}

// LogInfo logs an info-level message if a logger is configured.
func (e *BaseEstimator) LogInfo(msg string, fields ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, fields...)
	}
}

// LogDebug logs a debug-level message if a logger is configured.
func (e *BaseEstimator) LogDebug(msg string, fields ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, fields...)
	}
}

// GetParams retrieves the estimator's hyperparameters. With deep set the
// returned map is a copy.
func (e *BaseEstimator) GetParams(deep bool) map[string]interface{} {
	if e.hyperparameters == nil {
		return make(map[string]interface{})
	}

	if !deep {
		return e.hyperparameters
	}

	params := make(map[string]interface{}, len(e.hyperparameters))
	for k, v := range e.hyperparameters {
		params[k] = v
	}
	return params
}

// SetParams merges params into the estimator's hyperparameters.
func (e *BaseEstimator) SetParams(params map[string]interface{}) error {
	if e.hyperparameters == nil {
		e.hyperparameters = make(map[string]interface{})
	}

	for k, v := range params {
		e.hyperparameters[k] = v
	}

	return nil
}
