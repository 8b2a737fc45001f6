package model

import "sync"

// StateManager tracks whether an estimator is fitted and the data shape it was
// fitted on. Estimators hold it by pointer (composition instead of embedding).
// Fields are exported for gob encoding.
type StateManager struct {
	mu sync.RWMutex

	Fitted    bool
	NFeatures int
	NSamples  int
}

// NewStateManager returns an unfitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports the fitted state.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	s.Fitted = true
	s.mu.Unlock()
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
	s.mu.Unlock()
}

// Dimensions returns the recorded training shape.
func (s *StateManager) Dimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// Reset clears fitted state and shape.
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
	s.mu.Unlock()
}
