package store

import "github.com/rickgao/kospi-sync/internal/model"

// SystemStore holds the backend's latest runtime state.
type SystemStore struct {
	versioned[model.SystemState]
}

// NewSystemStore creates an empty system store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Update replaces the system state.
func (s *SystemStore) Update(seq uint64, st model.SystemState) error {
	return s.update(seq, st)
}

// Snapshot returns the current system state.
func (s *SystemStore) Snapshot() (model.SystemState, bool) {
	return s.snapshot()
}

// IsDemo reports whether the backend serves simulated data.
func (s *SystemStore) IsDemo() bool {
	st, ok := s.snapshot()
	return ok && (st.DemoMode || st.DataSource == "DEMO")
}
