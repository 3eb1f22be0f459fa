package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kospi-sync/internal/model"
)

// Manager holds the live session state and writes it through to a Store.
// It is safe for concurrent use. A nil Store keeps state in memory only.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	dirty bool
}

// NewManager creates a Manager with a fresh session.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		state:  fresh(""),
	}
}

func fresh(id string) State {
	if id == "" {
		id = uuid.NewString()
	}
	return State{ID: id, View: model.ViewOverview}
}

// Restore loads the session with the given id, or the latest one when id is
// empty. Missing or undecodable state starts a fresh session.
func (m *Manager) Restore(ctx context.Context, id string) State {
	st, err := m.load(ctx, id)
	switch {
	case err == nil:
		m.logger.Info("session restored", "session", st.ID, "view", st.View)
	case errors.Is(err, ErrNotFound):
		st = fresh(id)
		m.logger.Info("starting new session", "session", st.ID)
	default:
		st = fresh(id)
		m.logger.Warn("ignoring stored session", "session", st.ID, "error", err)
	}

	m.mu.Lock()
	m.state = st
	m.dirty = false
	m.mu.Unlock()

	return st.clone()
}

func (m *Manager) load(ctx context.Context, id string) (State, error) {
	if m.store == nil {
		return State{}, ErrNotFound
	}
	if id == "" {
		return m.store.Latest(ctx)
	}
	return m.store.Load(ctx, id)
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// ID returns the session id.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ID
}

// CurrentView returns the active view.
func (m *Manager) CurrentView() model.View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.View
}

// SetView changes the active view.
func (m *Manager) SetView(v model.View) {
	m.update(func(s *State) bool {
		if s.View == v {
			return false
		}
		s.View = v
		return true
	})
}

// SelectedStrike returns the persisted strike, if any.
func (m *Manager) SelectedStrike() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.SelectedStrike == nil {
		return 0, false
	}
	return *m.state.SelectedStrike, true
}

// SetStrike records the selected strike.
func (m *Manager) SetStrike(strike float64) {
	m.update(func(s *State) bool {
		if s.SelectedStrike != nil && *s.SelectedStrike == strike {
			return false
		}
		s.SelectedStrike = &strike
		return true
	})
}

// OrderBookSymbols returns the subscribed order-book symbols.
func (m *Manager) OrderBookSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.state.OrderBookSymbols)
}

// AddSymbol adds an order-book symbol. It reports whether the set changed.
func (m *Manager) AddSymbol(symbol string) bool {
	return m.update(func(s *State) bool {
		if symbol == "" || slices.Contains(s.OrderBookSymbols, symbol) {
			return false
		}
		s.OrderBookSymbols = append(s.OrderBookSymbols, symbol)
		slices.Sort(s.OrderBookSymbols)
		return true
	})
}

// RemoveSymbol removes an order-book symbol. It reports whether the set changed.
func (m *Manager) RemoveSymbol(symbol string) bool {
	return m.update(func(s *State) bool {
		i := slices.Index(s.OrderBookSymbols, symbol)
		if i < 0 {
			return false
		}
		s.OrderBookSymbols = slices.Delete(s.OrderBookSymbols, i, i+1)
		return true
	})
}

// SetDataSource records the backend data source.
func (m *Manager) SetDataSource(source string) {
	m.update(func(s *State) bool {
		if s.DataSource == source {
			return false
		}
		s.DataSource = source
		return true
	})
}

// Dirty reports whether there are unsaved changes.
func (m *Manager) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Save writes the state if it changed since the last save.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	if !m.dirty || m.store == nil {
		m.dirty = false
		m.mu.Unlock()
		return nil
	}
	st := m.state.clone()
	m.dirty = false
	m.mu.Unlock()

	if err := m.store.Save(ctx, st); err != nil {
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
		return err
	}
	m.logger.Debug("session saved", "session", st.ID)
	return nil
}

// Close saves pending changes and closes the store.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Save(ctx)
	if m.store != nil {
		if cerr := m.store.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (m *Manager) update(fn func(s *State) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !fn(&m.state) {
		return false
	}
	m.state.UpdatedAt = time.Now()
	m.dirty = true
	return true
}
