package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rickgao/kospi-sync/internal/model"
)

var (
	// ErrNotFound is returned when no state exists for a session id.
	ErrNotFound = errors.New("session not found")

	// ErrCorrupt is returned when a stored document cannot be decoded.
	ErrCorrupt = errors.New("session state corrupt")
)

// State is the persisted UI state of one session.
type State struct {
	ID               string     `json:"id"`
	View             model.View `json:"view"`
	SelectedStrike   *float64   `json:"selectedStrike,omitempty"`
	OrderBookSymbols []string   `json:"orderBookSymbols,omitempty"`
	DataSource       string     `json:"dataSource,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Encode serializes the state for storage.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a stored document. An empty view means the overview.
func Decode(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.ID == "" {
		return State{}, fmt.Errorf("%w: missing id", ErrCorrupt)
	}
	if s.View == "" {
		s.View = model.ViewOverview
	}
	if _, err := model.ParseView(string(s.View)); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}

func (s State) clone() State {
	c := s
	c.OrderBookSymbols = slices.Clone(s.OrderBookSymbols)
	if s.SelectedStrike != nil {
		v := *s.SelectedStrike
		c.SelectedStrike = &v
	}
	return c
}
