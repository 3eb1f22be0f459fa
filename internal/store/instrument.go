package store

import (
	"sort"
	"time"

	"github.com/rickgao/kospi-sync/internal/model"
)

// InstrumentStore holds the futures and options lists.
type InstrumentStore struct {
	futures versioned[[]model.Instrument]
	options versioned[[]model.Instrument]
}

// NewInstrumentStore creates an empty instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{}
}

func (s *InstrumentStore) list(kind model.InstrumentKind) *versioned[[]model.Instrument] {
	if kind == model.KindOptions {
		return &s.options
	}
	return &s.futures
}

// NextSeq issues the next sequence number for kind.
func (s *InstrumentStore) NextSeq(kind model.InstrumentKind) uint64 {
	return s.list(kind).NextSeq()
}

// Update replaces the list for kind.
func (s *InstrumentStore) Update(kind model.InstrumentKind, seq uint64, items []model.Instrument) error {
	return s.list(kind).update(seq, items)
}

// List returns the instruments of kind in backend order.
func (s *InstrumentStore) List(kind model.InstrumentKind) ([]model.Instrument, bool) {
	return s.list(kind).snapshot()
}

// TopByVolume returns up to n instruments of kind ranked by volume.
// n <= 0 returns all.
func (s *InstrumentStore) TopByVolume(kind model.InstrumentKind, n int) []model.Instrument {
	items, _ := s.List(kind)
	out := make([]model.Instrument, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// LastUpdate returns when the list for kind was last replaced.
func (s *InstrumentStore) LastUpdate(kind model.InstrumentKind) time.Time {
	return s.list(kind).LastUpdate()
}
