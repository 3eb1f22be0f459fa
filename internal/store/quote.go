package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/kospi-sync/internal/model"
)

// TickSource is a queue of realtime ticks and quotes.
type TickSource interface {
	TryReceive() (model.TickEvent, bool)
}

// QuoteView merges the latest tick and quote for one symbol.
type QuoteView struct {
	Symbol    string               `json:"symbol"`
	Kind      model.InstrumentKind `json:"kind"`
	Tick      *model.Tick          `json:"tick,omitempty"`
	Quote     *model.Quote         `json:"quote,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// QuoteStats contains consumer statistics.
type QuoteStats struct {
	Applied int64
	Stale   int64
	Symbols int
}

// QuoteStore consumes ticks from a TickSource and keeps the latest values
// per symbol. Updates older than the held one, by exchange timestamp, are
// skipped.
type QuoteStore struct {
	logger *slog.Logger

	// Input from Topic Router
	input TickSource

	mu      sync.RWMutex
	views   map[string]QuoteView
	applied int64
	stale   int64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQuoteStore creates an empty quote store.
func NewQuoteStore(logger *slog.Logger) *QuoteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteStore{
		logger: logger,
		views:  make(map[string]QuoteView),
	}
}

// Start begins consuming input.
func (s *QuoteStore) Start(ctx context.Context, input TickSource) error {
	if input == nil {
		return errors.New("quote store: nil input")
	}
	s.input = input

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.consumeLoop()

	s.logger.Info("quote consumer started")
	return nil
}

// Stop stops the consumer.
func (s *QuoteStore) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("quote consumer stopped")
	case <-ctx.Done():
		s.logger.Warn("quote consumer stop timed out")
	}
	return nil
}

// consumeLoop reads from the input buffer and applies events.
func (s *QuoteStore) consumeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			ev, ok := s.input.TryReceive()
			if !ok {
				select {
				case <-s.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			s.Apply(ev)
		}
	}
}

// Apply merges one event into the symbol's view. It reports whether the
// event was applied.
func (s *QuoteStore) Apply(ev model.TickEvent) bool {
	symbol := ev.Symbol()
	if symbol == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.views[symbol]
	view.Symbol = symbol
	view.Kind = ev.Kind

	switch {
	case ev.Tick != nil:
		if view.Tick != nil && ev.Tick.Timestamp < view.Tick.Timestamp {
			s.stale++
			return false
		}
		view.Tick = ev.Tick
	case ev.Quote != nil:
		if view.Quote != nil && ev.Quote.Timestamp < view.Quote.Timestamp {
			s.stale++
			return false
		}
		view.Quote = ev.Quote
	default:
		return false
	}

	view.UpdatedAt = time.Now()
	s.views[symbol] = view
	s.applied++
	return true
}

// Get returns the view for symbol.
func (s *QuoteStore) Get(symbol string) (QuoteView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[symbol]
	return v, ok
}

// List returns all views of one kind sorted by symbol. An empty kind lists all.
func (s *QuoteStore) List(kind model.InstrumentKind) []QuoteView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]QuoteView, 0, len(s.views))
	for _, v := range s.views {
		if kind == "" || v.Kind == kind {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Stats returns consumer statistics.
func (s *QuoteStore) Stats() QuoteStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return QuoteStats{Applied: s.applied, Stale: s.stale, Symbols: len(s.views)}
}
