package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rickgao/kospi-sync/internal/model"
)

type orderBookEntry struct {
	book      model.OrderBook
	updatedAt time.Time
}

// OrderBookStore holds the latest depth snapshot per symbol.
type OrderBookStore struct {
	mu    sync.RWMutex
	books map[string]orderBookEntry
	depth int
}

// NewOrderBookStore creates an order book store summarizing depth levels.
func NewOrderBookStore(depth int) *OrderBookStore {
	return &OrderBookStore{
		books: make(map[string]orderBookEntry),
		depth: depth,
	}
}

// Update replaces the book for ob.Symbol.
func (s *OrderBookStore) Update(ob model.OrderBook) error {
	if ob.Symbol == "" {
		return ErrEmptySnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[ob.Symbol] = orderBookEntry{book: ob, updatedAt: time.Now()}
	return nil
}

// Get returns the book for symbol.
func (s *OrderBookStore) Get(symbol string) (model.OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.books[symbol]
	return e.book, ok
}

// Summary returns totals, ratio and spread for symbol.
func (s *OrderBookStore) Summary(symbol string) (model.OrderBookSummary, bool) {
	ob, ok := s.Get(symbol)
	if !ok {
		return model.OrderBookSummary{}, false
	}
	return ob.Summarize(s.depth), true
}

// LastUpdate returns when the book for symbol was last replaced.
func (s *OrderBookStore) LastUpdate(symbol string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[symbol].updatedAt
}

// Remove drops the book for symbol.
func (s *OrderBookStore) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, symbol)
}

// Symbols returns the symbols with a book, sorted.
func (s *OrderBookStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := make([]string, 0, len(s.books))
	for symbol := range s.books {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
