package store

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Errors
var (
	ErrStale         = errors.New("stale snapshot")
	ErrEmptySnapshot = errors.New("empty snapshot")
)

// Config configures the stores.
type Config struct {
	Sentiment           SentimentPolicy // discrete or continuous
	RejectEmptyOverview bool            // Keep the previous overview when volumes are zero
	OrderBookDepth      int             // Levels used for order book summaries
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Sentiment:           SentimentDiscrete,
		RejectEmptyOverview: true,
		OrderBookDepth:      10,
	}
}

// Stores bundles one instance of each store.
type Stores struct {
	Market      *MarketStore
	Chain       *ChainStore
	OrderBooks  *OrderBookStore
	Quotes      *QuoteStore
	Instruments *InstrumentStore
	System      *SystemStore
}

// New creates the store bundle. The quote store consumes nothing until it
// is started with a tick source.
func New(cfg Config, logger *slog.Logger) *Stores {
	return &Stores{
		Market:      NewMarketStore(cfg.Sentiment, cfg.RejectEmptyOverview),
		Chain:       NewChainStore(),
		OrderBooks:  NewOrderBookStore(cfg.OrderBookDepth),
		Quotes:      NewQuoteStore(logger),
		Instruments: NewInstrumentStore(),
		System:      NewSystemStore(),
	}
}

// versioned holds one snapshot guarded by a sequence number.
type versioned[T any] struct {
	mu        sync.RWMutex
	issued    atomic.Uint64
	applied   uint64
	value     T
	ok        bool
	updatedAt time.Time
}

// NextSeq issues the next sequence number for this store.
func (v *versioned[T]) NextSeq() uint64 {
	return v.issued.Add(1)
}

// set replaces the snapshot. Callers hold v.mu.
func (v *versioned[T]) set(seq uint64, value T) error {
	if v.ok && seq < v.applied {
		return ErrStale
	}
	v.applied = seq
	v.value = value
	v.ok = true
	v.updatedAt = time.Now()

	// Keep issued ahead of externally chosen sequence numbers.
	for {
		cur := v.issued.Load()
		if cur >= seq || v.issued.CompareAndSwap(cur, seq) {
			break
		}
	}
	return nil
}

func (v *versioned[T]) update(seq uint64, value T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.set(seq, value)
}

func (v *versioned[T]) snapshot() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.ok
}

// LastUpdate returns when the snapshot was last replaced.
func (v *versioned[T]) LastUpdate() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updatedAt
}

// AppliedSeq returns the sequence number of the current snapshot.
func (v *versioned[T]) AppliedSeq() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.applied
}
