package router

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rickgao/kospi-sync/internal/model"
)

// Topics published by the dashboard backend.
const (
	TopicMarketOverview  = "/topic/market-overview"
	TopicOptionChain     = "/topic/option-chain"
	TopicFuturesRealtime = "/topic/futures/realtime"
	TopicFuturesQuote    = "/topic/futures/quote"
	TopicOptionsRealtime = "/topic/options/realtime"
	TopicOptionsQuote    = "/topic/options/quote"

	OrderBookTopicPrefix = "/topic/orderbook/"
)

// Envelope type tags.
const (
	TypeMarketOverview = "MARKET_OVERVIEW"
	TypeOptionChain    = "OPTION_CHAIN"
	TypePriceUpdate    = "PRICE_UPDATE"
)

// Errors
var (
	ErrDecode       = errors.New("decode error")
	ErrValidation   = model.ErrInvalid
	ErrUnknownTopic = errors.New("unknown topic")
)

// OrderBookTopic returns the depth topic for a symbol.
func OrderBookTopic(symbol string) string {
	return OrderBookTopicPrefix + symbol
}

// orderBookSymbol extracts the symbol from a depth topic.
func orderBookSymbol(topic string) (string, bool) {
	if !strings.HasPrefix(topic, OrderBookTopicPrefix) {
		return "", false
	}
	symbol := strings.TrimPrefix(topic, OrderBookTopicPrefix)
	return symbol, symbol != ""
}

// EmptyOverviewPolicy decides what happens to an overview with no volume.
type EmptyOverviewPolicy string

const (
	// EmptyOverviewDrop keeps the previous snapshot.
	EmptyOverviewDrop EmptyOverviewPolicy = "drop"
	// EmptyOverviewAccept replaces the snapshot anyway.
	EmptyOverviewAccept EmptyOverviewPolicy = "accept"
)

// RouterConfig configures the Topic Router.
type RouterConfig struct {
	TickBufferSize   int                 // Initial tick buffer capacity
	TickBufferMax    int                 // Tick buffer ceiling (0 = unbounded)
	EmptyOverview    EmptyOverviewPolicy // Policy for zero-volume overviews
	OrderBookSymbols []string            // Depth topics registered at startup
}

// DefaultRouterConfig returns sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		TickBufferSize: 1000,
		TickBufferMax:  100000,
		EmptyOverview:  EmptyOverviewDrop,
	}
}

// SnapshotStore is a sequence-guarded store that the router feeds.
type SnapshotStore[T any] interface {
	NextSeq() uint64
	Update(seq uint64, v T) error
}

// OrderBookSink receives depth snapshots.
type OrderBookSink interface {
	Update(ob model.OrderBook) error
}

// Targets are the stores the router writes to.
type Targets struct {
	Overview  SnapshotStore[model.MarketOverview]
	Chain     SnapshotStore[model.OptionChain]
	OrderBook OrderBookSink
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	ValidationDrops  int64
	StaleDrops       int64
	UnknownTopics    int64
	TickBuffer       BufferStats
}

// envelope is the {type, timestamp, data} wrapper some publishers use.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
