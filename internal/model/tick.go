package model

import "github.com/shopspring/decimal"

// -----------------------------------------------------------------------------
// Realtime Feed Types
// -----------------------------------------------------------------------------

// InstrumentKind distinguishes futures from options feeds.
type InstrumentKind string

const (
	KindFutures InstrumentKind = "futures"
	KindOptions InstrumentKind = "options"
)

// Tick is a realtime trade update from /topic/{futures,options}/realtime.
// Numeric fields accept both JSON strings and numbers.
type Tick struct {
	Symbol             string          `json:"symbol"`
	CurrentPrice       decimal.Decimal `json:"currentPrice"`
	Change             decimal.Decimal `json:"change"`
	Volume             decimal.Decimal `json:"volume"`
	TradingValue       decimal.Decimal `json:"tradingValue"`
	OpenInterest       decimal.Decimal `json:"openInterest"`
	OpenInterestChange decimal.Decimal `json:"openInterestChange"`
	AskPrice           decimal.Decimal `json:"askPrice"`
	BidPrice           decimal.Decimal `json:"bidPrice"`
	AskVolume          decimal.Decimal `json:"askVolume"`
	BidVolume          decimal.Decimal `json:"bidVolume"`

	// Options only.
	TheoreticalPrice decimal.NullDecimal `json:"theoreticalPrice"`
	IntrinsicValue   decimal.NullDecimal `json:"intrinsicValue"`
	TimeValue        decimal.NullDecimal `json:"timeValue"`

	Timestamp int64 `json:"timestamp"` // ms since epoch
}

// Quote is a best bid/ask update from /topic/{futures,options}/quote.
type Quote struct {
	Symbol     string          `json:"symbol"`
	AskPrice1  decimal.Decimal `json:"askPrice1"`
	BidPrice1  decimal.Decimal `json:"bidPrice1"`
	AskVolume1 decimal.Decimal `json:"askVolume1"`
	BidVolume1 decimal.Decimal `json:"bidVolume1"`
	Timestamp  int64           `json:"timestamp"` // ms since epoch
}

// TickEvent carries either a Tick or a Quote through the router's tick buffer.
type TickEvent struct {
	Kind  InstrumentKind
	Tick  *Tick
	Quote *Quote
}

// Symbol returns the symbol of the carried update.
func (e TickEvent) Symbol() string {
	switch {
	case e.Tick != nil:
		return e.Tick.Symbol
	case e.Quote != nil:
		return e.Quote.Symbol
	}
	return ""
}

// -----------------------------------------------------------------------------
// Order Book
// -----------------------------------------------------------------------------

// PriceLevel is one level of order book depth.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// OrderBook is the depth snapshot published on /topic/orderbook/{symbol}.
// Asks are ordered best (lowest) first, bids best (highest) first.
type OrderBook struct {
	Symbol       string          `json:"symbol"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	PriceChange  decimal.Decimal `json:"priceChange"`
	Asks         []PriceLevel    `json:"asks"`
	Bids         []PriceLevel    `json:"bids"`
}

// OrderBookSummary is derived from an OrderBook.
type OrderBookSummary struct {
	TotalAskVolume int64           `json:"totalAskVolume"`
	TotalBidVolume int64           `json:"totalBidVolume"`
	BidAskRatio    decimal.Decimal `json:"bidAskRatio"` // zero when there is no ask volume
	Spread         decimal.Decimal `json:"spread"`
	HasSpread      bool            `json:"hasSpread"`
	MaxVolume      int64           `json:"maxVolume"`
}

// Summarize computes totals, ratio and spread over the given display depth.
// depth <= 0 means all levels.
func (ob *OrderBook) Summarize(depth int) OrderBookSummary {
	asks := capLevels(ob.Asks, depth)
	bids := capLevels(ob.Bids, depth)

	var s OrderBookSummary
	for _, l := range asks {
		s.TotalAskVolume += l.Volume
		if l.Volume > s.MaxVolume {
			s.MaxVolume = l.Volume
		}
	}
	for _, l := range bids {
		s.TotalBidVolume += l.Volume
		if l.Volume > s.MaxVolume {
			s.MaxVolume = l.Volume
		}
	}
	if s.TotalAskVolume > 0 {
		s.BidAskRatio = decimal.NewFromInt(s.TotalBidVolume).
			DivRound(decimal.NewFromInt(s.TotalAskVolume), 4)
	}
	if len(asks) > 0 && len(bids) > 0 {
		s.Spread = asks[0].Price.Sub(bids[0].Price)
		s.HasSpread = true
	}
	return s
}

func capLevels(levels []PriceLevel, depth int) []PriceLevel {
	if depth > 0 && len(levels) > depth {
		return levels[:depth]
	}
	return levels
}

// -----------------------------------------------------------------------------
// Instruments and System State
// -----------------------------------------------------------------------------

// Instrument is a futures or option row from /api/market/futures or /api/market/options.
type Instrument struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	OptionType        string          `json:"optionType,omitempty"`
	StrikePrice       decimal.Decimal `json:"strikePrice"`
	CurrentPrice      decimal.Decimal `json:"currentPrice"`
	ChangeAmount      decimal.Decimal `json:"changeAmount"`
	ChangePercent     decimal.Decimal `json:"changePercent"`
	Volume            int64           `json:"volume"`
	OpenInterest      int64           `json:"openInterest"`
	TradingValue      decimal.Decimal `json:"tradingValue"`
	BidPrice          decimal.Decimal `json:"bidPrice"`
	AskPrice          decimal.Decimal `json:"askPrice"`
	BidVolume         int64           `json:"bidVolume"`
	AskVolume         int64           `json:"askVolume"`
	ImpliedVolatility float64         `json:"impliedVolatility,omitempty"`
	Delta             float64         `json:"delta,omitempty"`
	ExpiryDate        string          `json:"expiryDate,omitempty"`
	Timestamp         string          `json:"timestamp,omitempty"` // backend local time, no zone
}

// SystemState is the backend's runtime mode from GET /api/market/state.
type SystemState struct {
	DataSource         string `json:"dataSource"`
	DemoMode           bool   `json:"demoMode"`
	MarketHoursEnabled bool   `json:"marketHoursEnabled"`
	IsTradingDay       bool   `json:"isTradingDay"`
	IsHoliday          bool   `json:"isHoliday"`
	Timestamp          int64  `json:"timestamp"` // ms since epoch
}

// TradingDay is the response of GET /api/market/is-trading-day.
type TradingDay struct {
	IsTradingDay bool `json:"isTradingDay"`
	IsHoliday    bool `json:"isHoliday"`
}
