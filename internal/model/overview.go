package model

// -----------------------------------------------------------------------------
// Market Overview
// -----------------------------------------------------------------------------

// MarketOverview is the aggregate market snapshot published on
// /topic/market-overview and served by GET /api/market/overview.
type MarketOverview struct {
	TotalFuturesVolume       int64   `json:"totalFuturesVolume"`
	TotalFuturesTradingValue float64 `json:"totalFuturesTradingValue"`
	TotalFuturesOpenInterest int64   `json:"totalFuturesOpenInterest"`
	TotalOptionsVolume       int64   `json:"totalOptionsVolume"`
	TotalOptionsTradingValue float64 `json:"totalOptionsTradingValue"`
	TotalOptionsOpenInterest int64   `json:"totalOptionsOpenInterest"`

	PutCallRatio      *PutCallRatio   `json:"putCallRatio,omitempty"`
	TopByVolume       []TopInstrument `json:"topByVolume"`
	TopByOpenInterest []TopInstrument `json:"topByOpenInterest"`

	MarketStatus *MarketStatus `json:"marketStatus,omitempty"`
	DataSource   string        `json:"dataSource,omitempty"` // "KIS" or "DEMO"
}

// IsEmpty reports whether the snapshot carries no futures or options volume.
// The backend publishes such snapshots outside trading hours.
func (o *MarketOverview) IsEmpty() bool {
	return o.TotalFuturesVolume <= 0 && o.TotalOptionsVolume <= 0
}

// PutCallRatio holds put/call totals and their ratios (put divided by call).
type PutCallRatio struct {
	CallVolume        int64   `json:"callVolume"`
	PutVolume         int64   `json:"putVolume"`
	VolumeRatio       float64 `json:"volumeRatio"`
	CallOpenInterest  int64   `json:"callOpenInterest"`
	PutOpenInterest   int64   `json:"putOpenInterest"`
	OpenInterestRatio float64 `json:"openInterestRatio"`
	CallTradingValue  float64 `json:"callTradingValue"`
	PutTradingValue   float64 `json:"putTradingValue"`
	TradingValueRatio float64 `json:"tradingValueRatio"`
}

// TopInstrument is one entry of a ranked instrument list.
type TopInstrument struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Type          string  `json:"type"` // "FUTURES" or "OPTIONS"
	CurrentPrice  float64 `json:"currentPrice"`
	Volume        int64   `json:"volume"`
	TradingValue  float64 `json:"tradingValue"`
	OpenInterest  int64   `json:"openInterest"`
	ChangePercent float64 `json:"changePercent"`
	OptionType    string  `json:"optionType,omitempty"` // "CALL" or "PUT"
	StrikePrice   float64 `json:"strikePrice,omitempty"`
}

// MarketStatus describes the current trading session as reported by the backend.
type MarketStatus struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	IsOpen      bool   `json:"isOpen"`
	FullText    string `json:"fullText"`
}
