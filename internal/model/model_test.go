package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketOverview_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		o    MarketOverview
		want bool
	}{
		{"both zero", MarketOverview{}, true},
		{"futures only", MarketOverview{TotalFuturesVolume: 10}, false},
		{"options only", MarketOverview{TotalOptionsVolume: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTick_DecodeStringNumbers(t *testing.T) {
	data := []byte(`{
		"symbol": "101W09",
		"currentPrice": "352.15",
		"change": "-1.20",
		"volume": "123456",
		"tradingValue": "9876543210",
		"openInterest": "250000",
		"askPrice": "352.20",
		"bidPrice": "352.10",
		"askVolume": "12",
		"bidVolume": "30",
		"timestamp": 1736130000000
	}`)

	var tick Tick
	if err := json.Unmarshal(data, &tick); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if tick.Symbol != "101W09" {
		t.Errorf("Symbol = %q, want %q", tick.Symbol, "101W09")
	}
	if !tick.CurrentPrice.Equal(decimal.RequireFromString("352.15")) {
		t.Errorf("CurrentPrice = %s, want 352.15", tick.CurrentPrice)
	}
	if tick.Volume.IntPart() != 123456 {
		t.Errorf("Volume = %s, want 123456", tick.Volume)
	}
	if tick.TheoreticalPrice.Valid {
		t.Error("TheoreticalPrice should be absent for futures ticks")
	}
	if tick.Timestamp != 1736130000000 {
		t.Errorf("Timestamp = %d, want 1736130000000", tick.Timestamp)
	}
}

func TestTickEvent_Symbol(t *testing.T) {
	if got := (TickEvent{Tick: &Tick{Symbol: "A"}}).Symbol(); got != "A" {
		t.Errorf("Symbol() = %q, want %q", got, "A")
	}
	if got := (TickEvent{Quote: &Quote{Symbol: "B"}}).Symbol(); got != "B" {
		t.Errorf("Symbol() = %q, want %q", got, "B")
	}
	if got := (TickEvent{}).Symbol(); got != "" {
		t.Errorf("Symbol() = %q, want empty", got)
	}
}

func TestOrderBook_Summarize(t *testing.T) {
	ob := OrderBook{
		Symbol: "101W09",
		Asks: []PriceLevel{
			{Price: decimal.RequireFromString("352.20"), Volume: 10},
			{Price: decimal.RequireFromString("352.25"), Volume: 30},
			{Price: decimal.RequireFromString("352.30"), Volume: 50},
		},
		Bids: []PriceLevel{
			{Price: decimal.RequireFromString("352.10"), Volume: 40},
			{Price: decimal.RequireFromString("352.05"), Volume: 20},
		},
	}

	s := ob.Summarize(0)
	if s.TotalAskVolume != 90 {
		t.Errorf("TotalAskVolume = %d, want 90", s.TotalAskVolume)
	}
	if s.TotalBidVolume != 60 {
		t.Errorf("TotalBidVolume = %d, want 60", s.TotalBidVolume)
	}
	if !s.BidAskRatio.Equal(decimal.RequireFromString("0.6667")) {
		t.Errorf("BidAskRatio = %s, want 0.6667", s.BidAskRatio)
	}
	if !s.HasSpread || !s.Spread.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("Spread = %s (has %v), want 0.10", s.Spread, s.HasSpread)
	}
	if s.MaxVolume != 50 {
		t.Errorf("MaxVolume = %d, want 50", s.MaxVolume)
	}

	// Depth cap excludes the third ask level.
	s = ob.Summarize(2)
	if s.TotalAskVolume != 40 {
		t.Errorf("TotalAskVolume(depth=2) = %d, want 40", s.TotalAskVolume)
	}
	if s.MaxVolume != 40 {
		t.Errorf("MaxVolume(depth=2) = %d, want 40", s.MaxVolume)
	}
}

func TestOrderBook_SummarizeEmptySide(t *testing.T) {
	ob := OrderBook{
		Bids: []PriceLevel{{Price: decimal.NewFromInt(350), Volume: 5}},
	}

	s := ob.Summarize(10)
	if s.HasSpread {
		t.Error("HasSpread should be false without asks")
	}
	if !s.BidAskRatio.IsZero() {
		t.Errorf("BidAskRatio = %s, want 0", s.BidAskRatio)
	}
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in      string
		want    View
		wantErr bool
	}{
		{"overview", ViewOverview, false},
		{"option-chain", ViewOptionChain, false},
		{"futures", ViewFutures, false},
		{"options", ViewOptions, false},
		{"orderbook", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseView(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseView(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseView(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
