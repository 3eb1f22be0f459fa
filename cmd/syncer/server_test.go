package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/kospi-sync/internal/app"
	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/model"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Connection.ManualConnect = true
	cfg.Poller.Disabled = true

	a, err := app.New(context.Background(), cfg, nil, app.WithSessionStore(nil))
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	return a
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandler_Health(t *testing.T) {
	h := newHandler(newTestApp(t), nil)

	rec := serve(h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health app.Health
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Session == "" {
		t.Error("health has no session id")
	}
	if health.View != model.ViewOverview {
		t.Errorf("View = %q, want overview", health.View)
	}
}

func TestHandler_DebugNotFound(t *testing.T) {
	h := newHandler(newTestApp(t), nil)

	for _, target := range []string{"/debug/overview", "/debug/chain", "/debug/orderbook/101W09"} {
		if rec := serve(h, http.MethodGet, target); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestHandler_DebugOverview(t *testing.T) {
	a := newTestApp(t)
	market := a.Stores().Market
	market.Update(market.NextSeq(), model.MarketOverview{
		TotalFuturesVolume: 10,
		TotalOptionsVolume: 20,
		PutCallRatio:       &model.PutCallRatio{VolumeRatio: 1.8},
	})
	h := newHandler(a, nil)

	rec := serve(h, http.MethodGet, "/debug/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		TotalVolume struct{ Total int64 } `json:"totalVolume"`
		Sentiment   struct{ Label string } `json:"sentiment"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalVolume.Total != 30 {
		t.Errorf("Total = %d, want 30", resp.TotalVolume.Total)
	}
	if resp.Sentiment.Label != "BEARISH" {
		t.Errorf("Label = %q, want BEARISH", resp.Sentiment.Label)
	}
}

func TestHandler_DebugChain(t *testing.T) {
	a := newTestApp(t)
	chain := a.Stores().Chain
	chain.Update(chain.NextSeq(), model.OptionChain{
		ATMStrike:   350,
		StrikeChain: []model.StrikeRow{{StrikePrice: 350, CallOpenInterest: 5, PutOpenInterest: 7}},
	})
	h := newHandler(a, nil)

	rec := serve(h, http.MethodGet, "/debug/chain")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp chainResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCallOI != 5 || resp.TotalPutOI != 7 {
		t.Errorf("OI = %d/%d, want 5/7", resp.TotalCallOI, resp.TotalPutOI)
	}
	if resp.SelectedStrike == nil || *resp.SelectedStrike != 350 {
		t.Errorf("SelectedStrike = %v, want seeded 350", resp.SelectedStrike)
	}
}

func TestHandler_Controls(t *testing.T) {
	a := newTestApp(t)
	h := newHandler(a, nil)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodPost, "/control/view?name=futures", http.StatusOK},
		{http.MethodPost, "/control/view?name=heatmap", http.StatusBadRequest},
		{http.MethodPost, "/control/strike?value=352.5", http.StatusOK},
		{http.MethodPost, "/control/strike?value=abc", http.StatusBadRequest},
		{http.MethodPost, "/control/strike?value=-1", http.StatusBadRequest},
		{http.MethodPost, "/control/reconnect", http.StatusAccepted},
		{http.MethodPost, "/control/orderbook/201W09350", http.StatusOK},
		{http.MethodDelete, "/control/orderbook/201W09350", http.StatusOK},
		{http.MethodGet, "/debug/quotes?kind=futures", http.StatusOK},
		{http.MethodGet, "/debug/quotes?kind=bonds", http.StatusBadRequest},
		{http.MethodGet, "/control/reconnect", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			if rec := serve(h, tt.method, tt.target); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if a.Session().CurrentView() != model.ViewFutures {
		t.Errorf("view = %q, want futures", a.Session().CurrentView())
	}
	if strike, ok := a.Stores().Chain.SelectedStrike(); !ok || strike != 352.5 {
		t.Errorf("SelectedStrike = %v/%v, want 352.5", strike, ok)
	}
}
