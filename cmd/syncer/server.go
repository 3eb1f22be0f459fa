package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rickgao/kospi-sync/internal/app"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/store"
)

// overviewResponse is the derived market overview.
type overviewResponse struct {
	Overview          model.MarketOverview  `json:"overview"`
	TotalVolume       store.Volume          `json:"totalVolume"`
	PutCallRatio      *model.PutCallRatio   `json:"putCallRatio,omitempty"`
	Sentiment         store.Sentiment       `json:"sentiment"`
	TopByVolume       []model.TopInstrument `json:"topByVolume"`
	TopByOpenInterest []model.TopInstrument `json:"topByOpenInterest"`
	LastUpdate        time.Time             `json:"lastUpdate"`
}

// chainResponse is the derived option chain.
type chainResponse struct {
	UnderlyingPrice float64           `json:"underlyingPrice"`
	ATMStrike       float64           `json:"atmStrike"`
	MaxPainPrice    float64           `json:"maxPainPrice"`
	MaxPainLoss     float64           `json:"maxPainLoss"`
	TotalCallOI     int64             `json:"totalCallOI"`
	TotalPutOI      int64             `json:"totalPutOI"`
	WeightedGreeks  model.Greeks      `json:"weightedGreeks"`
	SelectedStrike  *float64          `json:"selectedStrike,omitempty"`
	SelectedRow     *model.StrikeRow  `json:"selectedRow,omitempty"`
	Rows            []model.StrikeRow `json:"rows"`
	LastUpdate      time.Time         `json:"lastUpdate"`
}

// orderBookResponse is one symbol's depth and summary.
type orderBookResponse struct {
	Book       model.OrderBook        `json:"book"`
	Summary    model.OrderBookSummary `json:"summary"`
	LastUpdate time.Time              `json:"lastUpdate"`
}

// newHandler creates the HTTP handler for health, debug and control routes.
func newHandler(a *app.App, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	stores := a.Stores()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		health := a.Health()
		status := http.StatusOK
		if health.Status == app.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	})

	mux.HandleFunc("GET /debug/overview", func(w http.ResponseWriter, r *http.Request) {
		ov, ok := stores.Market.Snapshot()
		if !ok {
			writeError(w, http.StatusNotFound, "no market overview yet")
			return
		}
		resp := overviewResponse{
			Overview:          ov,
			TotalVolume:       stores.Market.TotalVolume(),
			Sentiment:         stores.Market.Sentiment(),
			TopByVolume:       stores.Market.TopByVolume(5),
			TopByOpenInterest: stores.Market.TopByOpenInterest(5),
			LastUpdate:        stores.Market.LastUpdate(),
		}
		if pcr, ok := stores.Market.PutCallRatio(); ok {
			resp.PutCallRatio = &pcr
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /debug/chain", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := stores.Chain.Snapshot(); !ok {
			writeError(w, http.StatusNotFound, "no option chain yet")
			return
		}
		price, loss := stores.Chain.MaxPain()
		resp := chainResponse{
			UnderlyingPrice: stores.Chain.UnderlyingPrice(),
			ATMStrike:       stores.Chain.ATMStrike(),
			MaxPainPrice:    price,
			MaxPainLoss:     loss,
			TotalCallOI:     stores.Chain.TotalCallOI(),
			TotalPutOI:      stores.Chain.TotalPutOI(),
			WeightedGreeks:  stores.Chain.WeightedGreeks(),
			Rows:            stores.Chain.Rows(),
			LastUpdate:      stores.Chain.LastUpdate(),
		}
		if strike, ok := stores.Chain.SelectedStrike(); ok {
			resp.SelectedStrike = &strike
		}
		if row, ok := stores.Chain.SelectedRow(); ok {
			resp.SelectedRow = &row
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /debug/orderbook/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.PathValue("symbol")
		book, ok := stores.OrderBooks.Get(symbol)
		if !ok {
			writeError(w, http.StatusNotFound, "no order book for "+symbol)
			return
		}
		summary, _ := stores.OrderBooks.Summary(symbol)
		writeJSON(w, http.StatusOK, orderBookResponse{
			Book:       book,
			Summary:    summary,
			LastUpdate: stores.OrderBooks.LastUpdate(symbol),
		})
	})

	mux.HandleFunc("GET /debug/quotes", func(w http.ResponseWriter, r *http.Request) {
		kind := model.InstrumentKind(r.URL.Query().Get("kind"))
		if kind != model.KindFutures && kind != model.KindOptions {
			writeError(w, http.StatusBadRequest, "kind must be futures or options")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"quotes":      stores.Quotes.List(kind),
			"instruments": stores.Instruments.TopByVolume(kind, 20),
		})
	})

	mux.HandleFunc("POST /control/reconnect", func(w http.ResponseWriter, r *http.Request) {
		logger.Info("manual reconnect requested", "remote", r.RemoteAddr)
		a.Reconnect()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /control/view", func(w http.ResponseWriter, r *http.Request) {
		view, err := model.ParseView(r.URL.Query().Get("name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.SetView(view)
		writeJSON(w, http.StatusOK, map[string]any{"view": view})
	})

	mux.HandleFunc("POST /control/strike", func(w http.ResponseWriter, r *http.Request) {
		strike, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
		if err != nil || strike <= 0 {
			writeError(w, http.StatusBadRequest, "value must be a positive strike price")
			return
		}
		a.SelectStrike(strike)
		writeJSON(w, http.StatusOK, map[string]any{"selectedStrike": strike})
	})

	mux.HandleFunc("POST /control/orderbook/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.PathValue("symbol")
		writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "added": a.WatchOrderBook(symbol)})
	})

	mux.HandleFunc("DELETE /control/orderbook/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.PathValue("symbol")
		writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "removed": a.UnwatchOrderBook(symbol)})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
