package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/kospi-sync/internal/api"
	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/router"
	"github.com/rickgao/kospi-sync/internal/store"
)

// backend is a fake dashboard REST API that records hits per path.
type backend struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]any
	before func(path string)
}

func newBackend(routes map[string]any) (*backend, *httptest.Server) {
	b := &backend{hits: make(map[string]int), routes: routes}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		body, ok := b.routes[r.URL.Path]
		before := b.before
		b.mu.Unlock()

		if before != nil {
			before(r.URL.Path)
		}
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	return b, server
}

func (b *backend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func defaultRoutes() map[string]any {
	return map[string]any{
		"/api/market/overview": model.MarketOverview{TotalFuturesVolume: 100, TotalOptionsVolume: 200},
		"/api/market/option-chain": model.OptionChain{
			ATMStrike:   350,
			StrikeChain: []model.StrikeRow{{StrikePrice: 350, CallOpenInterest: 10}},
		},
		"/api/market/futures": []map[string]any{{"symbol": "101W09", "volume": 10}},
		"/api/market/options": []map[string]any{{"symbol": "201W09350", "volume": 5}},
		"/api/market/state":   model.SystemState{DataSource: "KIS", IsTradingDay: true},
	}
}

func testConfig() Config {
	return Config{
		Interval:      time.Hour, // Long interval, we'll trigger manually.
		StateInterval: time.Hour,
		Concurrency:   4,
		Timeout:       5 * time.Second,
	}
}

func TestPoller_TickPerView(t *testing.T) {
	tests := []struct {
		view      model.View
		wantPaths []string
		skipPaths []string
	}{
		{model.ViewOverview, []string{"/api/market/overview", "/api/market/option-chain"}, []string{"/api/market/futures", "/api/market/options"}},
		{model.ViewOptionChain, []string{"/api/market/overview", "/api/market/option-chain"}, []string{"/api/market/futures"}},
		{model.ViewFutures, []string{"/api/market/overview", "/api/market/futures"}, []string{"/api/market/option-chain", "/api/market/options"}},
		{model.ViewOptions, []string{"/api/market/overview", "/api/market/options"}, []string{"/api/market/option-chain", "/api/market/futures"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			b, server := newBackend(defaultRoutes())
			defer server.Close()

			stores := store.New(store.DefaultConfig(), nil)
			view := tt.view
			p := New(testConfig(), api.NewClient(server.URL), stores, ViewFunc(func() model.View { return view }), nil)

			if err := p.Tick(context.Background()); err != nil {
				t.Fatalf("Tick failed: %v", err)
			}

			for _, path := range tt.wantPaths {
				if b.count(path) != 1 {
					t.Errorf("%s hit %d times, want 1", path, b.count(path))
				}
			}
			for _, path := range tt.skipPaths {
				if b.count(path) != 0 {
					t.Errorf("%s hit %d times, want 0", path, b.count(path))
				}
			}
			if b.count("/api/market/state") != 0 {
				t.Error("Tick should not fetch system state")
			}
		})
	}
}

func TestPoller_TickAppliesToStores(t *testing.T) {
	_, server := newBackend(defaultRoutes())
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if v := stores.Market.TotalVolume(); v.Total != 300 {
		t.Errorf("Total volume = %d, want 300", v.Total)
	}
	if stores.Chain.ATMStrike() != 350 {
		t.Errorf("ATMStrike = %v, want 350", stores.Chain.ATMStrike())
	}
	if got := p.Stats().Fetched; got != 2 {
		t.Errorf("Fetched = %d, want 2", got)
	}
}

func TestPoller_SlowResponseDiscarded(t *testing.T) {
	b, server := newBackend(defaultRoutes())
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)

	// A push arrives while the overview request is in flight.
	b.before = func(path string) {
		if path == "/api/market/overview" {
			stores.Market.Update(stores.Market.NextSeq(), model.MarketOverview{TotalFuturesVolume: 999})
		}
	}

	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if v := stores.Market.TotalVolume(); v.Futures != 999 {
		t.Errorf("Futures volume = %d, want pushed 999", v.Futures)
	}
	if got := p.Stats().Stale; got != 1 {
		t.Errorf("Stale = %d, want 1", got)
	}
}

func TestPoller_EmptyOverviewSkipped(t *testing.T) {
	routes := defaultRoutes()
	routes["/api/market/overview"] = model.MarketOverview{}
	_, server := newBackend(routes)
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	stores.Market.Update(stores.Market.NextSeq(), model.MarketOverview{TotalOptionsVolume: 5})

	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if v := stores.Market.TotalVolume(); v.Options != 5 {
		t.Errorf("Options volume = %d, want previous 5", v.Options)
	}
	if got := p.Stats().Skipped; got != 1 {
		t.Errorf("Skipped = %d, want 1", got)
	}
}

func TestPoller_InvalidResponseRejected(t *testing.T) {
	routes := defaultRoutes()
	routes["/api/market/overview"] = model.MarketOverview{
		TotalFuturesVolume: 100,
		PutCallRatio:       &model.PutCallRatio{VolumeRatio: -3},
	}
	routes["/api/market/option-chain"] = model.OptionChain{
		StrikeChain: []model.StrikeRow{{StrikePrice: 0, CallOpenInterest: -5}},
	}
	_, server := newBackend(routes)
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if _, ok := stores.Market.Snapshot(); ok {
		t.Error("overview with negative ratio should not be stored")
	}
	if _, ok := stores.Chain.Snapshot(); ok {
		t.Error("chain with zero strike should not be stored")
	}
	if got := p.Stats().Invalid; got != 2 {
		t.Errorf("Invalid = %d, want 2", got)
	}
}

// The push and poll paths must agree on which snapshots are rejected.
func TestPoller_RejectsSameAsRouter(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		topic    string
		payload  any
		rejected bool
	}{
		{"negative volume ratio", "/api/market/overview", router.TopicMarketOverview,
			model.MarketOverview{TotalOptionsVolume: 10, PutCallRatio: &model.PutCallRatio{VolumeRatio: -1}}, true},
		{"negative oi ratio", "/api/market/overview", router.TopicMarketOverview,
			model.MarketOverview{TotalOptionsVolume: 10, PutCallRatio: &model.PutCallRatio{OpenInterestRatio: -0.5}}, true},
		{"negative volume", "/api/market/overview", router.TopicMarketOverview,
			model.MarketOverview{TotalFuturesVolume: -1, TotalOptionsVolume: 10}, true},
		{"valid overview", "/api/market/overview", router.TopicMarketOverview,
			model.MarketOverview{TotalOptionsVolume: 10, PutCallRatio: &model.PutCallRatio{VolumeRatio: 1.2}}, false},
		{"zero strike", "/api/market/option-chain", router.TopicOptionChain,
			model.OptionChain{StrikeChain: []model.StrikeRow{{StrikePrice: 0}}}, true},
		{"negative put oi", "/api/market/option-chain", router.TopicOptionChain,
			model.OptionChain{StrikeChain: []model.StrikeRow{{StrikePrice: 350, PutOpenInterest: -1}}}, true},
		{"valid chain", "/api/market/option-chain", router.TopicOptionChain,
			model.OptionChain{StrikeChain: []model.StrikeRow{{StrikePrice: 350, PutOpenInterest: 1}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Push path.
			pushStores := store.New(store.DefaultConfig(), nil)
			r := router.NewRouter(router.DefaultRouterConfig(), nil, router.Targets{
				Overview: pushStores.Market,
				Chain:    pushStores.Chain,
			}, nil)
			data, err := json.Marshal(tt.payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			r.Route(connection.RawMessage{Topic: tt.topic, Data: data})
			pushRejected := r.Stats().ValidationDrops == 1

			// Poll path.
			routes := defaultRoutes()
			routes[tt.path] = tt.payload
			_, server := newBackend(routes)
			defer server.Close()

			pollStores := store.New(store.DefaultConfig(), nil)
			p := New(testConfig(), api.NewClient(server.URL), pollStores, nil, nil)
			if err := p.Tick(context.Background()); err != nil {
				t.Fatalf("Tick failed: %v", err)
			}
			pollRejected := p.Stats().Invalid == 1

			if pushRejected != tt.rejected {
				t.Errorf("push rejected = %v, want %v", pushRejected, tt.rejected)
			}
			if pollRejected != tt.rejected {
				t.Errorf("poll rejected = %v, want %v", pollRejected, tt.rejected)
			}
		})
	}
}

func TestPoller_FetchError(t *testing.T) {
	routes := defaultRoutes()
	delete(routes, "/api/market/option-chain")
	_, server := newBackend(routes)
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	client := api.NewClient(server.URL, api.WithRetries(0, 0))
	p := New(testConfig(), client, stores, nil, nil)

	if err := p.Tick(context.Background()); err == nil {
		t.Error("expected error from failing chain request")
	}

	// The overview still lands.
	if v := stores.Market.TotalVolume(); v.Total != 300 {
		t.Errorf("Total volume = %d, want 300", v.Total)
	}
	stats := p.Stats()
	if stats.Errors != 1 || stats.Fetched != 1 {
		t.Errorf("Stats = %+v, want 1 error, 1 fetched", stats)
	}
}

func TestPoller_RefreshState(t *testing.T) {
	_, server := newBackend(defaultRoutes())
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)

	if err := p.RefreshState(context.Background()); err != nil {
		t.Fatalf("RefreshState failed: %v", err)
	}

	st, ok := stores.System.Snapshot()
	if !ok || st.DataSource != "KIS" || !st.IsTradingDay {
		t.Errorf("system state = %+v/%v", st, ok)
	}
}

func TestPoller_StartStop(t *testing.T) {
	b, server := newBackend(defaultRoutes())
	defer server.Close()

	stores := store.New(store.DefaultConfig(), nil)
	p := New(testConfig(), api.NewClient(server.URL), stores, nil, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Hydration happens immediately on start.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := stores.System.Snapshot(); ok && p.Stats().Fetched >= 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if b.count("/api/market/overview") == 0 {
		t.Error("overview was never polled")
	}
	if b.count("/api/market/state") == 0 {
		t.Error("state was never polled")
	}
}

func TestPoller_StopCancelsInFlight(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	stores := store.New(store.DefaultConfig(), nil)
	p := New(testConfig(), api.NewClient(server.URL, api.WithRetries(0, 0)), stores, nil, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop = %v, want in-flight requests cancelled", err)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	routes := defaultRoutes()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)

		// Track max concurrent requests.
		for {
			old := maxInFlight.Load()
			if current <= old || maxInFlight.CompareAndSwap(old, current) {
				break
			}
		}

		// Simulate some work.
		time.Sleep(50 * time.Millisecond)

		json.NewEncoder(w).Encode(routes[r.URL.Path])
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Concurrency = 1

	stores := store.New(store.DefaultConfig(), nil)
	p := New(cfg, api.NewClient(server.URL), stores, nil, nil)

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("maxInFlight = %d, want <= 1", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, nil, store.New(store.DefaultConfig(), nil), nil, nil)

	if p.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want %+v", p.cfg, DefaultConfig())
	}
}
