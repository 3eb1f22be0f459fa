package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/kospi-sync/internal/calendar"
	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/router"
	"github.com/rickgao/kospi-sync/internal/session"
)

// stubClient is a connection.Client that connects immediately and lets the
// test inject frames.
type stubClient struct {
	mu        sync.Mutex
	subs      []string
	connected bool

	messages chan connection.RawMessage
	errors   chan error
	done     chan struct{}
	once     sync.Once
}

func newStubClient() *stubClient {
	return &stubClient{
		messages: make(chan connection.RawMessage, 16),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *stubClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *stubClient) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *stubClient) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, topic)
	return nil
}

func (c *stubClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(s string) bool { return s == topic })
	return nil
}

func (c *stubClient) Messages() <-chan connection.RawMessage { return c.messages }
func (c *stubClient) Errors() <-chan error                  { return c.errors }
func (c *stubClient) Done() <-chan struct{}                 { return c.done }

func (c *stubClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *stubClient) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.subs)
}

func (c *stubClient) push(topic string, v any) {
	data, _ := json.Marshal(v)
	c.messages <- connection.RawMessage{Topic: topic, Data: data, ReceivedAt: time.Now()}
}

// stubFactory records every client it creates.
type stubFactory struct {
	mu      sync.Mutex
	clients []*stubClient
}

func (f *stubFactory) New(cfg connection.ClientConfig, logger *slog.Logger) connection.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := newStubClient()
	f.clients = append(f.clients, c)
	return c
}

func (f *stubFactory) last() *stubClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

func (f *stubFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]any{
		"/api/market/overview":     model.MarketOverview{TotalFuturesVolume: 40, TotalOptionsVolume: 60},
		"/api/market/option-chain": model.OptionChain{ATMStrike: 350, StrikeChain: []model.StrikeRow{{StrikePrice: 350}}},
		"/api/market/state":        model.SystemState{DataSource: "DEMO", MarketHoursEnabled: true, IsTradingDay: true},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(restURL string) *config.SyncerConfig {
	cfg := config.Default()
	cfg.Backend.RestURL = restURL
	cfg.Backend.MaxRetries = 0
	cfg.Connection.ReconnectDelay = 10 * time.Millisecond
	cfg.Poller.Interval = time.Hour
	cfg.Poller.StateInterval = time.Hour
	cfg.Router.OrderBookSymbols = []string{"101W09"}
	return cfg
}

// tuesday is a regular KRX trading day during the day session.
func tuesday() time.Time {
	return time.Date(2026, 3, 10, 10, 30, 0, 0, calendar.SeoulLocation())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestApp_PushFlow(t *testing.T) {
	server := newBackend(t)
	cfg := testConfig(server.URL)
	cfg.Poller.Disabled = true

	factory := &stubFactory{}
	a, err := New(context.Background(), cfg, nil,
		WithClientFactory(factory.New),
		WithClock(tuesday),
		WithSessionStore(nil),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stopApp(t, a)

	waitFor(t, "connected", func() bool { return a.Health().Status == StatusHealthy })

	client := factory.last()
	subs := client.subscriptions()
	if !slices.Contains(subs, router.TopicMarketOverview) || !slices.Contains(subs, router.OrderBookTopic("101W09")) {
		t.Errorf("subscriptions = %v, want static and order book topics", subs)
	}

	client.push(router.TopicMarketOverview, map[string]any{
		"type": router.TypeMarketOverview,
		"data": model.MarketOverview{TotalFuturesVolume: 100, TotalOptionsVolume: 250},
	})
	waitFor(t, "overview", func() bool { return a.Stores().Market.TotalVolume().Total == 350 })

	client.push(router.TopicFuturesRealtime, map[string]any{"symbol": "101W09", "currentPrice": "352.15", "timestamp": 1})
	waitFor(t, "tick", func() bool {
		_, ok := a.Stores().Quotes.Get("101W09")
		return ok
	})

	client.push(router.OrderBookTopic("101W09"), map[string]any{"symbol": "101W09"})
	waitFor(t, "order book", func() bool {
		_, ok := a.Stores().OrderBooks.Get("101W09")
		return ok
	})

	// Disabled poller still fetches state once for the gate.
	waitFor(t, "system state", func() bool {
		_, ok := a.Stores().System.Snapshot()
		return ok
	})
	if h := a.Health(); h.Poller != nil {
		t.Errorf("Health().Poller = %+v, want nil when disabled", h.Poller)
	}
}

func TestApp_PollerHydrates(t *testing.T) {
	server := newBackend(t)
	cfg := testConfig(server.URL)
	cfg.Connection.ManualConnect = true

	a, err := New(context.Background(), cfg, nil,
		WithClientFactory((&stubFactory{}).New),
		WithClock(tuesday),
		WithSessionStore(nil),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stopApp(t, a)

	waitFor(t, "hydration", func() bool {
		return a.Stores().Market.TotalVolume().Total == 100 && a.Stores().Chain.ATMStrike() == 350
	})

	h := a.Health()
	if h.Connection.State != connection.StateDisconnected {
		t.Errorf("State = %v, want disconnected with manual connect", h.Connection.State)
	}
	if h.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", h.Status)
	}
	if h.Freshness["overview"].IsZero() {
		t.Error("overview freshness not recorded")
	}
}

func TestApp_WeekendIdle(t *testing.T) {
	server := newBackend(t)
	cfg := testConfig(server.URL)
	cfg.Poller.Disabled = true

	saturday := func() time.Time { return time.Date(2026, 3, 14, 11, 0, 0, 0, calendar.SeoulLocation()) }
	factory := &stubFactory{}
	a, err := New(context.Background(), cfg, nil,
		WithClientFactory(factory.New),
		WithClock(saturday),
		WithSessionStore(nil),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stopApp(t, a)

	waitFor(t, "holiday state", func() bool { return a.Health().Connection.State == connection.StateHoliday })

	h := a.Health()
	if h.Status != StatusIdle {
		t.Errorf("Status = %q, want idle", h.Status)
	}
	if h.Gate.Session != calendar.Weekend {
		t.Errorf("Gate.Session = %q, want weekend", h.Gate.Session)
	}
	if factory.count() != 0 {
		t.Errorf("created %d clients on a weekend, want 0", factory.count())
	}
}

func TestApp_SessionPersisted(t *testing.T) {
	server := newBackend(t)
	cfg := testConfig(server.URL)
	cfg.Poller.Disabled = true
	cfg.Session.ID = "desk-1"
	cfg.Session.SQLitePath = filepath.Join(t.TempDir(), "session.db")

	factory := &stubFactory{}
	a, err := New(context.Background(), cfg, nil, WithClientFactory(factory.New), WithClock(tuesday))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "connected", func() bool { return a.Health().Status == StatusHealthy })

	a.SetView(model.ViewOptionChain)
	a.SelectStrike(357.5)
	if !a.WatchOrderBook("201W09357") {
		t.Error("WatchOrderBook = false, want true")
	}
	if a.WatchOrderBook("201W09357") {
		t.Error("second WatchOrderBook = true, want false")
	}
	waitFor(t, "runtime subscription", func() bool {
		return slices.Contains(factory.last().subscriptions(), router.OrderBookTopic("201W09357"))
	})
	stopApp(t, a)

	// A second run restores the view, strike and symbols.
	store, err := session.NewSQLiteStore(context.Background(), cfg.Session.SQLitePath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	b, err := New(context.Background(), cfg, nil,
		WithClientFactory((&stubFactory{}).New),
		WithClock(tuesday),
		WithSessionStore(store),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Session().Close(context.Background())

	if b.Session().CurrentView() != model.ViewOptionChain {
		t.Errorf("view = %q, want option-chain", b.Session().CurrentView())
	}
	if strike, ok := b.Stores().Chain.SelectedStrike(); !ok || strike != 357.5 {
		t.Errorf("SelectedStrike = %v/%v, want 357.5", strike, ok)
	}
	if !slices.Contains(b.router.Topics(), router.OrderBookTopic("201W09357")) {
		t.Errorf("Topics() = %v, want restored order book topic", b.router.Topics())
	}
}

func TestApp_UnwatchOrderBook(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Connection.ManualConnect = true

	a, err := New(context.Background(), cfg, nil, WithSessionStore(nil), WithClock(tuesday))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.Stores().OrderBooks.Update(model.OrderBook{Symbol: "101W09"})

	if !a.UnwatchOrderBook("101W09") {
		t.Error("UnwatchOrderBook(configured) = false, want true")
	}
	if _, ok := a.Stores().OrderBooks.Get("101W09"); ok {
		t.Error("order book kept after unwatch")
	}
	if a.UnwatchOrderBook("unknown") {
		t.Error("UnwatchOrderBook(unknown) = true, want false")
	}
}

func TestNewGate(t *testing.T) {
	g, err := newGate(config.GateConfig{Timezone: "Asia/Seoul", DayClose: "15:30"}, slog.Default())
	if err != nil {
		t.Fatalf("newGate failed: %v", err)
	}

	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, calendar.SeoulLocation()) }
	if d := g.ShouldConnect(at(15, 30)); !d.Allow {
		t.Errorf("15:30 = %+v, want allowed", d)
	}
	if d := g.ShouldConnect(at(15, 31)); d.Allow {
		t.Errorf("15:31 = %+v, want closed with custom close", d)
	}

	if _, err := newGate(config.GateConfig{DayOpen: "9am"}, slog.Default()); err == nil {
		t.Error("expected error for bad clock")
	}
	if _, err := newGate(config.GateConfig{CalendarFile: "/nonexistent/krx.yaml"}, slog.Default()); err == nil {
		t.Error("expected error for missing calendar file")
	}
}

func TestMergeSymbols(t *testing.T) {
	got := mergeSymbols([]string{"B", "A"}, []string{"A", "", "C"})
	want := []string{"A", "B", "C"}
	if !slices.Equal(got, want) {
		t.Errorf("mergeSymbols = %v, want %v", got, want)
	}
}
