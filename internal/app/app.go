package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rickgao/kospi-sync/internal/api"
	"github.com/rickgao/kospi-sync/internal/calendar"
	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/poller"
	"github.com/rickgao/kospi-sync/internal/router"
	"github.com/rickgao/kospi-sync/internal/session"
	"github.com/rickgao/kospi-sync/internal/store"
)

const (
	sessionSyncInterval = 5 * time.Second
	saveTimeout         = 5 * time.Second
	retryBackoff        = 500 * time.Millisecond
)

// Option configures an App.
type Option func(*options)

type options struct {
	managerOpts  []connection.ManagerOption
	sessionStore session.Store
	hasStore     bool
	now          func() time.Time
}

// WithClientFactory replaces the STOMP client constructor.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, connection.WithClientFactory(f))
	}
}

// WithClock replaces time.Now for gate checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
		o.managerOpts = append(o.managerOpts, connection.WithClock(now))
	}
}

// WithSessionStore uses s instead of opening the configured backend.
// A nil store keeps session state in memory.
func WithSessionStore(s session.Store) Option {
	return func(o *options) {
		o.sessionStore = s
		o.hasStore = true
	}
}

// App owns every component of the sync client.
type App struct {
	cfg    *config.SyncerConfig
	logger *slog.Logger
	now    func() time.Time

	gate    *calendar.Gate
	stores  *store.Stores
	client  *api.Client
	conn    *connection.Manager
	router  *router.Router
	poller  *poller.Poller
	session *session.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the component graph and restores the session. Nothing
// connects until Start.
func New(ctx context.Context, cfg *config.SyncerConfig, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	gate, err := newGate(cfg.Gate, logger.With("component", "gate"))
	if err != nil {
		return nil, err
	}

	sessStore := o.sessionStore
	if !o.hasStore {
		sessStore, err = session.Open(ctx, cfg.Session, logger)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
	}
	sess := session.NewManager(sessStore, logger.With("component", "session"))
	sess.Restore(ctx, cfg.Session.ID)

	a := &App{
		cfg:     cfg,
		logger:  logger,
		now:     o.now,
		gate:    gate,
		session: sess,
	}

	a.stores = newStores(cfg, logger)
	if strike, ok := sess.SelectedStrike(); ok {
		a.stores.Chain.SelectStrike(strike)
	}

	a.client = api.NewClient(cfg.Backend.RestURL,
		api.WithTimeout(cfg.Backend.Timeout),
		api.WithRetries(cfg.Backend.MaxRetries, retryBackoff),
		api.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
		api.WithLogger(logger.With("component", "api")),
	)

	symbols := mergeSymbols(cfg.Router.OrderBookSymbols, sess.OrderBookSymbols())

	a.conn = connection.NewManager(
		managerConfig(cfg, router.Topics(symbols)),
		systemGate{gate: gate, system: a.stores.System},
		logger.With("component", "connection"),
		o.managerOpts...,
	)

	a.router = router.NewRouter(
		router.RouterConfig{
			TickBufferSize:   cfg.Router.TickBufferSize,
			TickBufferMax:    cfg.Router.TickBufferMax,
			EmptyOverview:    router.EmptyOverviewPolicy(cfg.Router.EmptyOverview),
			OrderBookSymbols: symbols,
		},
		a.conn.Messages(),
		router.Targets{
			Overview:  a.stores.Market,
			Chain:     a.stores.Chain,
			OrderBook: a.stores.OrderBooks,
		},
		logger.With("component", "router"),
	)

	a.poller = poller.New(
		poller.Config{
			Interval:      cfg.Poller.Interval,
			StateInterval: cfg.Poller.StateInterval,
			Concurrency:   cfg.Poller.Concurrency,
			Timeout:       cfg.Backend.Timeout,
		},
		a.client,
		a.stores,
		sess,
		logger.With("component", "poller"),
	)

	return a, nil
}

func newStores(cfg *config.SyncerConfig, logger *slog.Logger) *store.Stores {
	return store.New(store.Config{
		Sentiment:           store.SentimentPolicy(cfg.Store.Sentiment),
		RejectEmptyOverview: cfg.Router.EmptyOverview != string(router.EmptyOverviewAccept),
		OrderBookDepth:      cfg.Store.OrderBookDepth,
	}, logger.With("component", "quotes"))
}

func managerConfig(cfg *config.SyncerConfig, topics []string) connection.ManagerConfig {
	return connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:              cfg.Backend.WSURL,
			Host:             cfg.Backend.StompHost,
			HeartBeat:        cfg.Connection.HeartBeat,
			HandshakeTimeout: cfg.Connection.ConnectTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			BufferSize:       cfg.Connection.BufferSize,
		},
		Topics:               topics,
		ReconnectDelay:       cfg.Connection.ReconnectDelay,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		ConnectTimeout:       cfg.Connection.ConnectTimeout,
		GateRecheckInterval:  cfg.Connection.GateRecheckInterval,
		MessageBufferSize:    cfg.Connection.BufferSize,
		AutoConnect:          !cfg.Connection.ManualConnect,
	}
}

func mergeSymbols(a, b []string) []string {
	out := append(slices.Clone(a), b...)
	out = slices.DeleteFunc(out, func(s string) bool { return s == "" })
	slices.Sort(out)
	return slices.Compact(out)
}

// Start starts consumers before producers: quotes, router, connection,
// then the poller.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.stores.Quotes.Start(a.ctx, a.router.TickBuffer()); err != nil {
		return fmt.Errorf("start quote store: %w", err)
	}
	if err := a.router.Start(a.ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if err := a.conn.Start(a.ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	if a.cfg.Poller.Disabled {
		// The gate still needs the backend state once.
		a.spawn(func() {
			if err := a.poller.RefreshState(a.ctx); err != nil {
				a.logger.Warn("initial state refresh failed", "error", err)
			}
		})
	} else if err := a.poller.Start(a.ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	a.spawn(a.run)

	a.logger.Info("sync client started",
		"instance_id", a.cfg.Instance.ID,
		"session", a.session.ID(),
		"view", a.session.CurrentView(),
		"gate", a.GateDecision().Session,
	)
	return nil
}

// Stop stops producers before consumers and saves the session.
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("stopping sync client")

	var errs []error
	if !a.cfg.Poller.Disabled {
		errs = append(errs, a.poller.Stop(ctx))
	}
	errs = append(errs, a.conn.Stop(ctx))
	errs = append(errs, a.router.Stop(ctx))
	errs = append(errs, a.stores.Quotes.Stop(ctx))

	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	a.syncDataSource()
	if err := a.session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}

	a.logger.Info("sync client stopped")
	return errors.Join(errs...)
}

func (a *App) spawn(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// run logs connection transitions and keeps the session in sync.
func (a *App) run() {
	ticker := time.NewTicker(sessionSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case change := <-a.conn.StateChanges():
			a.logStateChange(change)
		case <-ticker.C:
			a.syncDataSource()
			a.persist()
		}
	}
}

func (a *App) logStateChange(change connection.StateChange) {
	if change.Err != nil {
		a.logger.Warn("connection state changed",
			"from", change.From,
			"to", change.To,
			"error", change.Err,
		)
		return
	}
	a.logger.Info("connection state changed", "from", change.From, "to", change.To)
}

func (a *App) syncDataSource() {
	if st, ok := a.stores.System.Snapshot(); ok {
		a.session.SetDataSource(st.DataSource)
	}
}

// persist saves the session if it changed.
func (a *App) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.session.Save(ctx); err != nil {
		a.logger.Warn("failed to save session", "error", err)
	}
}

// Stores returns the state stores.
func (a *App) Stores() *store.Stores {
	return a.stores
}

// Session returns the session manager.
func (a *App) Session() *session.Manager {
	return a.session
}

// GateDecision returns the current gate decision.
func (a *App) GateDecision() calendar.Decision {
	return systemGate{gate: a.gate, system: a.stores.System}.ShouldConnect(a.now())
}

// Reconnect resets the retry counter and connects again.
func (a *App) Reconnect() {
	a.conn.Reconnect()
}

// SetView changes the active view, which decides what the poller fetches.
func (a *App) SetView(v model.View) {
	a.session.SetView(v)
	a.persist()
}

// SelectStrike sets the strike the user is inspecting.
func (a *App) SelectStrike(strike float64) {
	a.stores.Chain.SelectStrike(strike)
	a.session.SetStrike(strike)
	a.persist()
}

// WatchOrderBook subscribes to the depth topic for symbol. It reports
// whether the symbol was newly added.
func (a *App) WatchOrderBook(symbol string) bool {
	if !a.session.AddSymbol(symbol) {
		return false
	}
	a.conn.Subscribe(router.OrderBookTopic(symbol))
	a.persist()
	return true
}

// UnwatchOrderBook unsubscribes from the depth topic for symbol and drops
// its book.
func (a *App) UnwatchOrderBook(symbol string) bool {
	removed := a.session.RemoveSymbol(symbol)
	configured := slices.Contains(a.cfg.Router.OrderBookSymbols, symbol)
	if !removed && !configured {
		return false
	}
	a.conn.Unsubscribe(router.OrderBookTopic(symbol))
	a.stores.OrderBooks.Remove(symbol)
	a.persist()
	return true
}
