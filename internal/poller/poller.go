package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/store"
)

// Fetcher is the subset of the REST client the poller uses.
type Fetcher interface {
	GetOverview(ctx context.Context) (*model.MarketOverview, error)
	GetOptionChain(ctx context.Context) (*model.OptionChain, error)
	GetInstruments(ctx context.Context, kind model.InstrumentKind) ([]model.Instrument, error)
	GetSystemState(ctx context.Context) (*model.SystemState, error)
}

// ViewSource reports the view currently shown to the user.
type ViewSource interface {
	CurrentView() model.View
}

// ViewFunc is a function adapter for ViewSource.
type ViewFunc func() model.View

func (f ViewFunc) CurrentView() model.View {
	return f()
}

// Config holds poller configuration.
type Config struct {
	Interval      time.Duration // Poll interval (default: 2s)
	StateInterval time.Duration // System state interval (default: 1m)
	Concurrency   int           // Max concurrent requests per tick (default: 4)
	Timeout       time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      2 * time.Second,
		StateInterval: time.Minute,
		Concurrency:   4,
		Timeout:       10 * time.Second,
	}
}

// Stats contains poller statistics.
type Stats struct {
	Ticks   int64
	Fetched int64
	Errors  int64
	Stale   int64
	Skipped int64 // Rejected as empty
	Invalid int64 // Failed payload validation
}

// Poller periodically refreshes the stores over REST.
type Poller struct {
	cfg    Config
	client Fetcher
	stores *store.Stores
	views  ViewSource
	logger *slog.Logger

	ticks   atomic.Int64
	fetched atomic.Int64
	errs    atomic.Int64
	stale   atomic.Int64
	skipped atomic.Int64
	invalid atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. views may be nil, which polls the overview view.
func New(cfg Config, client Fetcher, stores *store.Stores, views ViewSource, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StateInterval <= 0 {
		cfg.StateInterval = def.StateInterval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:    cfg,
		client: client,
		stores: stores,
		views:  views,
		logger: logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"state_interval", p.cfg.StateInterval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop cancels in-flight requests and the timers.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:   p.ticks.Load(),
		Fetched: p.fetched.Load(),
		Errors:  p.errs.Load(),
		Stale:   p.stale.Load(),
		Skipped: p.skipped.Load(),
		Invalid: p.invalid.Load(),
	}
}

// run is the main polling loop. A slow tick does not delay the next one.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	stateTicker := time.NewTicker(p.cfg.StateInterval)
	defer stateTicker.Stop()

	// Hydrate immediately on start.
	p.spawn(p.RefreshState)
	p.spawn(p.Tick)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.spawn(p.Tick)
		case <-stateTicker.C:
			p.spawn(p.RefreshState)
		}
	}
}

func (p *Poller) spawn(fn func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := fn(p.ctx); err != nil && p.ctx.Err() == nil {
			p.logger.Debug("poll failed", "error", err)
		}
	}()
}

// Tick fetches the data relevant to the current view and applies it to the
// stores. It returns the first fetch error.
func (p *Poller) Tick(ctx context.Context) error {
	start := time.Now()
	p.ticks.Add(1)

	view := model.ViewOverview
	if p.views != nil {
		view = p.views.CurrentView()
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	g.Go(func() error { return p.pollOverview(ctx) })

	switch view {
	case model.ViewOverview, model.ViewOptionChain:
		g.Go(func() error { return p.pollChain(ctx) })
	case model.ViewFutures:
		g.Go(func() error { return p.pollInstruments(ctx, model.KindFutures) })
	case model.ViewOptions:
		g.Go(func() error { return p.pollInstruments(ctx, model.KindOptions) })
	}

	err := g.Wait()

	p.logger.Debug("poll cycle complete",
		"view", view,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

// RefreshState fetches the backend system state.
func (p *Poller) RefreshState(ctx context.Context) error {
	target := p.stores.System
	seq := target.NextSeq()

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	st, err := p.client.GetSystemState(reqCtx)
	if err != nil {
		return p.failed("state", err)
	}
	return p.applied("state", target.Update(seq, *st))
}

func (p *Poller) pollOverview(ctx context.Context) error {
	target := p.stores.Market
	seq := target.NextSeq()

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	ov, err := p.client.GetOverview(reqCtx)
	if err != nil {
		return p.failed("overview", err)
	}
	if err := ov.Validate(); err != nil {
		return p.applied("overview", err)
	}
	return p.applied("overview", target.Update(seq, *ov))
}

func (p *Poller) pollChain(ctx context.Context) error {
	target := p.stores.Chain
	seq := target.NextSeq()

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	chain, err := p.client.GetOptionChain(reqCtx)
	if err != nil {
		return p.failed("option-chain", err)
	}
	if err := chain.Validate(); err != nil {
		return p.applied("option-chain", err)
	}
	return p.applied("option-chain", target.Update(seq, *chain))
}

func (p *Poller) pollInstruments(ctx context.Context, kind model.InstrumentKind) error {
	target := p.stores.Instruments
	seq := target.NextSeq(kind)

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	items, err := p.client.GetInstruments(reqCtx, kind)
	if err != nil {
		return p.failed(string(kind), err)
	}
	return p.applied(string(kind), target.Update(kind, seq, items))
}

func (p *Poller) failed(resource string, err error) error {
	p.errs.Add(1)
	if !errors.Is(err, context.Canceled) {
		p.logger.Warn("failed to poll", "resource", resource, "error", err)
	}
	return err
}

// applied classifies the result of a store update. Stale, empty and
// invalid responses are dropped and not returned as errors.
func (p *Poller) applied(resource string, err error) error {
	switch {
	case err == nil:
		p.fetched.Add(1)
		return nil
	case errors.Is(err, store.ErrStale):
		p.stale.Add(1)
		p.logger.Debug("discarding stale response", "resource", resource)
		return nil
	case errors.Is(err, store.ErrEmptySnapshot):
		p.skipped.Add(1)
		p.logger.Debug("discarding empty response", "resource", resource)
		return nil
	case errors.Is(err, model.ErrInvalid):
		p.invalid.Add(1)
		p.logger.Warn("discarding invalid response", "resource", resource, "error", err)
		return nil
	}
	p.errs.Add(1)
	return err
}
