package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/store"
)

// Router decodes raw STOMP messages and routes them to the state stores.
// Snapshots are applied in arrival order by a single goroutine; ticks and
// quotes are queued on the tick buffer for the quote consumer.
type Router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	targets Targets

	// Input from Connection Manager
	input <-chan connection.RawMessage

	// Output to the quote consumer
	tickBuf *GrowableBuffer[model.TickEvent]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	validationDrops int64
	staleDrops      int64
	unknownTopics   int64
}

// NewRouter creates a new Topic Router.
func NewRouter(cfg RouterConfig, input <-chan connection.RawMessage, targets Targets, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EmptyOverview == "" {
		cfg.EmptyOverview = EmptyOverviewDrop
	}

	return &Router{
		cfg:     cfg,
		logger:  logger,
		targets: targets,
		input:   input,
		tickBuf: NewBoundedBuffer[model.TickEvent](cfg.TickBufferSize, cfg.TickBufferMax),
	}
}

// Start begins routing messages.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("topic router started",
		"tick_buffer", r.cfg.TickBufferSize,
		"tick_buffer_max", r.cfg.TickBufferMax,
		"empty_overview", r.cfg.EmptyOverview,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping topic router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("topic router stopped")
	case <-ctx.Done():
		r.logger.Warn("topic router stop timed out")
	}

	r.tickBuf.Close()

	return nil
}

// TickBuffer returns the buffer of realtime ticks and quotes.
func (r *Router) TickBuffer() *GrowableBuffer[model.TickEvent] {
	return r.tickBuf
}

// Topics returns the topics that must be registered on every connect.
func (r *Router) Topics() []string {
	if r.targets.OrderBook == nil {
		return Topics(nil)
	}
	return Topics(r.cfg.OrderBookSymbols)
}

// Topics returns the static feed topics plus one depth topic per symbol,
// sorted and without duplicates.
func Topics(orderBookSymbols []string) []string {
	topics := []string{
		TopicMarketOverview,
		TopicOptionChain,
		TopicFuturesRealtime,
		TopicFuturesQuote,
		TopicOptionsRealtime,
		TopicOptionsQuote,
	}
	for _, symbol := range orderBookSymbols {
		if symbol != "" {
			topics = append(topics, OrderBookTopic(symbol))
		}
	}
	sort.Strings(topics)
	return slices.Compact(topics)
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		ValidationDrops:  r.validationDrops,
		StaleDrops:       r.staleDrops,
		UnknownTopics:    r.unknownTopics,
		TickBuffer:       r.tickBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *Router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.Route(raw)
		}
	}
}

// Route decodes and dispatches one message. Failures are logged and counted
// here; the returned error is informational.
func (r *Router) Route(raw connection.RawMessage) error {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	err := r.dispatch(raw)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case err == nil:
		r.routed++
	case errors.Is(err, ErrDecode):
		r.parseErrors++
		r.logger.Warn("failed to decode message", "topic", raw.Topic, "error", err)
	case errors.Is(err, ErrValidation), errors.Is(err, store.ErrEmptySnapshot):
		r.validationDrops++
		r.logger.Debug("dropping invalid message", "topic", raw.Topic, "error", err)
	case errors.Is(err, store.ErrStale):
		r.staleDrops++
		r.logger.Debug("dropping stale snapshot", "topic", raw.Topic)
	case errors.Is(err, ErrUnknownTopic):
		r.unknownTopics++
		r.logger.Debug("skipping unknown topic", "topic", raw.Topic)
	default:
		r.logger.Warn("failed to apply message", "topic", raw.Topic, "error", err)
	}

	return err
}

func (r *Router) dispatch(raw connection.RawMessage) error {
	switch raw.Topic {
	case TopicMarketOverview:
		return r.routeOverview(raw.Data)
	case TopicOptionChain:
		return r.routeChain(raw.Data)
	case TopicFuturesRealtime:
		return r.routeTick(raw.Data, model.KindFutures)
	case TopicOptionsRealtime:
		return r.routeTick(raw.Data, model.KindOptions)
	case TopicFuturesQuote:
		return r.routeQuote(raw.Data, model.KindFutures)
	case TopicOptionsQuote:
		return r.routeQuote(raw.Data, model.KindOptions)
	}

	if symbol, ok := orderBookSymbol(raw.Topic); ok {
		return r.routeOrderBook(raw.Data, symbol)
	}
	return fmt.Errorf("%w: %s", ErrUnknownTopic, raw.Topic)
}

func (r *Router) routeOverview(data []byte) error {
	if r.targets.Overview == nil {
		return fmt.Errorf("%w: no overview store", ErrUnknownTopic)
	}

	var ov model.MarketOverview
	if err := decodePayload(data, TypeMarketOverview, &ov); err != nil {
		return err
	}
	if err := validateOverview(&ov, r.cfg.EmptyOverview); err != nil {
		return err
	}

	target := r.targets.Overview
	return target.Update(target.NextSeq(), ov)
}

func (r *Router) routeChain(data []byte) error {
	if r.targets.Chain == nil {
		return fmt.Errorf("%w: no chain store", ErrUnknownTopic)
	}

	var chain model.OptionChain
	if err := decodePayload(data, TypeOptionChain, &chain); err != nil {
		return err
	}
	if err := chain.Validate(); err != nil {
		return err
	}

	target := r.targets.Chain
	return target.Update(target.NextSeq(), chain)
}

func (r *Router) routeOrderBook(data []byte, symbol string) error {
	if r.targets.OrderBook == nil {
		return fmt.Errorf("%w: no order book store", ErrUnknownTopic)
	}

	var ob model.OrderBook
	if err := decodePayload(data, "", &ob); err != nil {
		return err
	}
	if ob.Symbol == "" {
		ob.Symbol = symbol
	}
	if ob.Symbol != symbol {
		return fmt.Errorf("%w: order book for %s on topic %s", ErrValidation, ob.Symbol, symbol)
	}

	return r.targets.OrderBook.Update(ob)
}

func (r *Router) routeTick(data []byte, kind model.InstrumentKind) error {
	var tick model.Tick
	if err := decodePayload(data, TypePriceUpdate, &tick); err != nil {
		return err
	}
	if tick.Symbol == "" {
		return fmt.Errorf("%w: tick without symbol", ErrValidation)
	}
	return r.enqueue(model.TickEvent{Kind: kind, Tick: &tick})
}

func (r *Router) routeQuote(data []byte, kind model.InstrumentKind) error {
	var quote model.Quote
	if err := decodePayload(data, TypePriceUpdate, &quote); err != nil {
		return err
	}
	if quote.Symbol == "" {
		return fmt.Errorf("%w: quote without symbol", ErrValidation)
	}
	return r.enqueue(model.TickEvent{Kind: kind, Quote: &quote})
}

func (r *Router) enqueue(ev model.TickEvent) error {
	if !r.tickBuf.Send(ev) {
		return errors.New("tick buffer closed")
	}
	return nil
}

// decodePayload unmarshals either a {type, timestamp, data} envelope or a
// bare payload into v. When the envelope carries a type it must equal want.
func decodePayload(data []byte, want string, v any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	body := data
	if inner := bytes.TrimSpace(env.Data); len(inner) > 0 && inner[0] == '{' {
		if want != "" && env.Type != "" && env.Type != want {
			return fmt.Errorf("%w: envelope type %q, want %q", ErrValidation, env.Type, want)
		}
		body = inner
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func validateOverview(ov *model.MarketOverview, policy EmptyOverviewPolicy) error {
	if err := ov.Validate(); err != nil {
		return err
	}
	if policy == EmptyOverviewDrop && ov.IsEmpty() {
		return fmt.Errorf("%w: overview has no volume", ErrValidation)
	}
	return nil
}
