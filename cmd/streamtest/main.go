// streamtest connects to the dashboard STOMP endpoint and prints routed
// messages to the console. It ignores the trading calendar.
// Usage: go run ./cmd/streamtest --config configs/syncer.example.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/kospi-sync/internal/calendar"
	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/connection"
	"github.com/rickgao/kospi-sync/internal/model"
	"github.com/rickgao/kospi-sync/internal/router"
	"github.com/rickgao/kospi-sync/internal/store"
)

// alwaysOpen lets the manager connect at any time.
type alwaysOpen struct{}

func (alwaysOpen) ShouldConnect(time.Time) calendar.Decision {
	return calendar.Decision{Allow: true, Bypassed: true}
}

func main() {
	configPath := flag.String("config", "", "path to config file (empty uses defaults)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	stores := store.New(store.DefaultConfig(), logger)

	connCfg := connection.DefaultManagerConfig()
	connCfg.Client.URL = cfg.Backend.WSURL
	connCfg.Client.Host = cfg.Backend.StompHost
	connCfg.Topics = router.Topics(cfg.Router.OrderBookSymbols)
	connMgr := connection.NewManager(connCfg, alwaysOpen{}, logger)

	rtr := router.NewRouter(router.RouterConfig{
		TickBufferSize:   1000,
		EmptyOverview:    router.EmptyOverviewAccept,
		OrderBookSymbols: cfg.Router.OrderBookSymbols,
	}, connMgr.Messages(), router.Targets{
		Overview:  stores.Market,
		Chain:     stores.Chain,
		OrderBook: stores.OrderBooks,
	}, logger)

	// Start Router before the connection so no frame is dropped
	logger.Info("starting router")
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	logger.Info("starting connection manager", "url", connCfg.Client.URL, "topics", len(connCfg.Topics))
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	go printTicks(ctx, rtr.TickBuffer(), *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-connMgr.StateChanges():
				logger.Info("connection state", "from", change.From, "to", change.To, "error", change.Err)
			case <-ticker.C:
				routerStats := rtr.Stats()
				connStats := connMgr.Stats()
				vol := stores.Market.TotalVolume()
				logger.Info("stats",
					"state", connStats.State,
					"attempts", connStats.Attempts,
					"router_received", routerStats.MessagesReceived,
					"router_routed", routerStats.MessagesRouted,
					"parse_errors", routerStats.ParseErrors,
					"validation_drops", routerStats.ValidationDrops,
					"tick_buf", routerStats.TickBuffer.Count,
					"total_volume", vol.Total,
					"atm_strike", stores.Chain.ATMStrike(),
					"sentiment", stores.Market.Sentiment().Label,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	connMgr.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printTicks(ctx context.Context, buf *router.GrowableBuffer[model.TickEvent], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			ev, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(ev, "", "  ")
				fmt.Printf("[%s] %s\n", ev.Kind, data)
				continue
			}
			switch {
			case ev.Tick != nil:
				fmt.Printf("[%s TICK] symbol=%s price=%s change=%s vol=%s oi=%s\n",
					ev.Kind, ev.Tick.Symbol, ev.Tick.CurrentPrice, ev.Tick.Change, ev.Tick.Volume, ev.Tick.OpenInterest)
			case ev.Quote != nil:
				fmt.Printf("[%s QUOTE] symbol=%s bid=%s/%s ask=%s/%s\n",
					ev.Kind, ev.Quote.Symbol, ev.Quote.BidPrice1, ev.Quote.BidVolume1, ev.Quote.AskPrice1, ev.Quote.AskVolume1)
			}
		}
	}
}
