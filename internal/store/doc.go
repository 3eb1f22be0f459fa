// Package store holds the latest consistent market snapshots.
//
// Stores:
//   - MarketStore: market overview, put/call ratio, sentiment, rankings
//   - ChainStore: option chain, ATM row, OI-weighted Greeks, selected strike
//   - OrderBookStore: per-symbol depth with derived totals and spread
//   - QuoteStore: per-symbol realtime ticks and quotes
//   - InstrumentStore: futures and options lists
//   - SystemStore: backend runtime mode
//
// Snapshot stores replace their content wholesale. Every update carries a
// sequence number from NextSeq; an update older than the newest applied one
// is discarded with ErrStale, so a slow poll response never overwrites a
// fresher push.
package store
