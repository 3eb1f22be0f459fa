// Package model defines shared data types used across the sync client.
//
// All types mirror the JSON payloads published by the dashboard backend on
// its REST endpoints and STOMP topics.
//
// Conventions:
//   - Snapshot numerics (ratios, strikes, Greeks): float64
//   - Tick, quote and order book prices: decimal.Decimal (the feed sends them as strings)
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Symbols: KRX short codes (e.g., "101W09", "201W09355")
package model
