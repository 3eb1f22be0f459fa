// Package api provides the REST client for the dashboard backend.
//
// Endpoints (all GET, under /api/market):
//   - /overview, /put-call-ratio, /option-chain
//   - /futures, /options
//   - /state, /is-trading-day
//
// Requests are rate limited and retried with exponential backoff and
// jitter on 5xx and 429 responses.
package api
