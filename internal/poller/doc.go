// Package poller implements the REST polling fallback.
//
// The Poller:
//   - Refreshes the overview every tick (default 2s), plus the option chain,
//     futures or options lists depending on the active view
//   - Refreshes the backend system state on a slower interval
//   - Runs the requests of one tick concurrently with a limit
//   - Tags each request with the target store's sequence number before it
//     is issued, so a response overtaken by a newer push is discarded
package poller
