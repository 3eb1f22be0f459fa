// Package app wires the sync client together.
//
// Data flows one way:
//
//	connection.Manager --RawMessage--> router.Router --> store.Stores
//	                                        |
//	                                        +--TickEvent--> store.QuoteStore
//	poller.Poller --REST--> store.Stores
//
// The connection gate combines the exchange calendar with the backend's
// reported system state. Session state (active view, selected strike,
// order-book symbols) is restored on start and saved on change.
package app
