// Package session persists the consumer's UI state between runs.
//
// A State holds the active view, the selected strike, the subscribed
// order-book symbols and the last seen data source. It is stored as one
// JSON document per session id in SQLite (default) or PostgreSQL. A row
// that is missing or cannot be decoded is ignored and a fresh session is
// started; persisted state never blocks startup.
package session
