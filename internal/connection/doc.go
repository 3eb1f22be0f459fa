// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Holds one STOMP 1.2 session over WebSocket to the dashboard backend
//   - Asks the connection gate before every attempt (weekends, holidays, off-hours)
//   - Re-registers every topic subscription after each successful connect
//   - Retries with a fixed delay and stops after a bounded number of
//     consecutive failures, leaving a terminal Error state
//   - Routes incoming messages to the Topic Router
package connection
