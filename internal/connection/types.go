package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrTimeout           = errors.New("operation timeout")
	ErrClosed            = errors.New("connection closed by peer")
	ErrProtocol          = errors.New("stomp error frame")
	ErrAttemptsExhausted = errors.New("reconnect attempts exhausted")
)

// State is the connection lifecycle state. Exactly one is active at a time.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
	StateHoliday
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateHoliday:
		return "holiday"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateDisconnected; st <= StateHoliday; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}

// StateChange is emitted on every state transition.
type StateChange struct {
	From State
	To   State
	Err  error // cause, for Error and Disconnected after a failure
	At   time.Time
}

// RawMessage is a message from the Connection Manager to the Topic Router.
type RawMessage struct {
	Topic      string    // STOMP destination
	Data       []byte    // Frame body
	ReceivedAt time.Time // Local timestamp when the frame was delivered
}

// ClientConfig configures a STOMP-over-WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://localhost:8080/ws/websocket)
	Host             string        // STOMP host header (empty = URL host)
	HeartBeat        time.Duration // STOMP heart-beat in both directions
	HandshakeTimeout time.Duration // WebSocket handshake timeout
	WriteTimeout     time.Duration // Write deadline for frames
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              "ws://localhost:8080/ws/websocket",
		HeartBeat:        4 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client               ClientConfig
	Topics               []string      // Topics registered on every connect
	ReconnectDelay       time.Duration // Fixed delay between reconnect attempts
	MaxReconnectAttempts int           // Consecutive failures before giving up
	ConnectTimeout       time.Duration // Upper bound for dial + STOMP handshake
	GateRecheckInterval  time.Duration // How often a gated manager re-asks the gate
	MessageBufferSize    int           // Buffer size for output message channel
	AutoConnect          bool          // Attempt a connection on Start
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:               DefaultClientConfig(),
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		ConnectTimeout:       15 * time.Second,
		GateRecheckInterval:  time.Minute,
		MessageBufferSize:    10000,
		AutoConnect:          true,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State             State
	Attempts          int // consecutive failed attempts since the last success
	Connects          int64
	Failures          int64
	MessagesForwarded int64
	MessagesDropped   int64
	Topics            int
	LastError         string
	LastConnectedAt   time.Time
}
