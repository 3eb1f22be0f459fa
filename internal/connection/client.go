package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
)

// Client represents a single STOMP session over WebSocket to the dashboard backend.
type Client interface {
	// Connect dials the WebSocket and completes the STOMP handshake.
	Connect(ctx context.Context) error

	// Close disconnects gracefully and releases the connection.
	Close() error

	// Subscribe registers a topic. Messages arrive on Messages().
	Subscribe(topic string) error

	// Unsubscribe removes a topic registration.
	Unsubscribe(topic string) error

	// Messages returns a channel of messages from all subscriptions.
	Messages() <-chan RawMessage

	// Errors returns the terminal error of the session. At most one error
	// is delivered, before Done is closed.
	Errors() <-chan error

	// Done is closed when the session ends for any reason.
	Done() <-chan struct{}

	// IsConnected returns current connection state.
	IsConnected() bool
}

// ClientFactory creates clients. The manager creates a fresh client per attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	ws     *websocket.Conn
	stream *wsStream
	conn   *stomp.Conn

	// Output channels
	messages chan RawMessage
	errors   chan error
	done     chan struct{}

	// State
	mu        sync.Mutex
	subs      map[string]*stomp.Subscription
	connected bool
	closed    bool
	doneOnce  sync.Once
}

// NewClient creates a new STOMP client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan RawMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
		subs:     make(map[string]*stomp.Subscription),
	}
}

// Connect establishes the WebSocket connection and the STOMP session.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	stream := newWSStream(ws, c.cfg.WriteTimeout, c.onReadError)

	type result struct {
		conn *stomp.Conn
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(stream,
			stomp.ConnOpt.Host(c.host()),
			stomp.ConnOpt.HeartBeat(c.cfg.HeartBeat, c.cfg.HeartBeat),
		)
		resultCh <- result{conn: conn, err: err}
	}()

	var conn *stomp.Conn
	select {
	case r := <-resultCh:
		if r.err != nil {
			ws.Close()
			return fmt.Errorf("stomp handshake: %w", r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		ws.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("stomp handshake: %w", ErrTimeout)
		}
		return ctx.Err()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.MustDisconnect()
		return ErrAlreadyClosed
	}
	c.ws = ws
	c.stream = stream
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	// The peer may have gone away between the handshake and now.
	if err := stream.Err(); err != nil {
		c.onReadError(err)
	}

	c.logger.Debug("stomp session established", "url", c.cfg.URL, "heartbeat", c.cfg.HeartBeat)

	return nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.connected
	c.closed = true
	c.connected = false
	conn := c.conn
	ws := c.ws
	c.mu.Unlock()

	if wasConnected && conn != nil {
		// DISCONNECT waits for a receipt; a dead peer must not hold us.
		disconnected := make(chan error, 1)
		go func() { disconnected <- conn.Disconnect() }()

		select {
		case err := <-disconnected:
			if err != nil {
				c.logger.Debug("stomp disconnect failed", "error", err)
			}
		case <-time.After(c.cfg.WriteTimeout):
			c.logger.Debug("stomp disconnect timed out")
		}
	}

	c.doneOnce.Do(func() { close(c.done) })

	// A clean DISCONNECT already closed the socket.
	if ws != nil {
		if err := ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return nil
}

// Subscribe registers a topic and starts forwarding its messages.
func (c *client) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if _, ok := c.subs[topic]; ok {
		return nil
	}

	sub, err := c.conn.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.subs[topic] = sub

	go c.forward(topic, sub)

	c.logger.Debug("subscribed", "topic", topic)
	return nil
}

// Unsubscribe removes a topic registration.
func (c *client) Unsubscribe(topic string) error {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	delete(c.subs, topic)
	connected := c.connected
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if !connected {
		return ErrNotConnected
	}

	// UNSUBSCRIBE waits for a receipt from the broker.
	result := make(chan error, 1)
	go func() { result <- sub.Unsubscribe() }()

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("unsubscribe %s: %w", topic, err)
		}
		return nil
	case <-time.After(c.cfg.WriteTimeout):
		return fmt.Errorf("unsubscribe %s: %w", topic, ErrTimeout)
	}
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan RawMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// Done returns a channel closed when the session ends.
func (c *client) Done() <-chan struct{} {
	return c.done
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// forward copies one subscription's messages to the shared messages channel.
func (c *client) forward(topic string, sub *stomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrProtocol, msg.Err))
			return
		}

		raw := RawMessage{
			Topic:      topic,
			Data:       msg.Body,
			ReceivedAt: time.Now(),
		}

		select {
		case c.messages <- raw:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message", "topic", topic)
		}
	}
}

// onReadError is called by the stream on the first failed read.
func (c *client) onReadError(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
		return
	}
	c.fail(fmt.Errorf("transport: %w", err))
}

// fail ends the session with err. Only the first failure is reported and
// failures after Close are ignored.
func (c *client) fail(err error) {
	c.mu.Lock()
	if c.closed || !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	c.logger.Debug("stomp session failed", "error", err)

	select {
	case c.errors <- err:
	default:
	}
	c.doneOnce.Do(func() { close(c.done) })

	if ws != nil {
		ws.Close()
	}
}

// host returns the STOMP host header value.
func (c *client) host() string {
	if c.cfg.Host != "" {
		return c.cfg.Host
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
