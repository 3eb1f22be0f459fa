package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/kospi-sync/internal/calendar"
)

// Gate decides whether a connection attempt may be made at a given instant.
type Gate interface {
	ShouldConnect(now time.Time) calendar.Decision
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClientFactory replaces the STOMP client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		m.newClient = f
	}
}

// WithClock replaces time.Now for gate checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the connection lifecycle: it consults the gate, connects,
// re-registers every topic after each successful connect, and retries
// failures under a ReconnectPolicy. All transitions happen on a single
// event-loop goroutine.
type Manager struct {
	cfg       ManagerConfig
	gate      Gate
	policy    *ReconnectPolicy
	newClient ClientFactory
	now       func() time.Time
	logger    *slog.Logger

	// Output channels
	out     chan RawMessage
	changes chan StateChange

	// Inputs to the event loop
	cmds   chan command
	events chan clientEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Owned by the run goroutine.
	client           Client
	gen              uint64
	connecting       bool
	cancelAttempt    context.CancelFunc
	retryTimer       *time.Timer
	retryC           <-chan time.Time
	gated            bool
	terminal         bool
	userDisconnected bool
	topics           map[string]struct{}

	// Observable state
	mu    sync.RWMutex
	state State
	stats ManagerStats
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdReconnect
	cmdSubscribe
	cmdUnsubscribe
)

type command struct {
	kind  cmdKind
	topic string
}

type eventKind int

const (
	evConnected eventKind = iota
	evConnectFailed
	evFailed
)

type clientEvent struct {
	gen    uint64
	kind   eventKind
	client Client
	err    error
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, gate Gate, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultManagerConfig()
	if cfg.GateRecheckInterval <= 0 {
		cfg.GateRecheckInterval = defaults.GateRecheckInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}

	m := &Manager{
		cfg:       cfg,
		gate:      gate,
		policy:    NewReconnectPolicy(cfg.ReconnectDelay, cfg.MaxReconnectAttempts),
		newClient: NewClient,
		now:       time.Now,
		logger:    logger,
		out:       make(chan RawMessage, cfg.MessageBufferSize),
		changes:   make(chan StateChange, 16),
		cmds:      make(chan command, 64),
		events:    make(chan clientEvent, 16),
		topics:    make(map[string]struct{}, len(cfg.Topics)),
		state:     StateDisconnected,
	}
	for _, t := range cfg.Topics {
		m.topics[t] = struct{}{}
	}
	m.stats.Topics = len(m.topics)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the event loop and, with AutoConnect, the first attempt.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	if m.cfg.AutoConnect {
		m.Connect()
	}

	m.logger.Info("connection manager started",
		"url", m.cfg.Client.URL,
		"topics", len(m.cfg.Topics),
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"reconnect_delay", m.cfg.ReconnectDelay,
	)

	return nil
}

// Stop cancels pending retries, closes the session and waits for goroutines.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(m.out)
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, leaving message channel open")
		return ctx.Err()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Connect requests a connection. It is a no-op when already connected and
// never reports errors directly; failures surface as state.
func (m *Manager) Connect() {
	m.enqueue(command{kind: cmdConnect})
}

// Disconnect closes the session and cancels any pending retry.
func (m *Manager) Disconnect() {
	m.enqueue(command{kind: cmdDisconnect})
}

// Reconnect resets the retry counter and connects again. It is the only way
// out of the terminal Error state.
func (m *Manager) Reconnect() {
	m.enqueue(command{kind: cmdReconnect})
}

// Subscribe adds a topic. It is registered now if connected and on every
// later connect.
func (m *Manager) Subscribe(topic string) {
	m.enqueue(command{kind: cmdSubscribe, topic: topic})
}

// Unsubscribe removes a topic.
func (m *Manager) Unsubscribe(topic string) {
	m.enqueue(command{kind: cmdUnsubscribe, topic: topic})
}

// Messages returns the channel of messages for the Topic Router.
func (m *Manager) Messages() <-chan RawMessage {
	return m.out
}

// StateChanges returns state transitions. Slow readers lose the oldest entries.
func (m *Manager) StateChanges() <-chan StateChange {
	return m.changes
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether a STOMP session is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.State = m.state
	s.Attempts = m.policy.Attempts()
	return s
}

func (m *Manager) enqueue(cmd command) {
	select {
	case m.cmds <- cmd:
	default:
		m.logger.Warn("command queue full, dropping command", "kind", cmd.kind)
	}
}

// run is the event loop.
func (m *Manager) run() {
	defer m.wg.Done()

	recheck := time.NewTicker(m.cfg.GateRecheckInterval)
	defer recheck.Stop()
	defer m.teardown()

	for {
		select {
		case <-m.ctx.Done():
			return
		case cmd := <-m.cmds:
			m.handleCommand(cmd)
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.retryC:
			m.retryTimer = nil
			m.retryC = nil
			m.attempt("retry")
		case <-recheck.C:
			if m.gated && !m.busy() && !m.userDisconnected && !m.terminal {
				m.attempt("gate recheck")
			}
		}
	}
}

func (m *Manager) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		m.userDisconnected = false
		if m.client != nil || m.connecting {
			m.logger.Debug("connect ignored, already connected or connecting")
			return
		}
		m.stopRetry()
		m.terminal = false
		m.attempt("connect")

	case cmdDisconnect:
		m.userDisconnected = true
		m.resetSession()
		m.setState(StateDisconnected, nil)

	case cmdReconnect:
		m.userDisconnected = false
		m.resetSession()
		m.attempt("manual reconnect")

	case cmdSubscribe:
		if _, ok := m.topics[cmd.topic]; ok {
			return
		}
		m.topics[cmd.topic] = struct{}{}
		m.setTopicCount()
		if m.client != nil {
			if err := m.client.Subscribe(cmd.topic); err != nil {
				m.logger.Warn("subscribe failed", "topic", cmd.topic, "error", err)
			}
		}

	case cmdUnsubscribe:
		if _, ok := m.topics[cmd.topic]; !ok {
			return
		}
		delete(m.topics, cmd.topic)
		m.setTopicCount()
		if m.client != nil {
			if err := m.client.Unsubscribe(cmd.topic); err != nil {
				m.logger.Warn("unsubscribe failed", "topic", cmd.topic, "error", err)
			}
		}
	}
}

func (m *Manager) handleEvent(ev clientEvent) {
	if ev.gen != m.gen {
		// Result of an attempt that was cancelled or superseded.
		if ev.client != nil {
			ev.client.Close()
		}
		return
	}

	switch ev.kind {
	case evConnected:
		m.connecting = false
		m.client = ev.client
		m.policy.Success()
		m.terminal = false

		m.mu.Lock()
		m.stats.Connects++
		m.stats.LastConnectedAt = m.now()
		m.mu.Unlock()
		m.setState(StateConnected, nil)

		m.wg.Add(1)
		go m.pump(ev.gen, ev.client)

		for _, topic := range m.sortedTopics() {
			if err := ev.client.Subscribe(topic); err != nil {
				m.logger.Warn("subscribe after connect failed", "topic", topic, "error", err)
				m.closeClient()
				m.onFailure(err)
				return
			}
		}
		m.logger.Info("connected", "topics", len(m.topics))

	case evConnectFailed:
		m.connecting = false
		ev.client.Close()
		m.onFailure(ev.err)

	case evFailed:
		m.closeClient()
		m.onFailure(ev.err)
	}
}

// attempt runs the gate and, if allowed, starts a connection attempt.
func (m *Manager) attempt(reason string) {
	if m.busy() {
		return
	}

	d := m.gate.ShouldConnect(m.now())
	if !d.Allow {
		m.gated = true
		if d.IsHolidayVeto() {
			m.setState(StateHoliday, nil)
		} else {
			m.setState(StateDisconnected, nil)
		}
		m.logger.Info("connection gated", "reason", reason, "session", d.Session)
		return
	}
	m.gated = false

	m.gen++
	gen := m.gen
	attemptCtx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
	m.cancelAttempt = cancel
	m.connecting = true

	client := m.newClient(m.cfg.Client, m.logger.With("gen", gen))
	m.setState(StateConnecting, nil)
	m.logger.Info("connecting",
		"reason", reason,
		"session", d.Session,
		"attempt", m.policy.Attempts(),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		ev := clientEvent{gen: gen, kind: evConnected, client: client}
		if err := client.Connect(attemptCtx); err != nil {
			ev.kind = evConnectFailed
			ev.err = err
		}
		m.post(ev)
	}()
}

// onFailure classifies a failure and schedules a retry if the policy allows.
func (m *Manager) onFailure(err error) {
	m.mu.Lock()
	m.stats.Failures++
	m.mu.Unlock()

	state := StateError
	if errors.Is(err, ErrClosed) {
		state = StateDisconnected
	}
	m.setState(state, err)

	retry, wait := m.policy.Failure()
	if !retry {
		m.terminal = true
		m.setState(StateError, fmt.Errorf("%w after %d attempts: %v",
			ErrAttemptsExhausted, m.policy.MaxAttempts(), err))
		m.logger.Error("giving up on reconnect", "attempts", m.policy.MaxAttempts(), "error", err)
		return
	}

	m.logger.Warn("connection failed, scheduling reconnect",
		"error", err,
		"attempt", m.policy.Attempts(),
		"max_attempts", m.policy.MaxAttempts(),
		"delay", wait,
	)
	m.retryTimer = time.NewTimer(wait)
	m.retryC = m.retryTimer.C
}

// pump forwards one client's messages and reports its terminal error.
func (m *Manager) pump(gen uint64, c Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case msg, ok := <-c.Messages():
			if !ok {
				return
			}
			m.forward(msg)
		case err := <-c.Errors():
			m.post(clientEvent{gen: gen, kind: evFailed, client: c, err: err})
			return
		case <-c.Done():
			select {
			case err := <-c.Errors():
				m.post(clientEvent{gen: gen, kind: evFailed, client: c, err: err})
			default:
			}
			return
		}
	}
}

func (m *Manager) forward(msg RawMessage) {
	select {
	case m.out <- msg:
		m.mu.Lock()
		m.stats.MessagesForwarded++
		m.mu.Unlock()
	default:
		m.mu.Lock()
		m.stats.MessagesDropped++
		m.mu.Unlock()
		m.logger.Warn("router buffer full, dropping message", "topic", msg.Topic)
	}
}

func (m *Manager) post(ev clientEvent) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
		if ev.kind == evConnected {
			ev.client.Close()
		}
	}
}

// busy reports whether a session exists, an attempt is in flight or a retry is pending.
func (m *Manager) busy() bool {
	return m.client != nil || m.connecting || m.retryC != nil
}

// resetSession drops the session, any attempt and any pending retry, and
// zeroes the retry counter.
func (m *Manager) resetSession() {
	m.stopRetry()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	// Invalidate in-flight results.
	m.gen++
	m.connecting = false
	m.closeClient()
	m.policy.Reset()
	m.terminal = false
	m.gated = false
}

func (m *Manager) closeClient() {
	if m.client == nil {
		return
	}
	if err := m.client.Close(); err != nil {
		m.logger.Debug("close client", "error", err)
	}
	m.client = nil
}

func (m *Manager) stopRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = nil
	m.retryC = nil
}

func (m *Manager) teardown() {
	m.resetSession()
	m.setState(StateDisconnected, nil)
}

func (m *Manager) sortedTopics() []string {
	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (m *Manager) setTopicCount() {
	m.mu.Lock()
	m.stats.Topics = len(m.topics)
	m.mu.Unlock()
}

// setState records a transition and notifies listeners.
func (m *Manager) setState(s State, cause error) {
	m.mu.Lock()
	from := m.state
	m.state = s
	if cause != nil {
		m.stats.LastError = cause.Error()
	} else if s == StateConnected {
		m.stats.LastError = ""
	}
	m.mu.Unlock()

	if from == s && cause == nil {
		return
	}

	change := StateChange{From: from, To: s, Err: cause, At: m.now()}
	select {
	case m.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-m.changes:
			m.changes <- change
		default:
		}
	}
}
