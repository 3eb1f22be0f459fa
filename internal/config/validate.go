package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
	_ "time/tzdata" // gate.timezone must resolve on hosts without zoneinfo
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateURL("backend.rest_url", c.Backend.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("backend.ws_url", c.Backend.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Backend.MaxRetries < 0 {
		return errors.New("backend.max_retries must be >= 0")
	}
	if c.Backend.RateLimit < 0 {
		return errors.New("backend.rate_limit must be >= 0")
	}

	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.ReconnectDelay < 0 {
		return errors.New("connection.reconnect_delay must be >= 0")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if _, err := time.LoadLocation(c.Gate.Timezone); err != nil {
		return fmt.Errorf("gate.timezone %q: %w", c.Gate.Timezone, err)
	}
	for name, v := range map[string]string{
		"gate.day_open":     c.Gate.DayOpen,
		"gate.delayed_open": c.Gate.DelayedOpen,
		"gate.day_close":    c.Gate.DayClose,
		"gate.night_open":   c.Gate.NightOpen,
		"gate.night_close":  c.Gate.NightClose,
	} {
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", name, v)
		}
	}

	if c.Router.TickBufferSize < 1 {
		return errors.New("router.tick_buffer_size must be >= 1")
	}
	if c.Router.TickBufferMax < 0 {
		return errors.New("router.tick_buffer_max must be >= 0")
	}
	switch c.Router.EmptyOverview {
	case "drop", "accept":
	default:
		return fmt.Errorf("router.empty_overview must be drop or accept, got %q", c.Router.EmptyOverview)
	}
	for _, symbol := range c.Router.OrderBookSymbols {
		if symbol == "" {
			return errors.New("router.orderbook_symbols must not contain empty symbols")
		}
	}

	switch c.Store.Sentiment {
	case "discrete", "continuous":
	default:
		return fmt.Errorf("store.sentiment must be discrete or continuous, got %q", c.Store.Sentiment)
	}
	if c.Store.OrderBookDepth < 1 {
		return errors.New("store.orderbook_depth must be >= 1")
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	if c.Poller.Interval < 100*time.Millisecond {
		return fmt.Errorf("poller.interval must be >= 100ms, got %v", c.Poller.Interval)
	}

	switch c.Session.Backend {
	case "none":
	case "sqlite":
		if c.Session.SQLitePath == "" {
			return errors.New("session.sqlite_path is required")
		}
	case "postgres":
		if err := c.Session.Postgres.validate("session.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("session.backend must be sqlite, postgres or none, got %q", c.Session.Backend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func validateURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v, got %q", name, schemes, u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
