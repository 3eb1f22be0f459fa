package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID           = "syncer"
	DefaultRestURL              = "http://localhost:8080"
	DefaultWSURL                = "ws://localhost:8080/ws/websocket"
	DefaultAPITimeout           = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultRateLimit            = 20.0
	DefaultRateBurst            = 10
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultConnectTimeout       = 15 * time.Second
	DefaultHeartBeat            = 4 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultGateRecheckInterval  = time.Minute
	DefaultBufferSize           = 10000
	DefaultTimezone             = "Asia/Seoul"
	DefaultDayOpen              = "09:00"
	DefaultDelayedOpen          = "10:00"
	DefaultDayClose             = "15:45"
	DefaultNightOpen            = "18:00"
	DefaultNightClose           = "05:00"
	DefaultTickBufferSize       = 1000
	DefaultTickBufferMax        = 100000
	DefaultEmptyOverview        = "drop"
	DefaultSentiment            = "discrete"
	DefaultOrderBookDepth       = 10
	DefaultPollInterval         = 2 * time.Second
	DefaultStateInterval        = time.Minute
	DefaultPollConcurrency      = 4
	DefaultSessionBackend       = "sqlite"
	DefaultSQLitePath           = "syncer.db"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogMaxSizeMB         = 100
	DefaultLogMaxAgeDays        = 7
	DefaultServerPort           = 8081
)

func (c *SyncerConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Backend defaults
	if c.Backend.RestURL == "" {
		c.Backend.RestURL = DefaultRestURL
	}
	if c.Backend.WSURL == "" {
		c.Backend.WSURL = DefaultWSURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultAPITimeout
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = DefaultMaxRetries
	}
	if c.Backend.RateLimit == 0 {
		c.Backend.RateLimit = DefaultRateLimit
	}
	if c.Backend.RateBurst == 0 {
		c.Backend.RateBurst = DefaultRateBurst
	}

	// Connection defaults
	if c.Connection.ReconnectDelay == 0 {
		c.Connection.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.HeartBeat == 0 {
		c.Connection.HeartBeat = DefaultHeartBeat
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.GateRecheckInterval == 0 {
		c.Connection.GateRecheckInterval = DefaultGateRecheckInterval
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Gate defaults
	if c.Gate.Timezone == "" {
		c.Gate.Timezone = DefaultTimezone
	}
	if c.Gate.DayOpen == "" {
		c.Gate.DayOpen = DefaultDayOpen
	}
	if c.Gate.DelayedOpen == "" {
		c.Gate.DelayedOpen = DefaultDelayedOpen
	}
	if c.Gate.DayClose == "" {
		c.Gate.DayClose = DefaultDayClose
	}
	if c.Gate.NightOpen == "" {
		c.Gate.NightOpen = DefaultNightOpen
	}
	if c.Gate.NightClose == "" {
		c.Gate.NightClose = DefaultNightClose
	}

	// Router defaults
	if c.Router.TickBufferSize == 0 {
		c.Router.TickBufferSize = DefaultTickBufferSize
	}
	if c.Router.TickBufferMax == 0 {
		c.Router.TickBufferMax = DefaultTickBufferMax
	}
	if c.Router.EmptyOverview == "" {
		c.Router.EmptyOverview = DefaultEmptyOverview
	}

	// Store defaults
	if c.Store.Sentiment == "" {
		c.Store.Sentiment = DefaultSentiment
	}
	if c.Store.OrderBookDepth == 0 {
		c.Store.OrderBookDepth = DefaultOrderBookDepth
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.StateInterval == 0 {
		c.Poller.StateInterval = DefaultStateInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}

	// Session defaults
	if c.Session.Backend == "" {
		c.Session.Backend = DefaultSessionBackend
	}
	if c.Session.SQLitePath == "" {
		c.Session.SQLitePath = DefaultSQLitePath
	}
	if c.Session.Backend == "postgres" {
		applyDBDefaults(&c.Session.Postgres)
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
