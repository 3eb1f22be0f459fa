package config

import "time"

// SyncerConfig is the root configuration for a sync client instance.
type SyncerConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Backend    BackendConfig    `yaml:"backend"`
	Connection ConnectionConfig `yaml:"connection"`
	Gate       GateConfig       `yaml:"gate"`
	Router     RouterConfig     `yaml:"router"`
	Store      StoreConfig      `yaml:"store"`
	Poller     PollerConfig     `yaml:"poller"`
	Session    SessionConfig    `yaml:"session"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// BackendConfig holds dashboard backend endpoints.
type BackendConfig struct {
	RestURL    string        `yaml:"rest_url"`   // Backend origin, e.g. http://localhost:8080
	WSURL      string        `yaml:"ws_url"`     // STOMP over WebSocket endpoint
	StompHost  string        `yaml:"stomp_host"` // STOMP host header (default: ws_url host)
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // Requests per second (0 = unlimited)
	RateBurst  int           `yaml:"rate_burst"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	HeartBeat            time.Duration `yaml:"heartbeat"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	GateRecheckInterval  time.Duration `yaml:"gate_recheck_interval"`
	BufferSize           int           `yaml:"buffer_size"`
	ManualConnect        bool          `yaml:"manual_connect"` // Wait for /control/reconnect
}

// GateConfig holds trading session settings.
type GateConfig struct {
	CalendarFile string `yaml:"calendar_file"` // Empty uses the embedded KRX calendar
	Timezone     string `yaml:"timezone"`
	DayOpen      string `yaml:"day_open"` // HH:MM
	DelayedOpen  string `yaml:"delayed_open"`
	DayClose     string `yaml:"day_close"`
	NightOpen    string `yaml:"night_open"`
	NightClose   string `yaml:"night_close"`
}

// RouterConfig holds topic router settings.
type RouterConfig struct {
	TickBufferSize   int      `yaml:"tick_buffer_size"`
	TickBufferMax    int      `yaml:"tick_buffer_max"`
	EmptyOverview    string   `yaml:"empty_overview"` // drop or accept
	OrderBookSymbols []string `yaml:"orderbook_symbols"`
}

// StoreConfig holds state store settings.
type StoreConfig struct {
	Sentiment      string `yaml:"sentiment"` // discrete or continuous
	OrderBookDepth int    `yaml:"orderbook_depth"`
}

// PollerConfig holds REST polling settings.
type PollerConfig struct {
	Disabled      bool          `yaml:"disabled"`
	Interval      time.Duration `yaml:"interval"`
	StateInterval time.Duration `yaml:"state_interval"`
	Concurrency   int           `yaml:"concurrency"`
}

// SessionConfig holds persisted session state settings.
type SessionConfig struct {
	Backend    string   `yaml:"backend"` // sqlite, postgres or none
	ID         string   `yaml:"id"`      // Empty generates one and reuses the latest
	SQLitePath string   `yaml:"sqlite_path"`
	Postgres   DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Empty logs to stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig holds the local health and debug server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}
