package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	JWT      JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Unseen   UnseenConfig   `mapstructure:"unseen" yaml:"unseen"`
}

// DatabaseConfig selects and locates the message/user store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path" yaml:"path"`     // sqlite file
	DSN    string `mapstructure:"dsn" yaml:"dsn"`       // postgres url
}

// JWTConfig configures access and connect tokens.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret" yaml:"secret"`
	Issuer     string        `mapstructure:"issuer" yaml:"issuer"`
	Audience   string        `mapstructure:"audience" yaml:"audience"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ConnectTTL time.Duration `mapstructure:"connect_ttl" yaml:"connect_ttl"`
}

// SessionConfig tunes live WebSocket sessions.
type SessionConfig struct {
	AuthTimeout  time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	// RateLimit is the number of inbound frames allowed per minute (0 disables).
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
	// TrustClientIdentity accepts a bare user id at connect time instead of a signed connect token.
	TrustClientIdentity bool `mapstructure:"trust_client_identity" yaml:"trust_client_identity"`
}

// UnseenConfig selects where unseen counters live.
type UnseenConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"` // memory or redis
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
}

const (
	// PlaceholderJWTSecret marks a secret that was never configured. Load
	// replaces it when it writes a fresh config file; Validate rejects it.
	PlaceholderJWTSecret = "change-me"
	// MinJWTSecretBytes is the shortest HMAC secret Validate accepts.
	MinJWTSecretBytes = 32

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	UnseenMemory = "memory"
	UnseenRedis  = "redis"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxBodyBytes:      6 << 20,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "chatline.db",
		},
		JWT: JWTConfig{
			Secret:     PlaceholderJWTSecret,
			Issuer:     "chatline",
			Audience:   "client",
			TTL:        24 * time.Hour,
			ConnectTTL: time.Minute,
		},
		Session: SessionConfig{
			AuthTimeout:  10 * time.Second,
			PingInterval: 5 * time.Second,
			PingTimeout:  10 * time.Second,
			SendBuffer:   32,
			RateLimit:    120,
		},
		Unseen: UnseenConfig{
			Backend: UnseenMemory,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Database.DSN != "" {
		c.Database.DSN = other.Database.DSN
	}
	if other.Unseen.Backend != "" {
		c.Unseen.Backend = other.Unseen.Backend
	}
	if other.Unseen.RedisURL != "" {
		c.Unseen.RedisURL = other.Unseen.RedisURL
	}
}
