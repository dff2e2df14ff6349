package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/chatline-server/internal/media"
)

const (
	envPrefix            = "CHATLINE"
	envConfigDefaultPath = "CHATLINE_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < .env / env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	// .env only fills variables that are not already set in the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, withGeneratedSecret(cfg)); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	switch c.Unseen.Backend {
	case UnseenMemory:
	case UnseenRedis:
		if c.Unseen.RedisURL == "" {
			return errors.New("config: unseen.redis_url is required for redis backend")
		}
	default:
		return fmt.Errorf("config: unknown unseen.backend %q", c.Unseen.Backend)
	}

	switch {
	case c.JWT.Secret == "":
		return errors.New("config: jwt.secret is required")
	case c.JWT.Secret == PlaceholderJWTSecret:
		return errors.New("config: jwt.secret is still the placeholder, set a random secret")
	case len(c.JWT.Secret) < MinJWTSecretBytes:
		return fmt.Errorf("config: jwt.secret must be at least %d bytes", MinJWTSecretBytes)
	}

	if c.MaxBodyBytes < media.MaxDataURLBytes {
		return fmt.Errorf("config: max_body_bytes must be at least %d to fit a full-size image", media.MaxDataURLBytes)
	}
	return nil
}

// withGeneratedSecret swaps the placeholder jwt secret for a random one so a
// freshly written config file is usable as is.
func withGeneratedSecret(cfg Config) Config {
	if cfg.JWT.Secret != PlaceholderJWTSecret {
		return cfg
	}
	buf := make([]byte, MinJWTSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return cfg
	}
	cfg.JWT.Secret = hex.EncodeToString(buf)
	return cfg
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("max_body_bytes", cfg.MaxBodyBytes)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.dsn", cfg.Database.DSN)

	v.SetDefault("jwt.secret", cfg.JWT.Secret)
	v.SetDefault("jwt.issuer", cfg.JWT.Issuer)
	v.SetDefault("jwt.audience", cfg.JWT.Audience)
	v.SetDefault("jwt.ttl", cfg.JWT.TTL)
	v.SetDefault("jwt.connect_ttl", cfg.JWT.ConnectTTL)

	v.SetDefault("session.auth_timeout", cfg.Session.AuthTimeout)
	v.SetDefault("session.ping_interval", cfg.Session.PingInterval)
	v.SetDefault("session.ping_timeout", cfg.Session.PingTimeout)
	v.SetDefault("session.send_buffer", cfg.Session.SendBuffer)
	v.SetDefault("session.rate_limit", cfg.Session.RateLimit)
	v.SetDefault("session.trust_client_identity", cfg.Session.TrustClientIdentity)

	v.SetDefault("unseen.backend", cfg.Unseen.Backend)
	v.SetDefault("unseen.redis_url", cfg.Unseen.RedisURL)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// durations are written as strings so the generated file stays editable.
type fileConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout string   `yaml:"read_header_timeout"`
	ShutdownTimeout   string   `yaml:"shutdown_timeout"`
	LogLevel          string   `yaml:"log_level"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	AllowedOrigins    []string `yaml:"allowed_origins"`

	Database DatabaseConfig `yaml:"database"`
	JWT      struct {
		Secret     string `yaml:"secret"`
		Issuer     string `yaml:"issuer"`
		Audience   string `yaml:"audience"`
		TTL        string `yaml:"ttl"`
		ConnectTTL string `yaml:"connect_ttl"`
	} `yaml:"jwt"`
	Session struct {
		AuthTimeout         string `yaml:"auth_timeout"`
		PingInterval        string `yaml:"ping_interval"`
		PingTimeout         string `yaml:"ping_timeout"`
		SendBuffer          int    `yaml:"send_buffer"`
		RateLimit           int    `yaml:"rate_limit"`
		TrustClientIdentity bool   `yaml:"trust_client_identity"`
	} `yaml:"session"`
	Unseen UnseenConfig `yaml:"unseen"`
}

func toFileConfig(cfg Config) fileConfig {
	var fc fileConfig
	fc.Addr = cfg.Addr
	fc.ReadHeaderTimeout = cfg.ReadHeaderTimeout.String()
	fc.ShutdownTimeout = cfg.ShutdownTimeout.String()
	fc.LogLevel = cfg.LogLevel
	fc.MaxBodyBytes = cfg.MaxBodyBytes
	fc.AllowedOrigins = cfg.AllowedOrigins
	fc.Database = cfg.Database
	fc.JWT.Secret = cfg.JWT.Secret
	fc.JWT.Issuer = cfg.JWT.Issuer
	fc.JWT.Audience = cfg.JWT.Audience
	fc.JWT.TTL = cfg.JWT.TTL.String()
	fc.JWT.ConnectTTL = cfg.JWT.ConnectTTL.String()
	fc.Session.AuthTimeout = cfg.Session.AuthTimeout.String()
	fc.Session.PingInterval = cfg.Session.PingInterval.String()
	fc.Session.PingTimeout = cfg.Session.PingTimeout.String()
	fc.Session.SendBuffer = cfg.Session.SendBuffer
	fc.Session.RateLimit = cfg.Session.RateLimit
	fc.Session.TrustClientIdentity = cfg.Session.TrustClientIdentity
	fc.Unseen = cfg.Unseen
	return fc
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(toFileConfig(cfg))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
