// Package config loads the pipeline configuration from a JSON file with
// environment overrides layered on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// EnvPrefix namespaces the environment override variables.
const EnvPrefix = "ACUAPONIA"

// Config is the complete pipeline configuration.
type Config struct {
	Logging    LoggingConfig                    `json:"logging"`
	Broker     BrokerConfig                     `json:"broker"`
	Store      StoreConfig                      `json:"store"`
	Ingest     IngestConfig                     `json:"ingest"`
	Fanout     FanoutConfig                     `json:"fanout"`
	Directory  DirectoryConfig                  `json:"directory"`
	Notify     NotifyConfig                     `json:"notify"`
	Emitter    EmitterConfig                    `json:"emitter"`
	HTTP       HTTPConfig                       `json:"http"`
	Thresholds map[string]types.ThresholdBand   `json:"thresholds,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// BrokerConfig holds the pub-sub connection settings. Durations are
// expressed in seconds so the file stays plain JSON.
type BrokerConfig struct {
	URL               string `json:"url"`
	ClientID          string `json:"client_id"`
	Username          string `json:"username,omitempty"`
	Password          string `json:"password,omitempty"`
	ConnectTimeoutSec int    `json:"connect_timeout_sec"`
	ReconnectDelaySec int    `json:"reconnect_delay_sec"`
	MaxReconnects     int    `json:"max_reconnects"`
}

// StoreConfig holds the persistence backends.
type StoreConfig struct {
	PostgresDSN   string `json:"postgres_dsn"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// IngestConfig sizes the ingestion worker pool.
type IngestConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// FanoutConfig holds the websocket listener settings.
type FanoutConfig struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

// DirectoryConfig holds the credential verification settings.
type DirectoryConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer,omitempty"`
}

// NotifyConfig holds the outbound notification settings. MaxInFlight
// caps concurrent dispatches; zero takes the dispatcher default.
type NotifyConfig struct {
	Enabled      bool   `json:"enabled"`
	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"smtp_password,omitempty"`
	From         string `json:"from,omitempty"`
	MaxInFlight  int    `json:"max_in_flight,omitempty"`
}

// EmitterConfig controls the synthetic emitter supervisor.
type EmitterConfig struct {
	IntervalSec int `json:"interval_sec"`
}

// HTTPConfig holds the operator API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// Default returns the baseline configuration. File and environment
// layers override it field by field.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Broker: BrokerConfig{
			URL:               "tcp://localhost:1883",
			ClientID:          "acuaponia-pipeline",
			ConnectTimeoutSec: 4,
			ReconnectDelaySec: 5,
			MaxReconnects:     10,
		},
		Store:   StoreConfig{PostgresDSN: "postgres://localhost:5432/acuaponia"},
		Ingest:  IngestConfig{Workers: 4, QueueSize: 512},
		Fanout:  FanoutConfig{Addr: ":8090", Path: "/ws"},
		Notify:  NotifyConfig{Enabled: false, SMTPPort: 587},
		Emitter: EmitterConfig{IntervalSec: 5},
		HTTP:    HTTPConfig{Addr: ":8080"},
	}
}

// Load reads the file at path (optional), applies environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Config", "Load", "read file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse file")
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the loaded config.
// Only secrets and deployment-specific endpoints are overridable; tuning
// knobs stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "_BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_BROKER_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}
	if v := os.Getenv(EnvPrefix + "_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv(EnvPrefix + "_POSTGRES_DSN"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv(EnvPrefix + "_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvPrefix + "_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv(EnvPrefix + "_JWT_SECRET"); v != "" {
		cfg.Directory.JWTSecret = v
	}
	if v := os.Getenv(EnvPrefix + "_SMTP_PASSWORD"); v != "" {
		cfg.Notify.SMTPPassword = v
	}
	if v := os.Getenv(EnvPrefix + "_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "_FANOUT_ADDR"); v != "" {
		cfg.Fanout.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "_EMITTER_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Emitter.IntervalSec = n
		}
	}
}

// Validate checks the fields the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Broker.URL == "" {
		return validationErr("broker.url is required")
	}
	if c.Broker.ClientID == "" {
		return validationErr("broker.client_id is required")
	}
	if c.Broker.MaxReconnects < 0 {
		return validationErr("broker.max_reconnects must not be negative")
	}
	if c.Store.PostgresDSN == "" {
		return validationErr("store.postgres_dsn is required")
	}
	if c.Directory.JWTSecret == "" {
		return validationErr("directory.jwt_secret is required")
	}
	if c.Emitter.IntervalSec <= 0 {
		return validationErr("emitter.interval_sec must be positive")
	}
	if c.Notify.Enabled && (c.Notify.SMTPHost == "" || c.Notify.From == "") {
		return validationErr("notify.smtp_host and notify.from are required when notifications are enabled")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return validationErr("logging.format must be json or text")
	}
	for kind, band := range c.Thresholds {
		if _, ok := types.ParseKind(kind); !ok {
			return validationErr(fmt.Sprintf("thresholds: unknown measurement kind %q", kind))
		}
		if !band.Valid() {
			return validationErr(fmt.Sprintf("thresholds.%s violates ordering critical_low < low < high < critical_high", kind))
		}
	}
	return nil
}

// ThresholdBands converts the string-keyed threshold section to typed
// measurement kinds. Validate must have passed first.
func (c *Config) ThresholdBands() map[types.MeasurementKind]types.ThresholdBand {
	if len(c.Thresholds) == 0 {
		return nil
	}
	out := make(map[types.MeasurementKind]types.ThresholdBand, len(c.Thresholds))
	for kind, band := range c.Thresholds {
		k, ok := types.ParseKind(kind)
		if !ok {
			continue
		}
		out[k] = band
	}
	return out
}

// EmitterInterval returns the publish cadence as a duration.
func (c *Config) EmitterInterval() time.Duration {
	return time.Duration(c.Emitter.IntervalSec) * time.Second
}

func validationErr(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "check fields")
}
