package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the bridge service.
// Environment variables are parsed from the WABRIDGE_ prefix, e.g.
// WABRIDGE_HTTP_PORT, WABRIDGE_MONGO_URI.
type Config struct {
	// HTTP Configuration
	HTTPPort  int    `envconfig:"HTTP_PORT" default:"10000"`
	DashToken string `envconfig:"DASH_TOKEN" default:""`

	// Document store
	MongoURI        string `envconfig:"MONGO_URI" default:""`
	MongoDB         string `envconfig:"MONGO_DB" default:"whatsapp"`
	MongoCollection string `envconfig:"MONGO_COL" default:"messages"`
	MessageTTLDays  int    `envconfig:"MSG_TTL_DAYS" default:"0"`

	// Optional write-behind buffer
	RedisURL               string `envconfig:"REDIS_URL" default:""`
	RedisListKey           string `envconfig:"REDIS_LIST_KEY" default:"wapp:buffer:v1"`
	FlushSeconds           int    `envconfig:"FLUSH_SECONDS" default:"3600"`
	FlushBatchLimit        int    `envconfig:"FLUSH_BATCH_LIMIT" default:"5000"`
	RedisBootTimeoutMillis int    `envconfig:"REDIS_BOOT_TIMEOUT_MS" default:"10000"`

	// Media storage
	MediaDir string `envconfig:"MEDIA_DIR" default:"data/media"`

	// External client runner command line. Empty disables the client;
	// the service still serves reads and the push channel.
	ClientCmd string `envconfig:"CLIENT_CMD" default:""`

	// Lifecycle monitor
	ReinitDelaySeconds int `envconfig:"REINIT_DELAY_SECONDS" default:"5"`
	StatePollSeconds   int `envconfig:"STATE_POLL_SECONDS" default:"45"`

	// Push channel
	HeartbeatSeconds  int `envconfig:"HEARTBEAT_SECONDS" default:"15"`
	CodeReplaySeconds int `envconfig:"CODE_REPLAY_SECONDS" default:"30"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults applies lower bounds and validates derived values.
func (c *Config) ResolveDefaults() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if c.FlushSeconds < 30 {
		c.FlushSeconds = 30
	}
	if c.FlushBatchLimit < 100 {
		c.FlushBatchLimit = 100
	}
	if c.RedisBootTimeoutMillis <= 0 {
		c.RedisBootTimeoutMillis = 10000
	}
	if c.MessageTTLDays < 0 {
		c.MessageTTLDays = 0
	}
	return nil
}

// New creates a new Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("WABRIDGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config with short intervals for tests.
func NewForTesting() *Config {
	return &Config{
		HTTPPort:                  10000,
		MongoDB:                   "whatsapp",
		MongoCollection:           "messages",
		RedisListKey:              "wapp:buffer:v1",
		FlushSeconds:              30,
		FlushBatchLimit:           100,
		RedisBootTimeoutMillis:    100,
		MediaDir:                  "data/media",
		ReinitDelaySeconds:        1,
		StatePollSeconds:          1,
		HeartbeatSeconds:          1,
		CodeReplaySeconds:         30,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
}

// BufferEnabled reports whether a write-behind buffer is configured.
func (c *Config) BufferEnabled() bool { return c.RedisURL != "" }

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// FlushInterval returns the flush cadence as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushSeconds) * time.Second
}

// RedisBootTimeout returns the queue boot-probe timeout.
func (c *Config) RedisBootTimeout() time.Duration {
	return time.Duration(c.RedisBootTimeoutMillis) * time.Millisecond
}
