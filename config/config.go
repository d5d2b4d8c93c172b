// Package config loads and validates the Argus service configuration from
// a config file, environment variables and documented defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the Argus service.
type Config struct {
	Upstream struct {
		// BaseURL is the root of the telemetry query API
		// (/metrics, /events, /anomalies, /threats, /correlate).
		BaseURL string `mapstructure:"base_url" validate:"required,url"`
		// StreamURL is the websocket endpoint for realtime pushes.
		StreamURL string `mapstructure:"stream_url" validate:"required"`
		// Timeout bounds each upstream HTTP request.
		Timeout time.Duration `mapstructure:"timeout"`
		// RateLimit caps outbound requests per second; 0 disables it.
		RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
		RateBurst int     `mapstructure:"rate_burst" validate:"gte=0"`
		// BatchSize is the id chunk size for batch endpoints.
		BatchSize int `mapstructure:"batch_size" validate:"gte=1"`
	} `mapstructure:"upstream"`

	Cache struct {
		// MaxKeys bounds distinct cache keys per family.
		MaxKeys int `mapstructure:"max_keys" validate:"gte=1"`
		// MaxEvents bounds the item list length per events-family key.
		MaxEvents int `mapstructure:"max_events" validate:"gte=1"`
	} `mapstructure:"cache"`

	Stream struct {
		Enabled bool `mapstructure:"enabled"`
		// ReconnectBase is the first reconnect delay; it doubles per
		// attempt up to ReconnectMax.
		ReconnectBase time.Duration `mapstructure:"reconnect_base"`
		ReconnectMax  time.Duration `mapstructure:"reconnect_max"`
		// MaxAttempts is the reconnect budget before terminal failure.
		MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`
	} `mapstructure:"stream"`

	Worker struct {
		Enabled   bool `mapstructure:"enabled"`
		QueueSize int  `mapstructure:"queue_size" validate:"gte=1"`
		// CorrelationTimeout bounds a correlate request/response cycle.
		CorrelationTimeout time.Duration `mapstructure:"correlation_timeout"`
	} `mapstructure:"worker"`

	Snapshot struct {
		// TTL is the snapshot cache lifetime, independent of (and longer
		// than) the family caches.
		TTL              time.Duration `mapstructure:"ttl"`
		MaxEntries       int           `mapstructure:"max_entries" validate:"gte=1"`
		RecentEventLimit int           `mapstructure:"recent_event_limit" validate:"gte=1"`
		// Blend weights between the computed and the upstream-reported
		// security score.
		BlendComputed float64 `mapstructure:"blend_computed" validate:"gt=0,lte=1"`
		BlendReported float64 `mapstructure:"blend_reported" validate:"gte=0,lt=1"`
	} `mapstructure:"snapshot"`

	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	} `mapstructure:"server"`
}

// setDefaults registers the documented default for every field.
func setDefaults() {
	viper.SetDefault("upstream.base_url", "http://localhost:8080/api/security")
	viper.SetDefault("upstream.stream_url", "ws://localhost:8080/api/security/events/stream")
	viper.SetDefault("upstream.timeout", 15*time.Second)
	viper.SetDefault("upstream.rate_limit", 50.0)
	viper.SetDefault("upstream.rate_burst", 10)
	viper.SetDefault("upstream.batch_size", 20)

	viper.SetDefault("cache.max_keys", 1000)
	viper.SetDefault("cache.max_events", 500)

	viper.SetDefault("stream.enabled", true)
	viper.SetDefault("stream.reconnect_base", time.Second)
	viper.SetDefault("stream.reconnect_max", 30*time.Second)
	viper.SetDefault("stream.max_attempts", 5)

	viper.SetDefault("worker.enabled", false)
	viper.SetDefault("worker.queue_size", 256)
	viper.SetDefault("worker.correlation_timeout", 10*time.Second)

	viper.SetDefault("snapshot.ttl", 30*time.Minute)
	viper.SetDefault("snapshot.max_entries", 128)
	viper.SetDefault("snapshot.recent_event_limit", 10)
	viper.SetDefault("snapshot.blend_computed", 0.7)
	viper.SetDefault("snapshot.blend_reported", 0.3)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8090)
}

// LoadConfig reads configuration from the optional config file path (or
// ./argus.yaml), applies ARGUS_* environment overrides and defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	viper.Reset()
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("argus")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/argus")
	}

	viper.SetEnvPrefix("ARGUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Stream.ReconnectBase > c.Stream.ReconnectMax {
		return fmt.Errorf("invalid configuration: stream.reconnect_base %v exceeds stream.reconnect_max %v",
			c.Stream.ReconnectBase, c.Stream.ReconnectMax)
	}
	return nil
}
