package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// WebSocket transport.
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	ClientBuffer    int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	HubInbox        int           `mapstructure:"hub_inbox" yaml:"hub_inbox"`
	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	WSRatePerSecond float64       `mapstructure:"ws_rate_per_second" yaml:"ws_rate_per_second"`
	WSRateBurst     int           `mapstructure:"ws_rate_burst" yaml:"ws_rate_burst"`

	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	BroadcastOnUpdate bool     `mapstructure:"broadcast_on_update" yaml:"broadcast_on_update"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTRequired bool   `mapstructure:"jwt_required" yaml:"jwt_required"`

	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "ticketsync.db",
		MaxMessageBytes:   64 << 10,
		ClientBuffer:      32,
		HubInbox:          256,
		PingInterval:      30 * time.Second,
		WSRatePerSecond:   20,
		WSRateBurst:       40,
		AllowedOrigins:    []string{"*"},
		JWTIssuer:         "ticketsync",
		JWTAudience:       "ticketsync",
		MetricsEnabled:    true,
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
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
