package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// Chat engine knobs. Timeouts and limits are explicit so tests can
	// shrink them to milliseconds.
	IPConnLimit    int           `mapstructure:"ip_conn_limit" yaml:"ip_conn_limit"`
	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	PingInterval   time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// Inbound message flood guard, messages per second per session.
	// Zero disables the limiter.
	MsgRate  float64 `mapstructure:"msg_rate" yaml:"msg_rate"`
	MsgBurst int     `mapstructure:"msg_burst" yaml:"msg_burst"`

	DatabasePath string `mapstructure:"db_path" yaml:"db_path"`
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	AdminJWTSecret string `mapstructure:"admin_jwt_secret" yaml:"admin_jwt_secret"`
	AdminJWTIssuer string `mapstructure:"admin_jwt_issuer" yaml:"admin_jwt_issuer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		IPConnLimit:       5,
		HistoryLimit:      50,
		PingInterval:      10 * time.Second,
		PingTimeout:       30 * time.Second,
		ConnectTimeout:    90 * time.Second,
		MsgRate:           0,
		MsgBurst:          0,
		DatabasePath:      "chat.db",
		SnapshotPath:      "rooms.json",
		RedisAddr:         "127.0.0.1:6379",
		RedisDB:           0,
		AdminJWTIssuer:    "wschatserver",
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
	if other.IPConnLimit != 0 {
		c.IPConnLimit = other.IPConnLimit
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.PingTimeout != 0 {
		c.PingTimeout = other.PingTimeout
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.SnapshotPath != "" {
		c.SnapshotPath = other.SnapshotPath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.AdminJWTSecret != "" {
		c.AdminJWTSecret = other.AdminJWTSecret
	}
	if other.AdminJWTIssuer != "" {
		c.AdminJWTIssuer = other.AdminJWTIssuer
	}
}
