// Package config loads server configuration from defaults, an optional YAML
// file and LEAVE_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/warp/leave-engine/generic"
)

// EnvPrefix is prepended to every environment override, e.g.
// LEAVE_SERVER_PORT or LEAVE_LEAVE_AUTO_APPROVE_WINDOW.
const EnvPrefix = "LEAVE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Leave     LeaveConfig     `mapstructure:"leave"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Path is a SQLite file, or ":memory:".
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type LeaveConfig struct {
	AutoApproveWindow  time.Duration `mapstructure:"auto_approve_window"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	SweepEnabled       bool          `mapstructure:"sweep_enabled"`
	AllowOverlap       bool          `mapstructure:"allow_overlap"`
	DefaultTotalLeaves int           `mapstructure:"default_total_leaves"`
}

// Policy converts the leave section into lifecycle rules.
func (l LeaveConfig) Policy() generic.Policy {
	return generic.Policy{
		AutoApproveWindow:  l.AutoApproveWindow,
		AllowOverlap:       l.AllowOverlap,
		DefaultTotalLeaves: l.DefaultTotalLeaves,
	}
}

// Load reads configuration. An empty configPath searches ./config.yaml and
// ./config/config.yaml and silently falls back to defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	case c.Database.Path == "":
		return fmt.Errorf("database.path is required")
	case c.Leave.AutoApproveWindow <= 0:
		return fmt.Errorf("leave.auto_approve_window must be positive")
	case c.Leave.SweepInterval <= 0:
		return fmt.Errorf("leave.sweep_interval must be positive")
	case c.Leave.DefaultTotalLeaves < 0:
		return fmt.Errorf("leave.default_total_leaves must not be negative")
	case c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0:
		return fmt.Errorf("ratelimit values must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.path", "./data/leave.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("ratelimit.rps", 50.0)
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("leave.auto_approve_window", generic.AutoApproveWindow)
	v.SetDefault("leave.sweep_interval", 30*time.Second)
	v.SetDefault("leave.sweep_enabled", true)
	v.SetDefault("leave.allow_overlap", true)
	v.SetDefault("leave.default_total_leaves", generic.DefaultTotalLeaves)
}
