// Package config provides Viper-based configuration loading for the battle server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// PublicDir is the directory of client assets served at "/".
	// Empty disables static file serving.
	PublicDir string `mapstructure:"public_dir"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TransportConfig holds per-socket WebSocket settings.
type TransportConfig struct {
	// WriteTimeout is the per-write deadline for outbound frames.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout is how long a socket may go without a pong before its
	// reads fail. Pings are sent at a fraction of this interval, so an
	// idle but live client is never reaped.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64 `mapstructure:"max_message_size"`
	// MessagesPerSecond is the per-connection inbound rate limit.
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	// MessageBurst is the token-bucket burst size for the rate limit.
	MessageBurst int `mapstructure:"message_burst"`
}

// GameConfig holds match pacing settings.
type GameConfig struct {
	// StartDelay is the fixed pause between the second player being
	// seated and the game_start broadcast.
	StartDelay time.Duration `mapstructure:"start_delay"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Game      GameConfig      `mapstructure:"game"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTransport(c.Transport); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.WriteTimeout <= 0 {
		errs = append(errs, "transport.write_timeout must be positive")
	}
	if t.PongTimeout <= 0 {
		errs = append(errs, "transport.pong_timeout must be positive")
	}
	if t.MaxMessageSize < 1 {
		errs = append(errs, fmt.Sprintf("transport.max_message_size must be >= 1, got %d", t.MaxMessageSize))
	}
	if t.MessagesPerSecond <= 0 {
		errs = append(errs, fmt.Sprintf("transport.messages_per_second must be positive, got %g", t.MessagesPerSecond))
	}
	if t.MessageBurst < 1 {
		errs = append(errs, fmt.Sprintf("transport.message_burst must be >= 1, got %d", t.MessageBurst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	if g.StartDelay < 0 {
		return fmt.Errorf("game.start_delay must not be negative, got %s", g.StartDelay)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with BATTLE_ prefix,
	// e.g. BATTLE_SERVER_PORT=3000.
	v.SetEnvPrefix("BATTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.public_dir", "public")

	v.SetDefault("transport.write_timeout", "10s")
	v.SetDefault("transport.pong_timeout", "60s")
	v.SetDefault("transport.max_message_size", 16384)
	v.SetDefault("transport.messages_per_second", 60)
	v.SetDefault("transport.message_burst", 120)

	v.SetDefault("game.start_delay", "500ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
