// Package config loads the server configuration from a TOML file, a .env file
// and MARKETDUEL_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketduel/internal/match"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig `toml:"server"`
	Game      GameConfig   `toml:"game"`
	Redis     RedisConfig  `toml:"redis"`
	LogLevel  string       `toml:"log_level"`
	LogFormat string       `toml:"log_format"`
}

// ServerConfig holds HTTP and WebSocket parameters.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	CORSOrigins     []string `toml:"cors_origins"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`

	// Per-connection WebSocket message budget.
	MessageLimit  int      `toml:"message_limit"`
	MessageWindow duration `toml:"message_window"`

	// Per-IP budget on the REST routes. Zero disables it.
	RequestLimit  int      `toml:"request_limit"`
	RequestWindow duration `toml:"request_window"`

	// Empty rooms created over HTTP are dropped after this long.
	IdleRoomTTL duration `toml:"idle_room_ttl"`
}

// GameConfig holds the parameters every new session is created with.
type GameConfig struct {
	MaxRounds     int      `toml:"max_rounds"`
	StartPrice    float64  `toml:"start_price"`
	Seed          int64    `toml:"seed"`
	ClampNegative bool     `toml:"clamp_negative_weights"`
	TurnTimeout   duration `toml:"turn_timeout"`
	CodeLength    int      `toml:"code_length"`
}

// RedisConfig enables the event mirror when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Enabled reports whether a broker address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     duration{15 * time.Second},
			WriteTimeout:    duration{15 * time.Second},
			ShutdownTimeout: duration{10 * time.Second},
			MessageLimit:    20,
			MessageWindow:   duration{time.Second},
			RequestLimit:    100,
			RequestWindow:   duration{time.Minute},
			IdleRoomTTL:     duration{30 * time.Minute},
		},
		Game: GameConfig{
			MaxRounds:     10,
			StartPrice:    20,
			ClampNegative: true,
			TurnTimeout:   duration{60 * time.Second},
			CodeLength:    6,
		},
		Redis: RedisConfig{
			Prefix: "marketduel",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks Config for obviously invalid values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: text, json)", c.LogFormat))
	}

	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if c.Server.MessageLimit < 1 {
		errs = append(errs, "server: message_limit must be >= 1")
	}
	if c.Server.MessageWindow.Duration <= 0 {
		errs = append(errs, "server: message_window must be positive")
	}
	if c.Server.RequestLimit < 0 {
		errs = append(errs, "server: request_limit must be >= 0")
	}
	if c.Server.RequestLimit > 0 && c.Server.RequestWindow.Duration <= 0 {
		errs = append(errs, "server: request_window must be positive when request_limit is set")
	}

	if c.Game.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("game: max_rounds must be >= 1, got %d", c.Game.MaxRounds))
	}
	if c.Game.StartPrice < 1 {
		errs = append(errs, fmt.Sprintf("game: start_price must be >= 1, got %v", c.Game.StartPrice))
	}
	if c.Game.TurnTimeout.Duration < 0 {
		errs = append(errs, "game: turn_timeout must not be negative")
	}
	if c.Game.CodeLength < 4 || c.Game.CodeLength > 12 {
		errs = append(errs, fmt.Sprintf("game: code_length must be 4-12, got %d", c.Game.CodeLength))
	}

	if c.Redis.Enabled() && c.Redis.DB < 0 {
		errs = append(errs, "redis: db must be >= 0")
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// Session converts the game section into a session config.
func (g GameConfig) Session() match.Config {
	return match.Config{
		MaxRounds:     g.MaxRounds,
		StartPrice:    decimal.NewFromFloat(g.StartPrice).Round(2),
		ClampNegative: g.ClampNegative,
		Seed:          g.Seed,
	}
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
