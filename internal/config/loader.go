package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, loads .env if present and applies MARKETDUEL_* overrides. The
// result has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose MARKETDUEL_* variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.Addr, "MARKETDUEL_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETDUEL_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.ReadTimeout, "MARKETDUEL_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "MARKETDUEL_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "MARKETDUEL_SERVER_SHUTDOWN_TIMEOUT")
	setInt(&cfg.Server.MessageLimit, "MARKETDUEL_SERVER_MESSAGE_LIMIT")
	setDuration(&cfg.Server.MessageWindow, "MARKETDUEL_SERVER_MESSAGE_WINDOW")
	setInt(&cfg.Server.RequestLimit, "MARKETDUEL_SERVER_REQUEST_LIMIT")
	setDuration(&cfg.Server.RequestWindow, "MARKETDUEL_SERVER_REQUEST_WINDOW")
	setDuration(&cfg.Server.IdleRoomTTL, "MARKETDUEL_SERVER_IDLE_ROOM_TTL")

	// PORT is what most hosts inject.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MARKETDUEL_SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}

	// ── Game ──
	setInt(&cfg.Game.MaxRounds, "MARKETDUEL_GAME_MAX_ROUNDS")
	setFloat64(&cfg.Game.StartPrice, "MARKETDUEL_GAME_START_PRICE")
	setInt64(&cfg.Game.Seed, "MARKETDUEL_GAME_SEED")
	setBool(&cfg.Game.ClampNegative, "MARKETDUEL_GAME_CLAMP_NEGATIVE_WEIGHTS")
	setDuration(&cfg.Game.TurnTimeout, "MARKETDUEL_GAME_TURN_TIMEOUT")
	setInt(&cfg.Game.CodeLength, "MARKETDUEL_GAME_CODE_LENGTH")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETDUEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETDUEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETDUEL_REDIS_DB")
	setStr(&cfg.Redis.Prefix, "MARKETDUEL_REDIS_PREFIX")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "MARKETDUEL_LOG_LEVEL")
	setStr(&cfg.LogFormat, "MARKETDUEL_LOG_FORMAT")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
