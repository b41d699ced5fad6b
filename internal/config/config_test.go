package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketduel.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if !cfg.Game.ClampNegative {
		t.Error("clamping should be on by default")
	}
	if cfg.Redis.Enabled() {
		t.Error("redis should be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeFile(t, `
log_level = "debug"

[server]
addr = ":8080"
cors_origins = ["http://localhost:5173"]
message_window = "500ms"

[game]
max_rounds = 5
start_price = 42.5
seed = 7
clamp_negative_weights = false
turn_timeout = "0s"

[redis]
addr = "localhost:6379"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.MessageWindow.Duration != 500*time.Millisecond {
		t.Errorf("message window = %s", cfg.Server.MessageWindow.Duration)
	}
	// untouched keys keep their defaults
	if cfg.Server.MessageLimit != 20 {
		t.Errorf("message limit = %d", cfg.Server.MessageLimit)
	}
	if cfg.Game.MaxRounds != 5 || cfg.Game.Seed != 7 || cfg.Game.ClampNegative {
		t.Errorf("game = %+v", cfg.Game)
	}
	if cfg.Game.TurnTimeout.Duration != 0 {
		t.Errorf("turn timeout = %s", cfg.Game.TurnTimeout.Duration)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.Prefix != "marketduel" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("level = %s", cfg.SlogLevel())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != Defaults().Server.Addr {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MARKETDUEL_SERVER_ADDR", ":9000")
	t.Setenv("MARKETDUEL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MARKETDUEL_GAME_MAX_ROUNDS", "3")
	t.Setenv("MARKETDUEL_GAME_CLAMP_NEGATIVE_WEIGHTS", "false")
	t.Setenv("MARKETDUEL_GAME_TURN_TIMEOUT", "45s")
	t.Setenv("MARKETDUEL_REDIS_DB", "not-a-number")
	t.Setenv("MARKETDUEL_LOG_LEVEL", "warn")

	cfg, err := Load(writeFile(t, "[game]\nmax_rounds = 8\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("cors = %q", got)
	}
	if cfg.Game.MaxRounds != 3 {
		t.Errorf("env should beat the file: max_rounds = %d", cfg.Game.MaxRounds)
	}
	if cfg.Game.ClampNegative {
		t.Error("clamp override ignored")
	}
	if cfg.Game.TurnTimeout.Duration != 45*time.Second {
		t.Errorf("turn timeout = %s", cfg.Game.TurnTimeout.Duration)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("unparseable override should be ignored, db = %d", cfg.Redis.DB)
	}
	if cfg.SlogLevel() != slog.LevelWarn {
		t.Errorf("level = %s", cfg.SlogLevel())
	}
}

func TestPortFallback(t *testing.T) {
	t.Setenv("PORT", "4321")
	t.Setenv("MARKETDUEL_SERVER_ADDR", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":4321" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Game.MaxRounds = 0
	cfg.Game.StartPrice = 0.5
	cfg.Game.CodeLength = 2
	cfg.Server.MessageLimit = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "max_rounds", "start_price", "code_length", "message_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestGameSession(t *testing.T) {
	g := Defaults().Game
	g.StartPrice = 19.999
	g.Seed = 11

	sc := g.Session()
	if !sc.StartPrice.Equal(decimal.NewFromInt(20)) {
		t.Errorf("start price = %s, want 20", sc.StartPrice)
	}
	if sc.MaxRounds != 10 || sc.Seed != 11 || !sc.ClampNegative {
		t.Errorf("session config = %+v", sc)
	}
}
