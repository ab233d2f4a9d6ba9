package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "echo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Friction.AttemptsRequired != 3 || cfg.Friction.MinWords != 15 {
		t.Fatalf("unexpected friction defaults: %+v", cfg.Friction)
	}
	if cfg.LLM.Timeout != 40*time.Second {
		t.Fatalf("expected 40s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Microcheck.IdleTimeout != 0 {
		t.Fatalf("expected idle trigger disabled by default, got %v", cfg.Microcheck.IdleTimeout)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoad_RequiresAPIKeyForOpenRouter(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when OPENROUTER_API_KEY is missing")
	}
}

func TestLoad_ClampsQuestionCount(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "echo")
	t.Setenv("MICROCHECK_QUESTION_COUNT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Microcheck.QuestionCount != 1 {
		t.Fatalf("expected question count clamped to 1, got %d", cfg.Microcheck.QuestionCount)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_SECONDS", "90")
	t.Setenv("X_GO", "2m")
	t.Setenv("X_BAD", "soon")

	if got := getEnvDuration("X_SECONDS", 0); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if got := getEnvDuration("X_GO", 0); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %v", got)
	}
	if got := getEnvDuration("X_BAD", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("expected debug level")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("expected info fallback")
	}
}
