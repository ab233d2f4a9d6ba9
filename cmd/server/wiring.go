package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashureev/horizon-coach/internal/classifier"
	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/config"
	"github.com/ashureev/horizon-coach/internal/llm"
	"github.com/ashureev/horizon-coach/internal/store"
	"github.com/ashureev/horizon-coach/internal/telemetry"
)

type provider interface {
	llm.Streamer
	llm.Completer
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	if cfg.InMemoryStore() {
		slog.Info("Using in-memory session store")
		return store.NewMemory(), nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return repo, nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) provider {
	if cfg.LLM.Provider == "echo" {
		logger.Warn("Using offline echo model provider")
		return llm.Echo{}
	}
	return llm.NewOpenRouter(llm.OpenRouterConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
}

func newClassifier(cfg *config.Config, model llm.Completer, logger *slog.Logger) classifier.Classifier {
	heuristic := classifier.Heuristic{MinWords: cfg.Friction.MinWords}
	if cfg.Classifier.Kind == "llm" {
		return classifier.NewModel(model, heuristic, cfg.Classifier.Timeout, logger)
	}
	return heuristic
}

func newTelemetry(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (telemetry.Recorder, error) {
	recorders := telemetry.Multi{telemetry.NewPrometheus(reg)}
	if cfg.Telemetry.LogEnabled {
		tl, err := telemetry.NewTurnLogger(telemetry.TurnLogConfig{
			Dir:       cfg.Telemetry.LogDir,
			QueueSize: cfg.Telemetry.QueueSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize turn log: %w", err)
		}
		recorders = append(recorders, tl)
	}
	return recorders, nil
}

func newService(cfg *config.Config, deps coach.Deps) *coach.Service {
	return coach.New(deps, coach.Options{
		FrictionThreshold:       cfg.Friction.AttemptsRequired,
		MinWords:                cfg.Friction.MinWords,
		MicrocheckEnabled:       cfg.Microcheck.Enabled,
		MicrocheckFrequency:     cfg.Microcheck.Frequency,
		MicrocheckQuestionCount: cfg.Microcheck.QuestionCount,
		MicrocheckIdleTimeout:   cfg.Microcheck.IdleTimeout,
		PriceInputPer1K:         cfg.LLM.PriceInputPer1K,
		PriceOutputPer1K:        cfg.LLM.PriceOutputPer1K,
	})
}
