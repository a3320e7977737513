package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/masanjalab/doctor-mitambo/internal/engine"
	"github.com/masanjalab/doctor-mitambo/internal/gate"
	"github.com/masanjalab/doctor-mitambo/internal/kb"
	"github.com/masanjalab/doctor-mitambo/internal/provider"
	"github.com/masanjalab/doctor-mitambo/internal/storage"
)

func defaultDBPath() (string, error) {
	if path := viper.GetString("database.path"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "mitambo", "mitambo.db"), nil
}

func openStore(ctx context.Context) (*storage.SQLiteStore, error) {
	dbPath, err := defaultDBPath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStore(dbPath, viper.GetInt64("wallet.initial_balance"))
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate wallet store: %w", err)
	}

	return store, nil
}

func providerConfig() provider.Config {
	return provider.Config{
		Order:         viper.GetStringSlice("providers.order"),
		Timeout:       viper.GetDuration("providers.timeout"),
		RatePerMinute: viper.GetInt("providers.rate_per_minute"),
		Groq: provider.AdapterConfig{
			APIKey: viper.GetString("providers.groq.api_key"),
			Model:  viper.GetString("providers.groq.model"),
		},
		Gemini: provider.AdapterConfig{
			APIKey: viper.GetString("providers.gemini.api_key"),
			Model:  viper.GetString("providers.gemini.model"),
		},
		OpenAI: provider.AdapterConfig{
			APIKey: viper.GetString("providers.openai.api_key"),
			Model:  viper.GetString("providers.openai.model"),
		},
	}
}

// buildGate wires the knowledge base, provider registry, resolution engine
// and wallet store into a token gate. The returned cleanup closes the store.
func buildGate(ctx context.Context, logger *slog.Logger) (*gate.Gate, func(), error) {
	base, err := kb.Load(viper.GetString("kb.catalog_path"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fault-code catalog: %w", err)
	}

	registry := provider.NewRegistry(providerConfig(), logger)

	eng := engine.New(base, registry, engine.Config{
		Language: viper.GetString("engine.language"),
		FlatRate: viper.GetInt64("engine.ai_rate"),
	}, logger)

	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close wallet store", "error", err)
		}
	}

	return gate.New(store, eng, logger), cleanup, nil
}
