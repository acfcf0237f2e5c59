package cmd

import (
	"fmt"
	"log/slog"

	"github.com/mohik-agnext/docker-chatbot/internal/config"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	"github.com/mohik-agnext/docker-chatbot/internal/logging"
	"github.com/mohik-agnext/docker-chatbot/internal/retrieval"
	"github.com/mohik-agnext/docker-chatbot/internal/store"
	"github.com/mohik-agnext/docker-chatbot/internal/vector"
)

// loadConfig loads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	return cfg, nil
}

// setupLogging configures the process-wide logger from the config.
func setupLogging(cfg *config.Config) (func(), error) {
	return logging.SetupDefault(logging.Config{
		Level:         cfg.Server.LogLevel,
		FilePath:      cfg.Server.LogFile,
		WriteToStderr: true,
	})
}

// buildEmbedder assembles the embedder stack per config: the provider,
// wrapped with retries (http only) and the embedding LRU.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var base embed.Embedder
	switch cfg.Embeddings.Provider {
	case "http":
		httpEmbedder, err := embed.NewHTTPEmbedder(embed.HTTPConfig{
			Endpoint:   cfg.Embeddings.Endpoint,
			APIKey:     cfg.Embeddings.APIKey,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.Embeddings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = embed.NewRetryEmbedder(httpEmbedder, 2, cfg.Vector.RetryBackoff)
	case "static", "":
		base = embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
	cached, err := embed.NewCachedEmbedder(base, cfg.Embeddings.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// buildVector returns the vector client, or nil for the local provider
// (the orchestrator then builds an in-process index per snapshot).
func buildVector(cfg *config.Config) (vector.Client, error) {
	switch cfg.Vector.Provider {
	case "http":
		remote, err := vector.NewRemoteClient(vector.RemoteConfig{
			Endpoint:     cfg.Vector.Endpoint,
			APIKey:       cfg.Vector.APIKey,
			Timeout:      cfg.Vector.Timeout,
			RetryBackoff: cfg.Vector.RetryBackoff,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	case "local", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown vector provider %q", cfg.Vector.Provider)
	}
}

// buildEngine wires the full retrieval engine from config.
func buildEngine(cfg *config.Config, log *slog.Logger) (*retrieval.Orchestrator, error) {
	st, err := store.Open(cfg.Corpus.StorePath)
	if err != nil {
		return nil, err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	vec, err := buildVector(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return retrieval.New(retrieval.Options{
		Config:   cfg,
		Logger:   log,
		Store:    st,
		Embedder: embedder,
		Vector:   vec,
	}), nil
}
