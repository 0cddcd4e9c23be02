package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderOllama calls a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI calls an OpenAI-compatible /embeddings endpoint.
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based vectors, offline.
	ProviderStatic ProviderType = "static"
)

// Config selects and tunes the provider built by NewEmbedder.
type Config struct {
	Provider   ProviderType
	Model      string
	Host       string
	APIKey     string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// CacheSize is the LRU size of the query cache; negative disables it.
	CacheSize int

	// MaxRetries enables backoff retries of provider failures when > 0.
	MaxRetries int
}

// NewEmbedder builds the configured provider, wrapped with retries and the
// LRU cache as configured.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case ProviderOllama, "":
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderStatic:
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("use ollama, openai or static")
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		rc := errors.DefaultRetryConfig()
		rc.MaxRetries = cfg.MaxRetries
		rc.Jitter = true
		inner = NewRetryingEmbedder(inner, rc)
	}
	if cfg.CacheSize >= 0 {
		inner = NewCachedEmbedder(inner, cfg.CacheSize)
	}

	slog.Debug("embedder_ready",
		slog.String("provider", string(cfg.Provider)),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))
	return inner, nil
}
