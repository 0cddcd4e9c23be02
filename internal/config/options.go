package config

import (
	"log/slog"
	"strings"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/fingerprint"
	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/logging"
	"github.com/Aman-CERP/semidx/internal/store"
	"github.com/Aman-CERP/semidx/internal/watcher"
)

// StoreOptions returns the store settings for the project at root.
func (c *Config) StoreOptions(root string, logger *slog.Logger) store.Options {
	return store.Options{
		Backend: c.Storage.Backend,
		Path:    c.IndexPath(root),
		Driver:  c.Storage.Driver,
		Logger:  logger,
	}
}

// EmbedConfig returns the embedding provider settings.
func (c *Config) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:   embed.ProviderType(strings.ToLower(c.Embeddings.Provider)),
		Model:      c.Embeddings.Model,
		Host:       c.Embeddings.Host,
		APIKey:     c.Embeddings.APIKey,
		Dimensions: c.Embeddings.Dimensions,
		BatchSize:  c.Embeddings.BatchSize,
		Timeout:    c.Embeddings.Timeout,
		CacheSize:  c.Embeddings.CacheSize,
		MaxRetries: c.Embeddings.MaxRetries,
	}
}

// TrackerOptions returns the fingerprint tracker settings.
func (c *Config) TrackerOptions() fingerprint.Options {
	return fingerprint.Options{
		TrustModTime: c.Fingerprint.TrustModTime,
		CacheSize:    c.Fingerprint.CacheSize,
		Workers:      c.Fingerprint.Workers,
	}
}

// IndexOptions returns the indexer settings.
func (c *Config) IndexOptions(logger *slog.Logger) index.Options {
	return index.Options{
		ChunkSize:        c.Chunking.ChunkSize,
		Overlap:          c.Chunking.Overlap,
		EmbedBatchSize:   c.Embeddings.BatchSize,
		EmbedConcurrency: c.Embeddings.Concurrency,
		Logger:           logger,
	}
}

// SyncOptions returns the directory sync settings.
func (c *Config) SyncOptions() index.SyncOptions {
	return index.SyncOptions{
		Include:          c.Paths.Include,
		Exclude:          c.Paths.Exclude,
		MaxFileSize:      c.Paths.MaxFileSize,
		Workers:          c.Paths.Workers,
		RespectGitignore: c.Paths.RespectGitignore,
	}
}

// WatchOptions returns the watcher settings.
func (c *Config) WatchOptions() watcher.Options {
	opts := watcher.DefaultOptions()
	if c.Watch.Debounce > 0 {
		opts.DebounceWindow = c.Watch.Debounce
	}
	opts.ExcludePatterns = c.Paths.Exclude
	return opts
}

// CoordinatorConfig returns the watch-to-index settings.
func (c *Config) CoordinatorConfig() index.CoordinatorConfig {
	return index.CoordinatorConfig{
		Include:          c.Paths.Include,
		Exclude:          c.Paths.Exclude,
		MaxFileSize:      c.Paths.MaxFileSize,
		RespectGitignore: c.Paths.RespectGitignore,
	}
}

// LogConfig returns the log file settings at the configured level.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = strings.ToLower(c.Logging.Level)
	cfg.MaxSizeMB = c.Logging.MaxSizeMB
	cfg.MaxFiles = c.Logging.MaxFiles
	return cfg
}
