// Package config loads semidx settings from YAML files and SEMIDX_*
// environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/semidx/internal/chunk"
	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/search"
	"github.com/Aman-CERP/semidx/internal/store"
)

const (
	// ProjectConfigName is the per-project config file, looked up in the
	// project root.
	ProjectConfigName = ".semidx.yaml"

	// DataDirName holds the index database and its lock file.
	DataDirName = ".semidx"
)

// Config represents the complete semidx configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Fingerprint FingerprintConfig `yaml:"fingerprint" json:"fingerprint"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Watch       WatchConfig       `yaml:"watch" json:"watch"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// StorageConfig selects the chunk store.
type StorageConfig struct {
	// Backend is "sqlite" (durable) or "memory" (lost on exit).
	Backend string `yaml:"backend" json:"backend"`
	// Path of the SQLite database, relative to the project root unless
	// absolute.
	Path string `yaml:"path" json:"path"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver" json:"driver"`
}

// ChunkingConfig sizes the token windows. Changing either value only affects
// files indexed afterwards; run `semidx clear` to rebuild.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	Overlap   int `yaml:"overlap" json:"overlap"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK          int     `yaml:"top_k" json:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	// Host is the Ollama endpoint or the OpenAI-compatible base URL.
	Host   string `yaml:"host" json:"host"`
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	// Dimensions applies to the static provider and to OpenAI models that
	// accept a dimensions parameter.
	Dimensions  int           `yaml:"dimensions" json:"dimensions"`
	BatchSize   int           `yaml:"batch_size" json:"batch_size"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	CacheSize   int           `yaml:"cache_size" json:"cache_size"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// FingerprintConfig tunes change detection.
type FingerprintConfig struct {
	// TrustModTime skips hashing when mtime and size match the stored record.
	TrustModTime bool `yaml:"trust_mod_time" json:"trust_mod_time"`
	CacheSize    int  `yaml:"cache_size" json:"cache_size"`
	Workers      int  `yaml:"workers" json:"workers"`
}

// PathsConfig configures which files directory indexing picks up.
// Patterns are doublestar globs relative to the indexed root.
type PathsConfig struct {
	Include     []string `yaml:"include" json:"include"`
	Exclude     []string `yaml:"exclude" json:"exclude"`
	MaxFileSize int64    `yaml:"max_file_size" json:"max_file_size"`
	Workers     int      `yaml:"workers" json:"workers"`

	// RespectGitignore skips files ignored by the project's .gitignore files.
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`
}

// WatchConfig configures `semidx watch`.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Backend: store.BackendSQLite,
			Path:    filepath.Join(DataDirName, "index.db"),
			Driver:  store.DriverModernc,
		},
		Chunking: ChunkingConfig{
			ChunkSize: chunk.DefaultChunkSize,
			Overlap:   chunk.DefaultOverlap,
		},
		Search: SearchConfig{
			TopK:          search.DefaultTopK,
			MinSimilarity: 0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    string(embed.ProviderOllama),
			Model:       embed.DefaultOllamaModel,
			BatchSize:   embed.DefaultBatchSize,
			Concurrency: 4,
			CacheSize:   embed.DefaultCacheSize,
			MaxRetries:  3,
			Timeout:     60 * time.Second,
		},
		Fingerprint: FingerprintConfig{
			TrustModTime: false,
			CacheSize:    4096,
			Workers:      runtime.NumCPU(),
		},
		Paths: PathsConfig{
			Include:          []string{},
			Exclude:          []string{},
			Workers:          2,
			RespectGitignore: true,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/semidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/semidx/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "semidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "semidx", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/semidx/config.yaml)
//  3. Project config (.semidx.yaml in dir)
//  4. Environment variables (SEMIDX_*)
//
// Keys absent from a file keep the value of the previous layer.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAMLIfExists(GetUserConfigPath()); err != nil {
		return nil, err
	}
	if err := cfg.loadYAMLIfExists(filepath.Join(dir, ProjectConfigName)); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAMLIfExists(path string) error {
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML decodes path on top of the current values. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies SEMIDX_* variables. OPENAI_API_KEY is honoured
// when SEMIDX_API_KEY is unset.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"SEMIDX_STORAGE_BACKEND":     &c.Storage.Backend,
		"SEMIDX_STORAGE_PATH":        &c.Storage.Path,
		"SEMIDX_STORAGE_DRIVER":      &c.Storage.Driver,
		"SEMIDX_EMBEDDINGS_PROVIDER": &c.Embeddings.Provider,
		"SEMIDX_EMBEDDINGS_MODEL":    &c.Embeddings.Model,
		"SEMIDX_EMBEDDINGS_HOST":     &c.Embeddings.Host,
		"SEMIDX_LOG_LEVEL":           &c.Logging.Level,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("SEMIDX_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = v
	}

	ints := map[string]*int{
		"SEMIDX_CHUNK_SIZE":            &c.Chunking.ChunkSize,
		"SEMIDX_CHUNK_OVERLAP":         &c.Chunking.Overlap,
		"SEMIDX_TOP_K":                 &c.Search.TopK,
		"SEMIDX_EMBEDDINGS_DIMENSIONS": &c.Embeddings.Dimensions,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(name, v, err)
		}
		*dst = n
	}

	if v := os.Getenv("SEMIDX_MIN_SIMILARITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("SEMIDX_MIN_SIMILARITY", v, err)
		}
		c.Search.MinSimilarity = f
	}
	if v := os.Getenv("SEMIDX_TRUST_MOD_TIME"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("SEMIDX_TRUST_MOD_TIME", v, err)
		}
		c.Fingerprint.TrustModTime = b
	}
	if v := os.Getenv("SEMIDX_RESPECT_GITIGNORE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("SEMIDX_RESPECT_GITIGNORE", v, err)
		}
		c.Paths.RespectGitignore = b
	}
	return nil
}

func envError(name, value string, err error) error {
	return errors.ConfigError(fmt.Sprintf("invalid value %q for %s", value, name), err).
		WithDetail("variable", name)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case store.BackendSQLite, store.BackendMemory:
	default:
		return invalid("storage.backend must be 'sqlite' or 'memory', got %q", c.Storage.Backend)
	}
	switch c.Storage.Driver {
	case store.DriverModernc, store.DriverMattn:
	default:
		return invalid("storage.driver must be 'sqlite' or 'sqlite3', got %q", c.Storage.Driver)
	}
	if c.Storage.Backend == store.BackendSQLite && c.Storage.Path == "" {
		return invalid("storage.path is required for the sqlite backend")
	}

	if err := chunk.Validate(c.Chunking.ChunkSize, c.Chunking.Overlap); err != nil {
		return err
	}

	if c.Search.TopK < 1 || c.Search.TopK > search.MaxTopK {
		return invalid("search.top_k must be between 1 and %d, got %d", search.MaxTopK, c.Search.TopK)
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		return invalid("search.min_similarity must be between -1 and 1, got %g", c.Search.MinSimilarity)
	}

	switch embed.ProviderType(strings.ToLower(c.Embeddings.Provider)) {
	case embed.ProviderOllama, embed.ProviderOpenAI, embed.ProviderStatic:
	default:
		return invalid("embeddings.provider must be 'ollama', 'openai' or 'static', got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 1 || c.Embeddings.BatchSize > embed.MaxBatchSize {
		return invalid("embeddings.batch_size must be between 1 and %d, got %d", embed.MaxBatchSize, c.Embeddings.BatchSize)
	}
	if c.Embeddings.Concurrency < 1 {
		return invalid("embeddings.concurrency must be positive, got %d", c.Embeddings.Concurrency)
	}
	if c.Embeddings.Dimensions < 0 || c.Embeddings.MaxRetries < 0 || c.Embeddings.Timeout < 0 {
		return invalid("embeddings dimensions, max_retries and timeout must be non-negative")
	}

	if c.Fingerprint.Workers < 0 || c.Paths.Workers < 0 {
		return invalid("worker counts must be non-negative")
	}
	if c.Watch.Debounce < 0 {
		return invalid("watch.debounce must be non-negative, got %s", c.Watch.Debounce)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.ConfigError(fmt.Sprintf(format, args...), nil)
}

// WriteYAML writes the configuration to a YAML file. The API key is never
// written.
func (c *Config) WriteYAML(path string) error {
	out := *c
	out.Embeddings.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.InternalError("failed to marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.IOError(fmt.Sprintf("failed to write config file %s", path), err)
	}
	return nil
}

// IndexPath resolves Storage.Path against the project root.
func (c *Config) IndexPath(root string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(root, c.Storage.Path)
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .semidx.yaml file by walking up the
// directory tree, and falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidPath, "failed to get absolute path", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigName)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
