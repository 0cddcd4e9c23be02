package embed

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL targets compatible servers (vLLM, LM Studio, Azure proxies).
	BaseURL string
	Model   string

	// Dimensions requests shortened vectors from models that support it.
	Dimensions int

	BatchSize int
	Timeout   time.Duration
}

// OpenAIEmbedder calls the /embeddings endpoint through go-openai.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds the client. No request is made until the first
// Embed call; Dimensions reports 0 until then unless configured.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.ConfigError("OpenAI embeddings need an API key", nil).
			WithSuggestion("set OPENAI_API_KEY or embeddings.api_key, or point embeddings.host at a compatible server")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	cfg.BatchSize = min(cfg.BatchSize, MaxBatchSize)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch implements Embedder.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errors.New(errors.ErrCodeProviderUnavailable, "openai embedder is closed", nil)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		batch, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.cfg.Model),
		Dimensions: e.cfg.Dimensions,
	})
	if err != nil {
		return nil, providerErr(ctx, errors.ErrCodeEmbeddingFailed, "openai embeddings request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New(errors.ErrCodeProviderResponse,
			fmt.Sprintf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, errors.New(errors.ErrCodeProviderResponse,
				fmt.Sprintf("openai returned an unexpected embedding index %d", d.Index), nil)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		if err := e.checkDims(len(v)); err != nil {
			return nil, err
		}
		out[d.Index] = v
	}
	return out, nil
}

// checkDims records the first observed dimensionality and rejects changes.
func (e *OpenAIEmbedder) checkDims(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
	}
	if n == 0 || n != e.dims {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("openai returned a %d-dimension embedding, expected %d", n, e.dims), nil)
	}
	return nil
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName implements Embedder.
func (e *OpenAIEmbedder) ModelName() string { return e.cfg.Model }

// Available lists models to confirm the endpoint answers.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// Close implements Embedder.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
