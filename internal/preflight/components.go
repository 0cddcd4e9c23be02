package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/store"
)

// probeTimeout bounds the embedder probe.
const probeTimeout = 30 * time.Second

// CheckEmbedder builds the configured embedder and embeds a probe text. It
// returns the dimensions produced, or 0 when the check failed.
func (c *Checker) CheckEmbedder(ctx context.Context, cfg embed.Config) (CheckResult, int) {
	result := CheckResult{Name: "embedder", Required: true}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	e, err := c.newEmbedder(ctx, cfg)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s unavailable: %v", cfg.Provider, err)
		return result, 0
	}
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(ctx, "semidx doctor probe")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s failed to embed: %v", e.ModelName(), err)
		return result, 0
	}
	if want := e.Dimensions(); want > 0 && len(vec) != want {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s returned %d dimensions, configured %d", e.ModelName(), len(vec), want)
		return result, 0
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d dimensions)", e.ModelName(), len(vec))
	return result, len(vec)
}

// CheckIndex opens the index and compares its vectors with the embedder's
// dimensions. embedDims of 0 skips the comparison.
func (c *Checker) CheckIndex(ctx context.Context, t Target, embedDims int) CheckResult {
	result := CheckResult{Name: "index", Details: t.IndexPath}

	if t.IndexPath != "" {
		if _, err := os.Stat(t.IndexPath); os.IsNotExist(err) {
			result.Status = StatusWarn
			result.Message = "not built yet (run 'semidx index')"
			return result
		}
	}

	s, err := store.Open(t.Store)
	if err != nil {
		result.Status = StatusFail
		result.Required = true
		result.Message = fmt.Sprintf("cannot open: %v", err)
		return result
	}
	defer func() { _ = s.Close() }()

	stats, err := s.Stats(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Required = true
		result.Message = fmt.Sprintf("cannot read: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d files, %d chunks", stats.Files, stats.Chunks)
	if embedDims > 0 && stats.Dimensions > 0 && stats.Dimensions != embedDims {
		result.Status = StatusFail
		result.Required = true
		result.Message = fmt.Sprintf("stored vectors have %d dimensions, embedder produces %d", stats.Dimensions, embedDims)
		result.Details = "Run 'semidx index --force' to rebuild with the current model"
		return result
	}
	result.Status = StatusPass
	return result
}
