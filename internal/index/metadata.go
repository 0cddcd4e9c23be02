package index

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/store"
)

// Metadata keys derived from the file. They override caller keys.
const (
	MetaFileName      = "file_name"
	MetaFileExtension = "file_extension"
	MetaTotalChunks   = "total_chunks"
)

// chunkNamespace scopes the name-based chunk UUIDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Aman-CERP/semidx/chunk"))

// ChunkID is the deterministic ID of chunk index of filePath at contentHash.
func ChunkID(filePath, contentHash string, index int) string {
	name := filePath + "\x00" + contentHash + "\x00" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func validateMetadata(md map[string]any) error {
	for k, v := range md {
		if k == "" {
			return errors.New(errors.ErrCodeInvalidMetadata, "metadata key is empty", nil)
		}
		switch x := v.(type) {
		case nil, string, bool, json.Number,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
		case float32:
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return invalidValue(k, v)
			}
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return invalidValue(k, v)
			}
		default:
			return invalidValue(k, v)
		}
	}
	return nil
}

func invalidValue(key string, v any) error {
	return errors.New(errors.ErrCodeInvalidMetadata,
		fmt.Sprintf("metadata %q must be a string, number, bool or null, got %T", key, v), nil).
		WithDetail("key", key)
}

// mergeMetadata copies caller metadata and sets the derived keys.
func mergeMetadata(caller map[string]any, filePath string, total int) map[string]any {
	md := make(map[string]any, len(caller)+3)
	for k, v := range caller {
		md[k] = v
	}
	md[MetaFileName] = filepath.Base(filePath)
	md[MetaFileExtension] = filepath.Ext(filePath)
	md[MetaTotalChunks] = total
	return md
}

func buildChunks(filePath string, texts []string, vectors [][]float32, caller map[string]any,
	fp *store.FileFingerprint, now time.Time) []*store.Chunk {
	chunks := make([]*store.Chunk, len(texts))
	for idx, text := range texts {
		chunks[idx] = &store.Chunk{
			ID:           ChunkID(filePath, fp.ContentHash, idx),
			SourceFile:   filePath,
			Content:      text,
			ChunkIndex:   idx,
			Embedding:    vectors[idx],
			Metadata:     mergeMetadata(caller, filePath, len(texts)),
			IndexedAt:    now,
			ContentHash:  fp.ContentHash,
			FileModified: fp.LastModified,
			FileSize:     fp.FileSize,
		}
	}
	return chunks
}
