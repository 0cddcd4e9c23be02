package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// checkReplace verifies the chunk set handed to ReplaceFile and returns its
// embedding dimensionality (0 for an empty set). ChunkCount on fp is
// overwritten with the real count.
func checkReplace(filePath string, chunks []*Chunk, fp *FileFingerprint) (int, error) {
	if filePath == "" {
		return 0, errors.New(errors.ErrCodeInvalidPath, "file path is empty", nil)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if fp == nil {
		return 0, errors.ValidationError(fmt.Sprintf("fingerprint missing for %s", filePath), nil)
	}
	if fp.FilePath != filePath {
		return 0, errors.ValidationError(
			fmt.Sprintf("fingerprint path %q does not match %q", fp.FilePath, filePath), nil)
	}

	dims := len(chunks[0].Embedding)
	if dims == 0 {
		return 0, errors.New(errors.ErrCodeDimensionMismatch, "chunk 0 has an empty embedding", nil)
	}
	for i, c := range chunks {
		if c == nil {
			return 0, errors.ValidationError(fmt.Sprintf("chunk %d is nil", i), nil)
		}
		if c.SourceFile != filePath {
			return 0, errors.ValidationError(
				fmt.Sprintf("chunk %d belongs to %q, not %q", i, c.SourceFile, filePath), nil)
		}
		if c.ChunkIndex != i {
			return 0, errors.ValidationError(
				fmt.Sprintf("chunk indexes must be contiguous from 0: position %d has index %d", i, c.ChunkIndex), nil)
		}
		if c.ID == "" {
			return 0, errors.ValidationError(fmt.Sprintf("chunk %d has no id", i), nil)
		}
		if len(c.Embedding) != dims {
			return 0, errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("chunk %d has %d dimensions, chunk 0 has %d", i, len(c.Embedding), dims), nil)
		}
	}
	fp.ChunkCount = len(chunks)
	return dims, nil
}

func dimensionMismatch(got, stored int) error {
	return errors.New(errors.ErrCodeDimensionMismatch,
		fmt.Sprintf("embeddings have %d dimensions but the index holds %d", got, stored), nil).
		WithSuggestion("clear the index before switching embedding models")
}

// storageErr wraps err as a StorageError unless it is a cancellation, an
// IndexError already, or nil.
func storageErr(code, message string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.New(code, message, err)
}
