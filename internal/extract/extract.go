// Package extract turns files into the text that gets chunked and embedded.
// Only plain UTF-8 text is supported; richer formats plug in behind the
// Extractor interface.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// DefaultMaxSize is the largest file PlainText will read (10MB).
const DefaultMaxSize = 10 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor reads the indexable text of a file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// PlainText extracts UTF-8 text files. Files containing a NUL byte are
// rejected as binary; invalid UTF-8 sequences become U+FFFD.
type PlainText struct {
	// MaxSize bounds the file size in bytes (0 = DefaultMaxSize).
	MaxSize int64
}

var _ Extractor = PlainText{}

// Extract implements Extractor.
func (p PlainText) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", openErr(path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return "", errors.IOError(fmt.Sprintf("read %s", path), err).WithDetail("path", path)
	}
	if int64(len(data)) > maxSize {
		return "", errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s is larger than %d bytes", path, maxSize), nil).WithDetail("path", path)
	}
	return Text(path, data)
}

// Text validates already-read bytes the way PlainText does.
func Text(path string, data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", errors.New(errors.ErrCodeBinaryContent,
			fmt.Sprintf("%s looks like a binary file", path), nil).WithDetail("path", path)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

func openErr(path string, err error) error {
	code := errors.ErrCodeFileRead
	switch {
	case os.IsNotExist(err):
		code = errors.ErrCodeFileNotFound
	case os.IsPermission(err):
		code = errors.ErrCodeFilePermission
	}
	return errors.New(code, fmt.Sprintf("cannot open %s", path), err).WithDetail("path", path)
}
