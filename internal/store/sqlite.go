package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"github.com/Aman-CERP/semidx/internal/errors"
)

// SQL drivers accepted by NewSQLiteStore.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	source_file   TEXT NOT NULL,
	content       TEXT NOT NULL,
	chunk_index   INTEGER NOT NULL,
	embedding     BLOB NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	indexed_at    INTEGER NOT NULL,
	content_hash  TEXT NOT NULL,
	file_modified INTEGER NOT NULL,
	file_size     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source_file ON chunks(source_file);
CREATE INDEX IF NOT EXISTS idx_chunks_content_hash ON chunks(content_hash);

CREATE TABLE IF NOT EXISTS file_fingerprints (
	file_path     TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	file_modified INTEGER NOT NULL,
	last_checked  INTEGER NOT NULL,
	chunk_count   INTEGER NOT NULL
);
`

// SQLiteStore is the durable ChunkStore backend.
//
// The pool holds a single connection, so writes queue behind each other and
// behind any AllChunks iteration in progress. Every mutation is one
// transaction.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ ChunkStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the index database at path.
// driver is DriverModernc or DriverMattn; empty selects DriverModernc.
func NewSQLiteStore(path, driver string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, errors.ConfigError(fmt.Sprintf("unknown sqlite driver %q", driver), nil)
	}
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidPath, "index database path is empty", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeStorageOpen,
			fmt.Sprintf("create index directory %s", filepath.Dir(path)), err)
	}
	if err := checkIntegrity(driver, path); err != nil {
		logger.Error("chunk_store_corrupted", slog.String("path", path), slog.String("error", err.Error()))
		return nil, errors.New(errors.ErrCodeCorruptIndex, fmt.Sprintf("index database %s is corrupted", path), err).
			WithSuggestion("delete the index database and re-index")
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageOpen, "open index database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeStorageOpen, fmt.Sprintf("apply %q", pragma), err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStorageOpen, "initialize schema", err)
	}

	logger.Debug("chunk_store_opened", slog.String("path", path), slog.String("driver", driver))
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// checkIntegrity runs PRAGMA integrity_check on an existing database file.
func checkIntegrity(driver, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return errors.StorageError("chunk store is closed", nil)
	}
	return nil
}

// ReplaceFile implements ChunkStore.
func (s *SQLiteStore) ReplaceFile(ctx context.Context, filePath string, chunks []*Chunk, fp *FileFingerprint) error {
	dims, err := checkReplace(filePath, chunks, fp)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(errors.ErrCodeTransaction, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dims > 0 {
		var storedBytes int
		err := tx.QueryRowContext(ctx,
			`SELECT length(embedding) FROM chunks WHERE source_file <> ? LIMIT 1`, filePath).Scan(&storedBytes)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return storageErr(errors.ErrCodeStorage, "read stored dimensions", err)
		case storedBytes/float32Size != dims:
			return dimensionMismatch(dims, storedBytes/float32Size)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_file = ?`, filePath); err != nil {
		return storageErr(errors.ErrCodeStorage, "delete previous chunks", err)
	}

	if len(chunks) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_fingerprints WHERE file_path = ?`, filePath); err != nil {
			return storageErr(errors.ErrCodeStorage, "delete fingerprint", err)
		}
		return s.commit(tx, "file_removed", filePath, 0)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_file, content, chunk_index, embedding, metadata,
			indexed_at, content_hash, file_modified, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr(errors.ErrCodeStorage, "prepare chunk insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidMetadata,
				fmt.Sprintf("encode metadata of chunk %d", c.ChunkIndex), err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.SourceFile, c.Content, c.ChunkIndex, EncodeEmbedding(c.Embedding), meta,
			c.IndexedAt.UnixNano(), c.ContentHash, c.FileModified.UnixNano(), c.FileSize,
		); err != nil {
			return storageErr(errors.ErrCodeStorage, fmt.Sprintf("insert chunk %d", c.ChunkIndex), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_fingerprints (file_path, content_hash, file_size, file_modified, last_checked, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			file_size = excluded.file_size,
			file_modified = excluded.file_modified,
			last_checked = excluded.last_checked,
			chunk_count = excluded.chunk_count`,
		fp.FilePath, fp.ContentHash, fp.FileSize, fp.LastModified.UnixNano(), fp.LastChecked.UnixNano(), fp.ChunkCount,
	); err != nil {
		return storageErr(errors.ErrCodeStorage, "upsert fingerprint", err)
	}

	return s.commit(tx, "file_replaced", filePath, len(chunks))
}

func (s *SQLiteStore) commit(tx *sql.Tx, event, filePath string, chunks int) error {
	if err := tx.Commit(); err != nil {
		return storageErr(errors.ErrCodeTransaction, "commit transaction", err)
	}
	s.logger.Debug(event, slog.String("file", filePath), slog.Int("chunks", chunks))
	return nil
}

// RemoveFile implements ChunkStore.
func (s *SQLiteStore) RemoveFile(ctx context.Context, filePath string) error {
	return s.ReplaceFile(ctx, filePath, nil, nil)
}

// Clear implements ChunkStore.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(errors.ErrCodeTransaction, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"chunks", "file_fingerprints"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageErr(errors.ErrCodeStorage, "clear "+table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr(errors.ErrCodeTransaction, "commit transaction", err)
	}
	s.logger.Info("chunk_store_cleared", slog.String("path", s.path))
	return nil
}

// AllChunks implements ChunkStore. The sequence is backed by one SELECT, which
// SQLite answers from a single read snapshot.
func (s *SQLiteStore) AllChunks(ctx context.Context, fileFilters []string) iter.Seq2[*Chunk, error] {
	filters := lowerFilters(fileFilters)
	return func(yield func(*Chunk, error) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if err := s.checkOpen(); err != nil {
			yield(nil, err)
			return
		}

		rows, err := s.db.QueryContext(ctx, `
			SELECT id, source_file, content, chunk_index, embedding, metadata,
				indexed_at, content_hash, file_modified, file_size
			FROM chunks ORDER BY rowid`)
		if err != nil {
			yield(nil, storageErr(errors.ErrCodeStorage, "query chunks", err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			c, err := scanChunk(rows, filters)
			if err != nil {
				yield(nil, err)
				return
			}
			if c == nil {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, storageErr(errors.ErrCodeStorage, "iterate chunks", err))
		}
	}
}

// scanChunk decodes one row, or returns nil when the row fails the filters.
func scanChunk(rows *sql.Rows, filters []string) (*Chunk, error) {
	var (
		c                                 Chunk
		blob                              []byte
		meta                              string
		indexedAt, fileModified, fileSize int64
	)
	if err := rows.Scan(&c.ID, &c.SourceFile, &c.Content, &c.ChunkIndex, &blob, &meta,
		&indexedAt, &c.ContentHash, &fileModified, &fileSize); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptRow, "decode chunk row", err)
	}
	if !matchesFilters(c.SourceFile, filters) {
		return nil, nil
	}

	embedding, err := DecodeEmbedding(blob)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptRow, fmt.Sprintf("decode embedding of chunk %s", c.ID), err)
	}
	metadata, err := decodeMetadata(meta)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptRow, fmt.Sprintf("decode metadata of chunk %s", c.ID), err)
	}

	c.Embedding = embedding
	c.Metadata = metadata
	c.IndexedAt = time.Unix(0, indexedAt)
	c.FileModified = time.Unix(0, fileModified)
	c.FileSize = fileSize
	return &c, nil
}

// ChunkCount implements ChunkStore.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, storageErr(errors.ErrCodeStorage, "count chunks", err)
	}
	return n, nil
}

// IndexedFiles implements ChunkStore.
func (s *SQLiteStore) IndexedFiles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source_file FROM chunks`)
	if err != nil {
		return nil, storageErr(errors.ErrCodeStorage, "list indexed files", err)
	}
	defer func() { _ = rows.Close() }()

	files := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptRow, "decode source file", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(errors.ErrCodeStorage, "list indexed files", err)
	}
	// Go ordering rather than SQLite collation, to match the memory backend.
	sort.Strings(files)
	return files, nil
}

// GetFingerprint implements ChunkStore.
func (s *SQLiteStore) GetFingerprint(ctx context.Context, filePath string) (*FileFingerprint, error) {
	fps, err := s.Fingerprints(ctx, []string{filePath})
	if err != nil {
		return nil, err
	}
	return fps[filePath], nil
}

// Fingerprints implements ChunkStore.
func (s *SQLiteStore) Fingerprints(ctx context.Context, paths []string) (map[string]*FileFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	result := make(map[string]*FileFingerprint)
	if paths != nil && len(paths) == 0 {
		return result, nil
	}

	query := `SELECT file_path, content_hash, file_size, file_modified, last_checked, chunk_count FROM file_fingerprints`
	var args []any
	if paths != nil {
		query += ` WHERE file_path IN (SELECT value FROM json_each(?))`
		list, err := encodePathList(paths)
		if err != nil {
			return nil, errors.ValidationError("encode path list", err)
		}
		args = append(args, list)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(errors.ErrCodeStorage, "query fingerprints", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		fp, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		result[fp.FilePath] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(errors.ErrCodeStorage, "query fingerprints", err)
	}
	return result, nil
}

func scanFingerprint(rows *sql.Rows) (*FileFingerprint, error) {
	var (
		fp                    FileFingerprint
		modified, lastChecked int64
	)
	if err := rows.Scan(&fp.FilePath, &fp.ContentHash, &fp.FileSize, &modified, &lastChecked, &fp.ChunkCount); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptRow, "decode fingerprint row", err)
	}
	if fp.ContentHash == "" || fp.ChunkCount < 1 || fp.FileSize < 0 {
		return nil, errors.New(errors.ErrCodeCorruptRow,
			fmt.Sprintf("fingerprint for %s is invalid (hash=%q chunks=%d size=%d)",
				fp.FilePath, fp.ContentHash, fp.ChunkCount, fp.FileSize), nil)
	}
	fp.LastModified = time.Unix(0, modified)
	fp.LastChecked = time.Unix(0, lastChecked)
	return &fp, nil
}

// Stats implements ChunkStore.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var st Stats
	var blobBytes sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM file_fingerprints),
			(SELECT COUNT(*) FROM chunks),
			(SELECT length(embedding) FROM chunks LIMIT 1)`).Scan(&st.Files, &st.Chunks, &blobBytes)
	if err != nil {
		return nil, storageErr(errors.ErrCodeStorage, "read stats", err)
	}
	if blobBytes.Valid {
		st.Dimensions = int(blobBytes.Int64) / float32Size
	}
	return &st, nil
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func encodePathList(paths []string) (string, error) {
	data, err := json.Marshal(paths)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
