// Package scanner discovers indexable files under a directory tree.
// Include and exclude rules are doublestar globs matched against paths
// relative to the root, using forward slashes.
package scanner

import "time"

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path    string // Relative to the scan root, slash-separated
	AbsPath string
	Size    int64
	ModTime time.Time
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	RootDir string

	// IncludePatterns restricts results to matching files (empty = all).
	IncludePatterns []string

	// ExcludePatterns skip matching files and directories.
	ExcludePatterns []string

	// MaxFileSize skips larger files (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// MatchRoot is the directory patterns and .gitignore rules are relative
	// to. It must contain RootDir; empty means RootDir.
	MatchRoot string

	// RespectGitignore skips paths ignored by .gitignore files found in
	// MatchRoot and below.
	RespectGitignore bool
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// Directories never descended into.
var defaultExcludeDirs = []string{
	"**/.git/**",
	"**/.semidx/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.ssh/**",
	"**/.aws/**",
}

// Sensitive file patterns that are never indexed.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
	// Project config and its backups may carry an embeddings API key.
	".semidx.yaml*",
}
