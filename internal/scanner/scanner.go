package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/gitignore"
)

// resultBuffer is the channel capacity of Scan.
const resultBuffer = 64

// Scanner discovers indexable files in a directory. Symlinks are never
// followed.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// ValidatePatterns reports the first malformed glob.
func ValidatePatterns(patterns ...[]string) error {
	for _, list := range patterns {
		for _, p := range list {
			if !doublestar.ValidatePattern(p) {
				return errors.ValidationError(fmt.Sprintf("invalid glob pattern %q", p), nil)
			}
		}
	}
	return nil
}

// Scan streams the files under opts.RootDir. The channel is closed when
// the walk finishes or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	if err := ValidatePatterns(opts.IncludePatterns, opts.ExcludePatterns); err != nil {
		return nil, err
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("resolve %s", rootDir), err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		code := errors.ErrCodeFileRead
		if os.IsNotExist(err) {
			code = errors.ErrCodeFileNotFound
		}
		return nil, errors.New(code, fmt.Sprintf("cannot scan %s", absRoot), err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("%s is not a directory", absRoot), nil)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, resultBuffer)
	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, maxFileSize, results)
	}()
	return results, nil
}

// Collect runs Scan and returns every file sorted by path.
func (s *Scanner) Collect(ctx context.Context, opts *ScanOptions) ([]*FileInfo, error) {
	results, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	var files []*FileInfo
	var scanErr error
	for r := range results {
		if r.Error != nil {
			if scanErr == nil {
				scanErr = r.Error
			}
			continue
		}
		files = append(files, r.File)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	// prefix locates absRoot below the match root, "" when they are equal.
	prefix := matchPrefix(opts.MatchRoot, absRoot)
	var ignore *gitignore.Matcher
	if opts.RespectGitignore {
		var err error
		if ignore, err = ancestorIgnores(opts.MatchRoot, prefix); err != nil {
			results <- ScanResult{Error: err}
			return
		}
	}

	err := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // unreadable entries are skipped
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		if rel == "." {
			if ignore != nil {
				_ = ignore.LoadDir(p, prefix)
			}
			return nil
		}
		rel = filepath.ToSlash(rel)
		mrel := path.Join(prefix, rel)

		if d.IsDir() {
			if excludedDir(mrel, opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			if ignore != nil {
				if ignore.Match(mrel, true) {
					return filepath.SkipDir
				}
				_ = ignore.LoadDir(p, mrel)
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if excludedFile(mrel, opts.ExcludePatterns) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAny(mrel, opts.IncludePatterns) {
			return nil
		}
		if ignore != nil && ignore.Match(mrel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}
		if isBinaryFile(p) {
			return nil
		}

		select {
		case results <- ScanResult{File: &FileInfo{
			Path:    rel,
			AbsPath: p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && ctx.Err() == nil {
		select {
		case results <- ScanResult{Error: errors.New(errors.ErrCodeFileRead, "directory walk failed", err)}:
		case <-ctx.Done():
		}
	}
}

// matchPrefix returns absRoot relative to matchRoot, slash-separated, or ""
// when matchRoot is unset or does not contain absRoot.
func matchPrefix(matchRoot, absRoot string) string {
	if matchRoot == "" {
		return ""
	}
	absMatch, err := filepath.Abs(matchRoot)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absMatch, absRoot)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// ancestorIgnores loads the .gitignore files of matchRoot and of every
// directory between it and the scan root. The scan root's own file is read
// by the walk.
func ancestorIgnores(matchRoot, prefix string) (*gitignore.Matcher, error) {
	m := gitignore.New()
	if prefix == "" {
		return m, nil
	}
	dir, base := matchRoot, ""
	for _, part := range strings.Split(prefix, "/") {
		if err := m.LoadDir(dir, base); err != nil {
			return nil, err
		}
		dir = filepath.Join(dir, part)
		base = path.Join(base, part)
	}
	return m, nil
}

// LoadGitignore reads every .gitignore under root into one matcher, skipping
// excluded and ignored directories.
func LoadGitignore(ctx context.Context, root string, exclude []string) (*gitignore.Matcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("resolve %s", root), err)
	}
	m := gitignore.New()
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		} else if excludedDir(rel, exclude) || m.Match(rel, true) {
			return filepath.SkipDir
		}
		return m.LoadDir(p, rel)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return m, nil
}

func excludedDir(rel string, custom []string) bool {
	// "dir/**" must also match the directory itself.
	probe := rel + "/_"
	for _, list := range [][]string{defaultExcludeDirs, custom} {
		for _, pattern := range list {
			if match(pattern, rel) || match(pattern, probe) {
				return true
			}
		}
	}
	return false
}

func excludedFile(rel string, custom []string) bool {
	return matchesAny(rel, sensitiveFilePatterns) || matchesAny(rel, custom)
}

func matchesAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if match(pattern, rel) {
			return true
		}
	}
	return false
}

// match applies pattern to the relative path. A pattern without a slash
// matches the base name at any depth, as in .gitignore.
func match(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, path.Base(rel))
		return ok
	}
	return false
}

// isBinaryFile checks the first 512 bytes for a NUL.
func isBinaryFile(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// ExcludedDir reports whether a directory (relative, slash-separated) is
// skipped by the default or custom exclusions.
func ExcludedDir(rel string, exclude []string) bool {
	return excludedDir(rel, exclude)
}

// Matches reports whether a file (relative, slash-separated) would be
// returned by a scan with these patterns, ignoring size and content checks.
// Every parent directory is checked against the exclusions as well.
func Matches(rel string, include, exclude []string) bool {
	dir := path.Dir(rel)
	for dir != "." && dir != "/" && dir != "" {
		if excludedDir(dir, exclude) {
			return false
		}
		dir = path.Dir(dir)
	}
	if excludedFile(rel, exclude) {
		return false
	}
	return len(include) == 0 || matchesAny(rel, include)
}
