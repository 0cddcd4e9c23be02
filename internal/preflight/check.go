// Package preflight runs the environment checks behind `semidx doctor`.
package preflight

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the project being checked.
type Target struct {
	Root string
	// IndexPath is the SQLite file; empty for the memory backend.
	IndexPath string
	Embed     embed.Config
	Store     store.Options
}

// Checker performs preflight validation checks.
type Checker struct {
	minDiskSpace      uint64
	minFileDescriptor uint64
	newEmbedder       func(context.Context, embed.Config) (embed.Embedder, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithMinDiskSpace overrides MinDiskSpaceBytes.
func WithMinDiskSpace(n uint64) Option {
	return func(c *Checker) { c.minDiskSpace = n }
}

// WithMinFileDescriptors overrides MinFileDescriptors.
func WithMinFileDescriptors(n uint64) Option {
	return func(c *Checker) { c.minFileDescriptor = n }
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		minDiskSpace:      MinDiskSpaceBytes,
		minFileDescriptor: MinFileDescriptors,
		newEmbedder:       embed.NewEmbedder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	dataDir := t.Root
	if t.IndexPath != "" {
		dataDir = parentDir(t.IndexPath)
	}

	results := []CheckResult{
		c.CheckDiskSpace(dataDir),
		c.CheckWritePermissions(dataDir),
		c.CheckFileDescriptors(),
	}
	embedder, dims := c.CheckEmbedder(ctx, t.Embed)
	results = append(results, embedder, c.CheckIndex(ctx, t, dims))
	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "failed", "ready_with_warnings" or "ready".
func SummaryStatus(results []CheckResult) string {
	warnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warnings = true
		}
	}
	if warnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes one line per check followed by the summary.
func PrintResults(w io.Writer, results []CheckResult, verbose bool) {
	_, _ = fmt.Fprintln(w, "semidx system check")
	_, _ = fmt.Fprintln(w)

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))

	var failures []string
	for _, r := range results {
		if r.IsCritical() {
			failures = append(failures, r.Name+": "+r.Message)
		}
	}
	if len(failures) > 0 {
		_, _ = fmt.Fprintf(w, "\n%d error(s):\n", len(failures))
		for _, f := range failures {
			_, _ = fmt.Fprintf(w, "  - %s\n", f)
		}
	}
}
