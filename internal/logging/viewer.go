package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// maxLineSize bounds a single log line read by the viewer.
const maxLineSize = 1024 * 1024

// followInterval is how often Follow polls the file for new lines.
var followInterval = 100 * time.Millisecond

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	Raw   string
	// IsValid is false when the line was not JSON; only Raw is set then.
	IsValid bool
}

// ViewerConfig filters the entries a Viewer returns.
type ViewerConfig struct {
	// Level drops entries below it. Empty keeps everything.
	Level string
	// Pattern keeps only lines whose raw text matches.
	Pattern *regexp.Regexp
}

// Viewer reads and filters the JSON lines written by Setup.
type Viewer struct {
	cfg ViewerConfig
}

// NewViewer creates a Viewer.
func NewViewer(cfg ViewerConfig) *Viewer {
	return &Viewer{cfg: cfg}
}

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOError("failed to open log file", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.IOError("failed to read log file", err).WithDetail("path", path)
	}

	var entries []LogEntry
	for _, line := range ring {
		if e := ParseLine(line); v.Matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Follow sends entries appended to path after the call until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.IOError("failed to open log file", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return errors.IOError("failed to seek log file", err).WithDetail("path", path)
	}

	r := bufio.NewReader(f)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for {
			chunk, err := r.ReadString('\n')
			partial.WriteString(chunk)
			if err != nil {
				// Keep an unterminated line until the writer finishes it.
				break
			}
			line := strings.TrimSuffix(partial.String(), "\n")
			partial.Reset()
			if line == "" {
				continue
			}
			if e := ParseLine(line); v.Matches(e) {
				select {
				case entries <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Matches reports whether e passes the level and pattern filters.
func (v *Viewer) Matches(e LogEntry) bool {
	if v.cfg.Level != "" && ParseLevel(e.Level) < ParseLevel(v.cfg.Level) {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(e.Raw) {
		return false
	}
	return true
}

// ParseLine parses a JSON log line. Lines that are not JSON come back with
// IsValid false and level info, so level filters keep them.
func ParseLine(line string) LogEntry {
	e := LogEntry{Raw: line, Level: slog.LevelInfo.String()}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return e
	}
	e.IsValid = true

	if t, ok := data[slog.TimeKey].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			e.Time = parsed
		}
	}
	if l, ok := data[slog.LevelKey].(string); ok {
		e.Level = l
	}
	if m, ok := data[slog.MessageKey].(string); ok {
		e.Msg = m
	}

	e.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey:
		default:
			e.Attrs[k] = val
		}
	}
	return e
}
