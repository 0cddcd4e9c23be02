package ui

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/logging"
	"github.com/Aman-CERP/semidx/internal/search"
)

// MaxSnippetLines bounds the lines of chunk text printed per result.
const MaxSnippetLines = 6

// Renderer writes human-readable views of index operations.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// NewRenderer creates a Renderer for out with styles chosen by UseColor.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, styles: StylesFor(out)}
}

// NewRendererWithStyles creates a Renderer with explicit styles.
func NewRendererWithStyles(out io.Writer, styles Styles) *Renderer {
	return &Renderer{out: out, styles: styles}
}

// StatusView is the data shown by `semidx status`.
type StatusView struct {
	Root       string
	IndexPath  string
	Backend    string
	Model      string
	Files      int
	Chunks     int
	Dimensions int
}

// Results prints ranked search results.
func (r *Renderer) Results(query string, results []*search.SearchResult) {
	if len(results) == 0 {
		r.printf("%s\n", r.styles.Dim.Render(fmt.Sprintf("No results for %q", query)))
		return
	}
	r.printf("%s\n\n", r.styles.Header.Render(fmt.Sprintf("%d result%s for %q", len(results), plural(len(results)), query)))
	for i, res := range results {
		r.printf("%s %s %s\n",
			r.styles.Label.Render(fmt.Sprintf("%2d.", i+1)),
			r.styles.Path.Render(fmt.Sprintf("%s#%d", res.Chunk.SourceFile, res.Chunk.ChunkIndex)),
			r.styles.Score.Render(fmt.Sprintf("%.3f", res.Similarity)))
		r.printf("%s\n\n", r.styles.Snippet.Render(snippet(res.Chunk.Content, MaxSnippetLines)))
	}
}

// Status prints index statistics.
func (r *Renderer) Status(v StatusView) {
	r.printf("%s\n", r.styles.Header.Render("semidx index"))
	rows := [][2]string{
		{"Root", v.Root},
		{"Index", v.IndexPath},
		{"Backend", v.Backend},
		{"Model", v.Model},
		{"Files", fmt.Sprint(v.Files)},
		{"Chunks", fmt.Sprint(v.Chunks)},
		{"Dimensions", fmt.Sprint(v.Dimensions)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		r.printf("  %s %s\n", r.styles.Label.Render(fmt.Sprintf("%-11s", row[0]+":")), row[1])
	}
}

// Sync prints a directory sync summary and its failures.
func (r *Renderer) Sync(res *index.SyncResult) {
	summary := fmt.Sprintf("Scanned %d files: %d indexed, %d unchanged, %d removed (%d chunks) in %s",
		res.Scanned, res.Indexed, res.Unchanged, res.Removed, res.Chunks, res.Duration.Round(time.Millisecond))
	if len(res.Failed) == 0 {
		r.printf("%s\n", r.styles.Success.Render(summary))
		return
	}
	r.printf("%s\n", r.styles.Warning.Render(summary))
	r.printf("%s\n", r.styles.Error.Render(fmt.Sprintf("%d file%s failed:", len(res.Failed), plural(len(res.Failed)))))
	for _, f := range res.Failed {
		r.printf("  %s %s\n", r.styles.Path.Render(f.Path), r.styles.Dim.Render(f.Err.Error()))
	}
}

// Files prints one path per line.
func (r *Renderer) Files(files []string) {
	for _, f := range files {
		r.printf("%s\n", f)
	}
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func snippet(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "...")
	}
	return strings.Join(lines, "\n")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// LogEntry prints one log line as "time LEVEL msg key=value...". Lines that
// were not JSON are printed as is.
func (r *Renderer) LogEntry(e logging.LogEntry) {
	if !e.IsValid {
		r.printf("%s\n", e.Raw)
		return
	}
	level := strings.ToUpper(e.Level)
	if len(level) > 5 {
		level = level[:5]
	}
	level = fmt.Sprintf("%-5s", level)
	switch logging.ParseLevel(e.Level) {
	case slog.LevelDebug:
		level = r.styles.Dim.Render(level)
	case slog.LevelWarn:
		level = r.styles.Warning.Render(level)
	case slog.LevelError:
		level = r.styles.Error.Render(level)
	default:
		level = r.styles.Success.Render(level)
	}

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var attrs strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&attrs, " %s=%v", r.styles.Label.Render(k), e.Attrs[k])
	}

	r.printf("%s %s %s%s\n", r.styles.Dim.Render(e.Time.Local().Format("15:04:05.000")), level, e.Msg, attrs.String())
}
