package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/semidx/internal/search"
)

// maxSnippet bounds the chunk text shown per markdown result.
const maxSnippet = 800

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []*search.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s (chunk %d)\n\n", i+1, r.Chunk.SourceFile, r.Chunk.ChunkIndex)
		fmt.Fprintf(&sb, "**Similarity:** %.3f\n\n", r.Similarity)
		sb.WriteString("```\n")
		sb.WriteString(truncate(r.Chunk.Content, maxSnippet))
		sb.WriteString("\n```\n\n")
	}
	return sb.String()
}

// FormatIndexResult formats an index_document outcome.
func FormatIndexResult(out IndexDocumentOutput) string {
	switch out.Status {
	case "unchanged":
		return fmt.Sprintf("%s is unchanged (%d chunks).", out.Path, out.Chunks)
	case "removed":
		return fmt.Sprintf("%s has no text and was removed from the index.", out.Path)
	default:
		return fmt.Sprintf("Indexed %s into %d chunks.", out.Path, out.Chunks)
	}
}

// FormatStatus formats index_status as markdown.
func FormatStatus(out IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Index Status\n\n")
	if out.RootPath != "" {
		fmt.Fprintf(&sb, "- **Root:** %s\n", out.RootPath)
	}
	fmt.Fprintf(&sb, "- **Files:** %d\n", out.FileCount)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", out.ChunkCount)
	fmt.Fprintf(&sb, "- **Dimensions:** %d\n", out.Dimensions)
	fmt.Fprintf(&sb, "- **Model:** %s\n", out.Model)
	if q := out.Queries; q != nil {
		fmt.Fprintf(&sb, "- **Searches:** %d (%d with no results, %d repeated)\n",
			q.TotalQueries, q.ZeroResultCount, q.ExactRepeatCount)
		if len(q.TopTerms) > 0 {
			terms := make([]string, len(q.TopTerms))
			for i, tc := range q.TopTerms {
				terms[i] = fmt.Sprintf("%s (%d)", tc.Term, tc.Count)
			}
			fmt.Fprintf(&sb, "- **Top terms:** %s\n", strings.Join(terms, ", "))
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
