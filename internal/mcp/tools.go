package mcp

import (
	"github.com/Aman-CERP/semidx/internal/search"
	"github.com/Aman-CERP/semidx/internal/telemetry"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"natural language query to match against indexed chunks"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of results, default from configuration"`
	MinSimilarity *float64 `json:"min_similarity,omitempty" jsonschema:"drop results with cosine similarity below this value (-1 to 1)"`
	Files         []string `json:"files,omitempty" jsonschema:"only search files whose path contains one of these substrings (case-insensitive)"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked results, most similar first"`
}

// NewSearchOutput converts ranked results to the tool output schema.
func NewSearchOutput(results []*search.SearchResult) SearchOutput {
	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			FilePath:   r.Chunk.SourceFile,
			ChunkIndex: r.Chunk.ChunkIndex,
			Content:    r.Chunk.Content,
			Similarity: r.Similarity,
			Metadata:   r.Chunk.Metadata,
		})
	}
	return out
}

// SearchResultOutput is one ranked chunk.
type SearchResultOutput struct {
	FilePath   string         `json:"file_path" jsonschema:"source file of the chunk"`
	ChunkIndex int            `json:"chunk_index" jsonschema:"0-based position of the chunk within its file"`
	Content    string         `json:"content" jsonschema:"chunk text"`
	Similarity float64        `json:"similarity" jsonschema:"cosine similarity to the query, -1 to 1"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"chunk metadata"`
}

// IndexDocumentInput defines the input schema for the index_document tool.
type IndexDocumentInput struct {
	Path     string         `json:"path" jsonschema:"file to index, absolute or relative to the project root"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"string, number or boolean values stored with every chunk"`
}

// IndexDocumentOutput reports what index_document did.
type IndexDocumentOutput struct {
	Path   string `json:"path"`
	Status string `json:"status" jsonschema:"indexed, unchanged or removed"`
	Chunks int    `json:"chunks"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	RootPath   string `json:"root_path"`
	FileCount  int    `json:"file_count"`
	ChunkCount int    `json:"chunk_count"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`

	// Queries summarizes searches served since the server started.
	Queries *telemetry.Snapshot `json:"queries,omitempty"`
}
