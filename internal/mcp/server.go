package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/index"
	"github.com/Aman-CERP/semidx/internal/search"
	"github.com/Aman-CERP/semidx/internal/store"
	"github.com/Aman-CERP/semidx/internal/telemetry"
	"github.com/Aman-CERP/semidx/pkg/version"
)

// Options configures a Server.
type Options struct {
	// RootPath resolves relative paths and bounds index_document.
	RootPath string

	// DefaultTopK applies when a search omits top_k.
	DefaultTopK int

	// DefaultMinSimilarity applies when a search omits min_similarity.
	DefaultMinSimilarity float64

	// WriteLock, when set, is held around every index_document call so
	// the server cooperates with other writers of the same database.
	WriteLock *store.WriteLock

	// Metrics records every search; a fresh recorder is used when nil.
	Metrics *telemetry.QueryMetrics

	Logger *slog.Logger
}

// Server bridges MCP clients with the semantic index.
type Server struct {
	mcp     *mcp.Server
	indexer *index.Indexer
	opts    Options
	logger  *slog.Logger

	// writeMu serializes index_document; WriteLock is not goroutine-safe.
	writeMu sync.Mutex
}

// NewServer creates a new MCP server.
func NewServer(ix *index.Indexer, opts Options) (*Server, error) {
	if ix == nil {
		return nil, NewInvalidParamsError("indexer is required")
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = search.DefaultTopK
	}
	if opts.RootPath != "" {
		abs, err := filepath.Abs(opts.RootPath)
		if err != nil {
			return nil, NewInvalidParamsError("invalid root path: " + err.Error())
		}
		opts.RootPath = abs
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewQueryMetrics(telemetry.DefaultConfig())
	}

	s := &Server{
		indexer: ix,
		opts:    opts,
		logger:  logger,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "semidx",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over indexed documents. Returns the chunks most similar to the query by cosine similarity, with their source file and metadata.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_document",
		Description: "Index or refresh one file. Unchanged files are skipped; an emptied file is removed from the index.",
	}, s.handleIndexDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report how many files and chunks are indexed and which embedding model produced them.",
	}, s.handleIndexStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 3))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}
	q := search.Query{
		Text:        input.Query,
		TopK:        s.opts.DefaultTopK,
		FileFilters: input.Files,
	}
	if input.TopK != 0 {
		q.TopK = input.TopK
	}
	q.MinSimilarity = s.opts.DefaultMinSimilarity
	if input.MinSimilarity != nil {
		q.MinSimilarity = *input.MinSimilarity
	}

	start := time.Now()
	requestID := generateRequestID()
	results, err := s.indexer.Search(ctx, q)
	if err != nil {
		s.logger.Warn("mcp_search_failed", append([]any{slog.String("request_id", requestID)}, errorAttrs(err)...)...)
		return nil, SearchOutput{}, MapError(err)
	}
	elapsed := time.Since(start)
	s.opts.Metrics.Record(telemetry.QueryEvent{Query: input.Query, ResultCount: len(results), Latency: elapsed})
	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Int("result_count", len(results)),
		slog.Duration("duration", elapsed))

	return textResult(FormatSearchResults(input.Query, results)), NewSearchOutput(results), nil
}

func (s *Server) handleIndexDocument(ctx context.Context, _ *mcp.CallToolRequest, input IndexDocumentInput) (
	*mcp.CallToolResult,
	IndexDocumentOutput,
	error,
) {
	path, err := s.resolvePath(input.Path)
	if err != nil {
		return nil, IndexDocumentOutput{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.opts.WriteLock != nil {
		if err := s.opts.WriteLock.Lock(ctx); err != nil {
			return nil, IndexDocumentOutput{}, MapError(err)
		}
		defer func() { _ = s.opts.WriteLock.Unlock() }()
	}

	res, err := s.indexer.IndexFile(ctx, path, input.Metadata)
	if err != nil {
		s.logger.Warn("mcp_index_document_failed", append([]any{slog.String("path", path)}, errorAttrs(err)...)...)
		return nil, IndexDocumentOutput{}, MapError(err)
	}
	out := IndexDocumentOutput{Path: res.Path, Status: string(res.Status), Chunks: res.Chunks}
	return textResult(FormatIndexResult(out)), out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	out := IndexStatusOutput{
		RootPath:   s.opts.RootPath,
		FileCount:  stats.Files,
		ChunkCount: stats.Chunks,
		Dimensions: stats.Dimensions,
		Model:      s.indexer.EmbedderModel(),
	}
	if q := s.opts.Metrics.Snapshot(); q.TotalQueries > 0 {
		out.Queries = &q
	}
	return textResult(FormatStatus(out)), out, nil
}

// resolvePath makes p absolute against the root and keeps it inside the
// root when one is configured.
func (s *Server) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", NewInvalidParamsError("path parameter is required")
	}
	if !filepath.IsAbs(p) {
		if s.opts.RootPath == "" {
			return "", NewInvalidParamsError("path must be absolute when no project root is set")
		}
		p = filepath.Join(s.opts.RootPath, p)
	}
	p = filepath.Clean(p)
	if root := s.opts.RootPath; root != "" {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", NewInvalidParamsError("path is outside the project root")
		}
	}
	return p, nil
}

// Serve runs the server over stdio until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("root", s.opts.RootPath))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// errorAttrs flattens err into sorted slog attributes.
func errorAttrs(err error) []any {
	fields := errors.FormatForLog(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
