package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codenav/codenav/internal/chunker"
	"github.com/codenav/codenav/internal/config"
	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/index"
	"github.com/codenav/codenav/internal/searcher"
	"github.com/codenav/codenav/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codenav"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	manager  *index.Manager
	searcher *searcher.Searcher
	log      *slog.Logger
}

// NewServer creates a new MCP server instance from runtime configuration.
func NewServer(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(cfg.VectorStorePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	store, err := storage.New(filepath.Join(cfg.VectorStorePath, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embed, err := embedder.FromConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chunk, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := newServer(store, index.New(store, embed, chunk, log), searcher.New(store, embed), log)
	return s, nil
}

// newServer wires pre-built dependencies, mainly for tests.
func newServer(store storage.Storage, manager *index.Manager, search *searcher.Searcher, log *slog.Logger) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		manager:  manager,
		searcher: search,
		log:      log,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.log.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
