package storage

import (
	"context"
	"errors"
	"time"

	"github.com/codenav/codenav/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// RepoState tracks the lifecycle of a repository's index.
type RepoState string

const (
	StateEmpty    RepoState = "EMPTY"
	StateBuilding RepoState = "BUILDING"
	StateReady    RepoState = "READY"
)

// Repo is an indexed repository root.
type Repo struct {
	ID             int64
	RootPath       string
	State          RepoState
	EmbeddingModel string
	LastIndexedAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// File is a tracked source file. ContentHash is the manifest entry the
// index manager compares to decide whether re-chunking is needed.
type File struct {
	ID          int64
	RepoID      int64
	Path        string // relative to the repository root
	Language    types.Language
	ContentHash string
	ChunkCount  int
	UpdatedAt   time.Time
}

// Stats summarizes an index for status reporting.
type Stats struct {
	Repo            *Repo
	FilesCount      int
	ChunksCount     int
	EmbeddingsCount int
	IndexSizeMB     float64
}

// Storage persists repositories, file manifests, chunks, and their
// vectors.
type Storage interface {
	// Repo operations
	UpsertRepo(ctx context.Context, repo *Repo) error
	GetRepo(ctx context.Context, rootPath string) (*Repo, error)
	SetRepoState(ctx context.Context, repoID int64, state RepoState) error

	// File manifest operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, repoID int64, path string) (*File, error)
	ListFiles(ctx context.Context, repoID int64) ([]*File, error)
	DeleteFile(ctx context.Context, repoID int64, path string) error

	// Chunk operations. ReplaceChunks removes the file's previous chunks
	// (and their embeddings, via cascade) before inserting the new set.
	ReplaceChunks(ctx context.Context, fileID int64, chunks []types.Chunk) error
	GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error)
	CountChunks(ctx context.Context, repoID int64) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, chunkID string, vector []float32, model string) error
	GetEmbedding(ctx context.Context, chunkID string) ([]float32, error)

	// Search operations
	SearchVector(ctx context.Context, repoID int64, vector []float32, limit int, filters *types.SearchFilters) ([]types.ScoredChunk, error)
	SearchText(ctx context.Context, repoID int64, query string, limit int) ([]types.ScoredChunk, error)

	// DeleteRepoData removes all files, chunks, and embeddings for a repo
	// while keeping the repo row. Used by forced reindexing.
	DeleteRepoData(ctx context.Context, repoID int64) error

	GetStats(ctx context.Context, repoID int64) (*Stats, error)

	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction over the same operations. Readers outside the
// transaction see the previous committed state until Commit.
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}
