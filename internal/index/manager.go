package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/scanner"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/pkg/types"
)

// ErrIndexBusy is returned when the repository is already being indexed.
var ErrIndexBusy = errors.New("repository is already being indexed")

// Chunker splits a source file into embeddable chunks.
type Chunker interface {
	Chunk(file types.SourceFile) ([]types.Chunk, error)
}

// Manager coordinates the indexing pipeline: scan -> chunk -> embed ->
// commit.
type Manager struct {
	store   storage.Storage
	embed   embedder.Embedder
	chunk   Chunker
	scan    *scanner.Scanner
	log     *slog.Logger
	workers int

	mu    sync.Mutex
	locks map[string]*repoLock
}

// Options adjust a single indexing run.
type Options struct {
	// Force discards the existing index and rebuilds from scratch.
	Force bool
	// IgnorePatterns supplement the scanner's defaults.
	IgnorePatterns []string
	// Workers caps embedding concurrency; zero means NumCPU.
	Workers int
}

// Result summarizes an indexing run.
type Result struct {
	RepoID        int64
	FilesScanned  int
	FilesIndexed  int
	FilesSkipped  int
	FilesRemoved  int
	ChunksCreated int
	Warnings      []types.ScanWarning
	Duration      time.Duration
}

// New creates an index manager.
func New(store storage.Storage, embed embedder.Embedder, chunk Chunker, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:   store,
		embed:   embed,
		chunk:   chunk,
		scan:    scanner.New(log),
		log:     log,
		workers: runtime.NumCPU(),
		locks:   make(map[string]*repoLock),
	}
}

func (m *Manager) lockFor(root string) *repoLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[root]
	if !ok {
		l = &repoLock{}
		m.locks[root] = l
	}
	return l
}

// pendingFile is a changed file with its new chunks, awaiting embedding
// and commit.
type pendingFile struct {
	file    types.SourceFile
	chunks  []types.Chunk
	vectors [][]float32
}

// IndexRepository builds or refreshes the index for a repository root.
// Unchanged files (same content hash) are skipped entirely unless Force
// is set. All writes, including the purge on a force rebuild, land in one
// transaction, so searches during the run see the previous index until
// the new one is committed.
func (m *Manager) IndexRepository(ctx context.Context, root string, opts Options) (*Result, error) {
	lock := m.lockFor(root)
	if !lock.tryAcquire() {
		return nil, ErrIndexBusy
	}
	defer lock.release()

	start := time.Now()
	workers := opts.Workers
	if workers <= 0 {
		workers = m.workers
	}

	repo := &storage.Repo{
		RootPath:       root,
		State:          storage.StateBuilding,
		EmbeddingModel: m.embed.Model(),
	}
	prior, err := m.store.GetRepo(ctx, root)
	if err == nil {
		repo.LastIndexedAt = prior.LastIndexedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err := m.store.UpsertRepo(ctx, repo); err != nil {
		return nil, err
	}

	restoreState := storage.StateEmpty
	if prior != nil && prior.State == storage.StateReady && !opts.Force {
		restoreState = storage.StateReady
	}

	result, err := m.run(ctx, repo, opts, workers)
	if err != nil {
		// The data transaction rolled back; put the state back so a
		// partially failed run does not advertise a broken index.
		if stateErr := m.store.SetRepoState(ctx, repo.ID, restoreState); stateErr != nil {
			m.log.Error("failed to restore repo state", "repo", root, "error", stateErr)
		}
		return nil, err
	}

	if err := m.store.SetRepoState(ctx, repo.ID, storage.StateReady); err != nil {
		return nil, err
	}

	result.RepoID = repo.ID
	result.Duration = time.Since(start)
	m.log.Info("indexing complete",
		"repo", root,
		"scanned", result.FilesScanned,
		"indexed", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"chunks", result.ChunksCreated,
		"duration", result.Duration)
	return result, nil
}

func (m *Manager) run(ctx context.Context, repo *storage.Repo, opts Options, workers int) (*Result, error) {
	result := &Result{}

	// Previous manifest: path -> content hash. A force rebuild ignores it
	// so every file is re-chunked and re-embedded.
	manifest := make(map[string]*storage.File)
	if !opts.Force {
		files, err := m.store.ListFiles(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			manifest[f.Path] = f
		}
	}

	var pending []*pendingFile
	var chunkWarnings []types.ScanWarning
	seen := make(map[string]bool)

	report, err := m.scan.Scan(ctx, repo.RootPath, opts.IgnorePatterns, func(file types.SourceFile) error {
		seen[file.Path] = true
		if prev, ok := manifest[file.Path]; ok && prev.ContentHash == file.ContentHash {
			result.FilesSkipped++
			return nil
		}
		chunks, err := m.chunk.Chunk(file)
		if err != nil {
			// One bad file does not fail the run; its previous chunks,
			// if any, stay in the index.
			m.log.Warn("chunking failed", "path", file.Path, "error", err)
			chunkWarnings = append(chunkWarnings, types.ScanWarning{Path: file.Path, Reason: err.Error()})
			return nil
		}
		pending = append(pending, &pendingFile{file: file, chunks: chunks})
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.FilesScanned = report.FilesScanned
	result.Warnings = append(report.Warnings, chunkWarnings...)

	if err := m.embedPending(ctx, pending, workers); err != nil {
		return nil, err
	}

	// One transaction for the whole run: readers keep the old index until
	// commit.
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// On a force rebuild the purge commits together with the new data, so
	// readers never observe a half-empty index.
	if opts.Force {
		if err := tx.DeleteRepoData(ctx, repo.ID); err != nil {
			return nil, err
		}
	}

	for _, p := range pending {
		record := &storage.File{
			RepoID:      repo.ID,
			Path:        p.file.Path,
			Language:    p.file.Language,
			ContentHash: p.file.ContentHash,
			ChunkCount:  len(p.chunks),
		}
		if err := tx.UpsertFile(ctx, record); err != nil {
			return nil, err
		}
		if err := tx.ReplaceChunks(ctx, record.ID, p.chunks); err != nil {
			return nil, err
		}
		for i, chunk := range p.chunks {
			if err := tx.UpsertEmbedding(ctx, chunk.ID, p.vectors[i], m.embed.Model()); err != nil {
				return nil, err
			}
		}
		result.FilesIndexed++
		result.ChunksCreated += len(p.chunks)
	}

	// Files that disappeared since the last run leave the index.
	for path := range manifest {
		if !seen[path] {
			if err := tx.DeleteFile(ctx, repo.ID, path); err != nil {
				return nil, err
			}
			result.FilesRemoved++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit index: %w", err)
	}
	return result, nil
}

// embedPending fills in vectors for every pending chunk, fanning out
// across files with bounded concurrency.
func (m *Manager) embedPending(ctx context.Context, pending []*pendingFile, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, p := range pending {
		g.Go(func() error {
			p.vectors = make([][]float32, len(p.chunks))
			for start := 0; start < len(p.chunks); start += embedder.MaxBatchSize {
				end := min(start+embedder.MaxBatchSize, len(p.chunks))
				texts := make([]string, 0, end-start)
				for _, chunk := range p.chunks[start:end] {
					texts = append(texts, chunk.Text)
				}
				vectors, err := m.embed.EmbedBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("embedding %s: %w", p.file.Path, err)
				}
				copy(p.vectors[start:], vectors)
			}
			return nil
		})
	}
	return g.Wait()
}

// Status reports index statistics for a repository root.
func (m *Manager) Status(ctx context.Context, root string) (*storage.Stats, error) {
	repo, err := m.store.GetRepo(ctx, root)
	if err != nil {
		return nil, err
	}
	return m.store.GetStats(ctx, repo.ID)
}
