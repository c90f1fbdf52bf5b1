package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenav/codenav/internal/chunker"
	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/pkg/types"
)

// countingEmbedder wraps the local embedder and counts texts embedded, so
// tests can assert that unchanged files trigger zero embedding calls.
type countingEmbedder struct {
	*embedder.Local
	embedded atomic.Int64
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{Local: embedder.NewLocal(nil)}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedded.Add(1)
	return c.Local.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.embedded.Add(int64(len(texts)))
	return c.Local.EmbedBatch(ctx, texts)
}

// gateEmbedder wraps the local embedder and, once armed, parks EmbedBatch
// until released, holding an indexing run mid-flight.
type gateEmbedder struct {
	*embedder.Local
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGateEmbedder() *gateEmbedder {
	return &gateEmbedder{
		Local:   embedder.NewLocal(nil),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *gateEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.armed.Load() {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Local.EmbedBatch(ctx, texts)
}

// failingChunker wraps the real chunker and fails for selected paths.
type failingChunker struct {
	*chunker.Chunker
	fail map[string]bool
}

func (f *failingChunker) Chunk(file types.SourceFile) ([]types.Chunk, error) {
	if f.fail[file.Path] {
		return nil, errors.New("unbalanced definition markers")
	}
	return f.Chunker.Chunk(file)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestManager(t *testing.T) (*Manager, *storage.SQLiteStorage, *countingEmbedder) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embed := newCountingEmbedder()
	chunk, err := chunker.New(512, 64)
	require.NoError(t, err)

	return New(store, embed, chunk, nil), store, embed
}

func seedTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	writeFile(t, root, "auth/login.go", "package auth\n\nfunc Login(user string) error {\n\treturn nil\n}\n")
	writeFile(t, root, "README.md", "# Project\n\nSome docs.\n")
	return root
}

func TestIndexRepository_FullBuild(t *testing.T) {
	m, store, _ := newTestManager(t)
	root := seedTree(t)
	ctx := context.Background()

	result, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesScanned)
	assert.Equal(t, 3, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	assert.Positive(t, result.ChunksCreated)
	assert.Empty(t, result.Warnings)

	repo, err := store.GetRepo(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, storage.StateReady, repo.State)
	assert.False(t, repo.LastIndexedAt.IsZero())

	stats, err := m.Status(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesCount)
	assert.Equal(t, result.ChunksCreated, stats.ChunksCount)
	assert.Equal(t, result.ChunksCreated, stats.EmbeddingsCount)
}

func TestIndexRepository_UnchangedSecondRunEmbedsNothing(t *testing.T) {
	m, _, embed := newTestManager(t)
	root := seedTree(t)
	ctx := context.Background()

	_, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)
	firstCalls := embed.embedded.Load()
	require.Positive(t, firstCalls)

	result, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesSkipped)
	assert.Zero(t, result.FilesIndexed)
	assert.Equal(t, firstCalls, embed.embedded.Load())
}

func TestIndexRepository_ChangedFileReindexed(t *testing.T) {
	m, store, _ := newTestManager(t)
	root := seedTree(t)
	ctx := context.Background()

	_, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)

	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"changed\")\n}\n")

	result, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Equal(t, 2, result.FilesSkipped)

	repo, err := store.GetRepo(ctx, root)
	require.NoError(t, err)
	file, err := store.GetFile(ctx, repo.ID, "main.go")
	require.NoError(t, err)

	chunk, err := store.GetChunk(ctx, chunkIDForFile(t, store, repo.ID, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, chunk.Text, "changed")
	assert.Positive(t, file.ChunkCount)
}

// chunkIDForFile returns the first chunk ID recorded for a path.
func chunkIDForFile(t *testing.T, store *storage.SQLiteStorage, repoID int64, path string) string {
	t.Helper()
	results, err := store.SearchText(context.Background(), repoID, "main", 10)
	require.NoError(t, err)
	for _, r := range results {
		if r.Path == path {
			return r.ID
		}
	}
	t.Fatalf("no chunk found for %s", path)
	return ""
}

func TestIndexRepository_DeletedFileRemoved(t *testing.T) {
	m, store, _ := newTestManager(t)
	root := seedTree(t)
	ctx := context.Background()

	_, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))

	result, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesRemoved)

	repo, err := store.GetRepo(ctx, root)
	require.NoError(t, err)
	_, err = store.GetFile(ctx, repo.ID, "README.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexRepository_ForceReembedsEverything(t *testing.T) {
	m, _, embed := newTestManager(t)
	root := seedTree(t)
	ctx := context.Background()

	_, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)
	firstCalls := embed.embedded.Load()

	result, err := m.IndexRepository(ctx, root, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	assert.Greater(t, embed.embedded.Load(), firstCalls)
}

func TestIndexRepository_ReadersSeeOldIndexDuringRun(t *testing.T) {
	cases := []struct {
		name  string
		force bool
	}{
		{"incremental", false},
		{"force", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			gate := newGateEmbedder()
			chunk, err := chunker.New(512, 64)
			require.NoError(t, err)
			m := New(store, gate, chunk, nil)

			root := seedTree(t)
			ctx := context.Background()
			_, err = m.IndexRepository(ctx, root, Options{})
			require.NoError(t, err)

			repo, err := store.GetRepo(ctx, root)
			require.NoError(t, err)
			before, err := store.CountChunks(ctx, repo.ID)
			require.NoError(t, err)
			require.Positive(t, before)

			loginText := "func Login(user string) error {\n\treturn nil\n}"
			loginVec, err := gate.Local.Embed(ctx, loginText)
			require.NoError(t, err)

			if !tc.force {
				writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"updated\")\n}\n")
			}

			gate.armed.Store(true)
			done := make(chan error, 1)
			go func() {
				_, err := m.IndexRepository(ctx, root, Options{Force: tc.force})
				done <- err
			}()

			select {
			case <-gate.entered:
			case <-time.After(10 * time.Second):
				t.Fatal("indexing run never reached the embedder")
			}

			// The run is parked between scan and commit; readers must still
			// see the complete previous index, not a purged or partial one.
			during, err := store.CountChunks(ctx, repo.ID)
			require.NoError(t, err)
			assert.Equal(t, before, during)

			results, err := store.SearchVector(ctx, repo.ID, loginVec, 10, nil)
			require.NoError(t, err)
			require.NotEmpty(t, results)
			assert.Equal(t, "auth/login.go", results[0].Path)

			gate.armed.Store(false)
			close(gate.release)
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(30 * time.Second):
				t.Fatal("indexing run did not finish")
			}

			after, err := store.CountChunks(ctx, repo.ID)
			require.NoError(t, err)
			assert.Positive(t, after)
		})
	}
}

func TestIndexRepository_ChunkFailureSkipsOnlyThatFile(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base, err := chunker.New(512, 64)
	require.NoError(t, err)
	chunk := &failingChunker{Chunker: base, fail: map[string]bool{"auth/login.go": true}}
	m := New(store, newCountingEmbedder(), chunk, nil)

	root := seedTree(t)
	ctx := context.Background()
	result, err := m.IndexRepository(ctx, root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesScanned)
	assert.Equal(t, 2, result.FilesIndexed)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "auth/login.go", result.Warnings[0].Path)

	repo, err := store.GetRepo(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, storage.StateReady, repo.State)
	_, err = store.GetFile(ctx, repo.ID, "auth/login.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexRepository_UnreadableFileWarns(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	m, _, _ := newTestManager(t)
	root := seedTree(t)
	writeFile(t, root, "secret.go", "package secret\n")
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.go"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "secret.go"), 0o644) })

	result, err := m.IndexRepository(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesIndexed)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "secret.go", result.Warnings[0].Path)
}

func TestIndexRepository_ConcurrentRunsRejected(t *testing.T) {
	m, _, _ := newTestManager(t)
	root := seedTree(t)

	lock := m.lockFor(root)
	require.True(t, lock.tryAcquire())

	_, err := m.IndexRepository(context.Background(), root, Options{})
	assert.ErrorIs(t, err, ErrIndexBusy)

	lock.release()
	_, err = m.IndexRepository(context.Background(), root, Options{})
	assert.NoError(t, err)
}

func TestIndexRepository_DistinctRootsRunConcurrently(t *testing.T) {
	m, _, _ := newTestManager(t)
	rootA := seedTree(t)
	rootB := seedTree(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, root := range []string{rootA, rootB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.IndexRepository(context.Background(), root, Options{})
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("indexing runs did not finish")
	}

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestIndexRepository_MissingRoot(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.IndexRepository(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}
