package searcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/pkg/types"
)

func newTestSearcher(t *testing.T) (*Searcher, *storage.SQLiteStorage, embedder.Embedder, *storage.Repo) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embed := embedder.NewLocal(nil)
	repo := &storage.Repo{RootPath: "/tmp/project", State: storage.StateReady}
	require.NoError(t, store.UpsertRepo(context.Background(), repo))

	return New(store, embed), store, embed, repo
}

// seedChunk stores a chunk plus its local-embedder vector.
func seedChunk(t *testing.T, store *storage.SQLiteStorage, embed embedder.Embedder, repo *storage.Repo, path string, start int, kind types.ChunkKind, text string) types.Chunk {
	t.Helper()
	ctx := context.Background()

	file := &storage.File{
		RepoID:      repo.ID,
		Path:        path,
		Language:    types.LangPython,
		ContentHash: types.HashContent(path + text),
	}
	require.NoError(t, store.UpsertFile(ctx, file))

	chunk := types.Chunk{
		ID:        types.ChunkID(path, start, start+5, file.ContentHash),
		Path:      path,
		Language:  types.LangPython,
		StartLine: start,
		EndLine:   start + 5,
		Kind:      kind,
		Text:      text,
	}
	require.NoError(t, store.ReplaceChunks(ctx, file.ID, []types.Chunk{chunk}))

	vec, err := embed.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, store.UpsertEmbedding(ctx, chunk.ID, vec, embed.Model()))
	return chunk
}

func TestSearch_ExactTextRanksFirst(t *testing.T) {
	s, store, embed, repo := newTestSearcher(t)

	login := seedChunk(t, store, embed, repo, "auth.py", 1, types.KindFunction,
		"def login(user, password):\n    return check_password(user, password)")
	seedChunk(t, store, embed, repo, "config.py", 1, types.KindClass,
		"class Config:\n    debug = False")

	// The local embedder maps identical text to identical vectors, so
	// querying with the chunk's own text must rank it first with score 1.
	resp, err := s.Search(context.Background(), Request{
		Query:    login.Text,
		RepoRoot: repo.RootPath,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, login.ID, resp.Results[0].ID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
	assert.Equal(t, ModeVector, resp.Mode)
}

func TestSearch_LimitAndDefaults(t *testing.T) {
	s, store, embed, repo := newTestSearcher(t)
	// Identical text in every chunk pins all similarity scores to 1, so
	// only the limit decides how many come back.
	text := "def f():\n    pass"
	for i := 0; i < 8; i++ {
		seedChunk(t, store, embed, repo, filepath.Join("pkg", string(rune('a'+i))+".py"), 1,
			types.KindFunction, text)
	}

	resp, err := s.Search(context.Background(), Request{Query: text, RepoRoot: repo.RootPath})
	require.NoError(t, err)
	assert.Len(t, resp.Results, DefaultLimit)

	resp, err = s.Search(context.Background(), Request{Query: text, RepoRoot: repo.RootPath, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
}

func TestSearch_KeywordMode(t *testing.T) {
	s, store, embed, repo := newTestSearcher(t)
	seedChunk(t, store, embed, repo, "auth.py", 1, types.KindFunction,
		"def validate_token(token):\n    return jwt.decode(token)")
	seedChunk(t, store, embed, repo, "db.py", 1, types.KindFunction,
		"def connect(dsn):\n    return engine(dsn)")

	resp, err := s.Search(context.Background(), Request{
		Query:    "jwt",
		RepoRoot: repo.RootPath,
		Mode:     ModeKeyword,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Text, "validate_token")
	assert.Equal(t, ModeKeyword, resp.Mode)
}

func TestSearch_CacheHit(t *testing.T) {
	s, store, embed, repo := newTestSearcher(t)
	seedChunk(t, store, embed, repo, "a.py", 1, types.KindFunction, "def a(): pass")

	req := Request{Query: "def a", RepoRoot: repo.RootPath}
	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	s.InvalidateCache()
	third, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestSearch_FiltersByKind(t *testing.T) {
	s, store, embed, repo := newTestSearcher(t)
	seedChunk(t, store, embed, repo, "a.py", 1, types.KindFunction, "def handler(): pass")
	class := seedChunk(t, store, embed, repo, "b.py", 1, types.KindClass, "class Handler: pass")

	resp, err := s.Search(context.Background(), Request{
		Query:    class.Text,
		RepoRoot: repo.RootPath,
		Filters:  &types.SearchFilters{Kind: types.KindClass},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, class.ID, resp.Results[0].ID)
}

func TestSearch_Validation(t *testing.T) {
	s, _, _, repo := newTestSearcher(t)

	_, err := s.Search(context.Background(), Request{Query: "", RepoRoot: repo.RootPath})
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = s.Search(context.Background(), Request{Query: "x", RepoRoot: "/never/indexed"})
	assert.Error(t, err)

	_, err = s.Search(context.Background(), Request{Query: "x", RepoRoot: repo.RootPath, Mode: "bogus"})
	assert.Error(t, err)
}

func TestTopScore(t *testing.T) {
	assert.Zero(t, TopScore(nil))
	assert.Equal(t, 0.9, TopScore([]types.ScoredChunk{{Score: 0.9}, {Score: 0.5}}))
}
