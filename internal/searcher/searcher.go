package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codenav/codenav/internal/embedder"
	"github.com/codenav/codenav/internal/storage"
	"github.com/codenav/codenav/pkg/types"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeVector ranks by embedding similarity.
	ModeVector Mode = "vector"
	// ModeKeyword ranks by BM25 over the FTS index.
	ModeKeyword Mode = "keyword"
)

const (
	// DefaultLimit is the top-k used when a request gives no limit.
	DefaultLimit = 5
	// MaxLimit caps how many chunks a single search returns.
	MaxLimit = 50

	cacheSize = 1000
	cacheTTL  = 5 * time.Minute
)

// Request describes one search.
type Request struct {
	Query    string
	RepoRoot string
	Limit    int
	Mode     Mode
	Filters  *types.SearchFilters
	// SkipCache bypasses the query cache.
	SkipCache bool
}

// Response carries ranked chunks and search metadata.
type Response struct {
	Results  []types.ScoredChunk
	Mode     Mode
	Duration time.Duration
	CacheHit bool
}

type cacheEntry struct {
	results   []types.ScoredChunk
	expiresAt time.Time
}

// Searcher answers similarity and keyword queries against the index.
type Searcher struct {
	store storage.Storage
	embed embedder.Embedder
	cache *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Searcher with an LRU query cache.
func New(store storage.Storage, embed embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{store: store, embed: embed, cache: cache}
}

// Search runs one query. Results come back ordered by score descending
// with a deterministic tie-break, so identical queries over an unchanged
// index return identical rankings.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrEmptyContent)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Mode == "" {
		req.Mode = ModeVector
	}

	key := cacheKey(req)
	if !req.SkipCache {
		if entry, ok := s.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
			return &Response{
				Results:  entry.results,
				Mode:     req.Mode,
				Duration: time.Since(start),
				CacheHit: true,
			}, nil
		}
	}

	repo, err := s.store.GetRepo(ctx, req.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("repository %s is not indexed: %w", req.RepoRoot, err)
	}

	var results []types.ScoredChunk
	switch req.Mode {
	case ModeVector:
		vector, err := s.embed.Embed(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		results, err = s.store.SearchVector(ctx, repo.ID, vector, req.Limit, req.Filters)
		if err != nil {
			return nil, err
		}
	case ModeKeyword:
		results, err = s.store.SearchText(ctx, repo.ID, req.Query, req.Limit)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}

	s.cache.Add(key, &cacheEntry{results: results, expiresAt: time.Now().Add(cacheTTL)})

	return &Response{
		Results:  results,
		Mode:     req.Mode,
		Duration: time.Since(start),
	}, nil
}

// TopScore returns the best score in a result set, zero when empty. The
// agent uses it to decide whether retrieval was confident enough.
func TopScore(results []types.ScoredChunk) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Score
}

// cacheKey hashes the request fields that affect results.
func cacheKey(req Request) [32]byte {
	var lang, kind string
	var minScore float64
	if req.Filters != nil {
		lang = string(req.Filters.Language)
		kind = string(req.Filters.Kind)
		minScore = req.Filters.MinScore
	}
	return sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%d\x00%s\x00%s\x00%s\x00%g",
		req.Query, req.RepoRoot, req.Limit, req.Mode, lang, kind, minScore))
}

// InvalidateCache drops all cached query results. Called after reindexing
// so stale rankings do not outlive the index they came from.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}
