package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/codenav/codenav/pkg/types"
)

// DefaultMinScore is the similarity floor applied when a search does not
// set its own. It drops chunks whose cosine similarity to the query is
// negative or negligible.
const DefaultMinScore = 0.05

// searchVector ranks a repo's chunks by cosine similarity to the query
// vector. Candidates are filtered in SQL, scored in Go; with the pure-Go
// driver there is no vector extension to push the math into.
func searchVector(ctx context.Context, q querier, repoID int64, queryVector []float32, limit int, filters *types.SearchFilters) ([]types.ScoredChunk, error) {
	query := `
		SELECT ` + prefixedChunkColumns("c") + `, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN files f ON c.file_id = f.id
		WHERE f.repo_id = ?
	`
	args := []any{repoID}
	query, args = applyChunkFilters(query, args, filters)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	minScore := DefaultMinScore
	if filters != nil && filters.MinScore > 0 {
		minScore = filters.MinScore
	}

	var scored []types.ScoredChunk
	for rows.Next() {
		var chunk types.Chunk
		var language, kind string
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Path, &language, &kind,
			&chunk.StartLine, &chunk.EndLine, &chunk.Text, &blob); err != nil {
			return nil, err
		}
		chunk.Language = types.Language(language)
		chunk.Kind = types.ChunkKind(kind)

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // dimension mismatch, likely a model change
		}

		score := cosineSimilarity(queryVector, vector)
		if score < minScore {
			continue
		}
		scored = append(scored, types.ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScored(scored)

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// searchText runs a BM25 keyword search over the chunk FTS index.
func searchText(ctx context.Context, q querier, repoID int64, query string, limit int) ([]types.ScoredChunk, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := `
		SELECT ` + prefixedChunkColumns("c") + `, bm25(chunks_fts) as score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.rowid
		INNER JOIN files f ON c.file_id = f.id
		WHERE chunks_fts MATCH ?
		AND f.repo_id = ?
		ORDER BY score
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, sanitized, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []types.ScoredChunk
	for rows.Next() {
		var chunk types.Chunk
		var language, kind string
		var bm25 float64
		if err := rows.Scan(&chunk.ID, &chunk.Path, &language, &kind,
			&chunk.StartLine, &chunk.EndLine, &chunk.Text, &bm25); err != nil {
			return nil, err
		}
		chunk.Language = types.Language(language)
		chunk.Kind = types.ChunkKind(kind)

		// BM25 is negative, lower is better; map into (0, 1].
		score := 1.0 / (1.0 + math.Abs(bm25)/50.0)
		scored = append(scored, types.ScoredChunk{Chunk: chunk, Score: score})
	}
	return scored, rows.Err()
}

func prefixedChunkColumns(alias string) string {
	cols := strings.Split(chunkColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

// applyChunkFilters narrows vector search candidates by language and kind.
func applyChunkFilters(query string, args []any, filters *types.SearchFilters) (string, []any) {
	if filters == nil {
		return query, args
	}
	if filters.Language != "" {
		query += " AND c.language = ?"
		args = append(args, string(filters.Language))
	}
	if filters.Kind != "" {
		query += " AND c.kind = ?"
		args = append(args, string(filters.Kind))
	}
	return query, args
}

// sortScored orders by score descending with a deterministic tie-break on
// path, then start line, so equal-score results are stable across runs.
func sortScored(scored []types.ScoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Path != scored[j].Path {
			return scored[i].Path < scored[j].Path
		}
		return scored[i].StartLine < scored[j].StartLine
	})
}

// serializeVector packs a float32 slice little-endian.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery escapes FTS5 operators so user text cannot change the
// query structure.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`"`, `\"`,
		`*`, `\*`,
		`(`, `\(`,
		`)`, `\)`,
	)
	escaped := replacer.Replace(query)
	return ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})
}

// SerializeVector is an exported helper for testing.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
