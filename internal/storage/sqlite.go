package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codenav/codenav/pkg/types"
)

// DriverName selects the pure-Go SQLite driver, so builds need no cgo.
const DriverName = "sqlite"

// SQLiteStorage implements Storage on a local SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens SQLite with WAL and a single writer connection.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// New opens (or creates) the database at dbPath and applies migrations.
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) querier() querier      { return t.tx }
func (s *SQLiteStorage) querier() querier { return s.db }

// Repo operations

func (s *SQLiteStorage) upsertRepo(ctx context.Context, q querier, repo *Repo) error {
	if repo.State == "" {
		repo.State = StateEmpty
	}
	query := `
		INSERT INTO repos (root_path, state, embedding_model, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(root_path) DO UPDATE SET
			state = excluded.state,
			embedding_model = excluded.embedding_model,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	var lastIndexed any
	if !repo.LastIndexedAt.IsZero() {
		lastIndexed = repo.LastIndexedAt
	}
	err := q.QueryRowContext(ctx, query,
		repo.RootPath, string(repo.State), repo.EmbeddingModel, lastIndexed, now, now,
	).Scan(&repo.ID, &repo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert repo: %w", err)
	}
	repo.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertRepo(ctx context.Context, repo *Repo) error {
	return s.upsertRepo(ctx, s.querier(), repo)
}

func (s *SQLiteStorage) getRepo(ctx context.Context, q querier, rootPath string) (*Repo, error) {
	query := `
		SELECT id, root_path, state, embedding_model, last_indexed_at, created_at, updated_at
		FROM repos
		WHERE root_path = ?
	`
	var repo Repo
	var state string
	var model sql.NullString
	var lastIndexedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, rootPath).Scan(
		&repo.ID, &repo.RootPath, &state, &model, &lastIndexedAt,
		&repo.CreatedAt, &repo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	repo.State = RepoState(state)
	repo.EmbeddingModel = model.String
	if lastIndexedAt.Valid {
		repo.LastIndexedAt = lastIndexedAt.Time
	}
	return &repo, nil
}

func (s *SQLiteStorage) GetRepo(ctx context.Context, rootPath string) (*Repo, error) {
	return s.getRepo(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) setRepoState(ctx context.Context, q querier, repoID int64, state RepoState) error {
	query := `UPDATE repos SET state = ?, updated_at = ?`
	args := []any{string(state), time.Now()}
	if state == StateReady {
		query += `, last_indexed_at = ?`
		args = append(args, time.Now())
	}
	query += ` WHERE id = ?`
	args = append(args, repoID)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set repo state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) SetRepoState(ctx context.Context, repoID int64, state RepoState) error {
	return s.setRepoState(ctx, s.querier(), repoID, state)
}

// File operations

func (s *SQLiteStorage) upsertFile(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (repo_id, path, language, content_hash, chunk_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.RepoID, file.Path, string(file.Language), file.ContentHash, file.ChunkCount, now,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFile(ctx, s.querier(), file)
}

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var file File
	var language string
	err := row.Scan(&file.ID, &file.RepoID, &file.Path, &language,
		&file.ContentHash, &file.ChunkCount, &file.UpdatedAt)
	if err != nil {
		return nil, err
	}
	file.Language = types.Language(language)
	return &file, nil
}

const fileColumns = `id, repo_id, path, language, content_hash, chunk_count, updated_at`

func (s *SQLiteStorage) getFile(ctx context.Context, q querier, repoID int64, path string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE repo_id = ? AND path = ?`
	file, err := scanFile(q.QueryRowContext(ctx, query, repoID, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return file, err
}

func (s *SQLiteStorage) GetFile(ctx context.Context, repoID int64, path string) (*File, error) {
	return s.getFile(ctx, s.querier(), repoID, path)
}

func (s *SQLiteStorage) listFiles(ctx context.Context, q querier, repoID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE repo_id = ? ORDER BY path`
	rows, err := q.QueryContext(ctx, query, repoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, repoID int64) ([]*File, error) {
	return s.listFiles(ctx, s.querier(), repoID)
}

func (s *SQLiteStorage) deleteFile(ctx context.Context, q querier, repoID int64, path string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE repo_id = ? AND path = ?`, repoID, path)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, repoID int64, path string) error {
	return s.deleteFile(ctx, s.querier(), repoID, path)
}

// Chunk operations

func (s *SQLiteStorage) replaceChunks(ctx context.Context, q querier, fileID int64, chunks []types.Chunk) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	query := `
		INSERT INTO chunks (id, file_id, path, language, kind, start_line, end_line, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, chunk := range chunks {
		_, err := q.ExecContext(ctx, query,
			chunk.ID, fileID, chunk.Path, string(chunk.Language), string(chunk.Kind),
			chunk.StartLine, chunk.EndLine, chunk.Text, now)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, fileID int64, chunks []types.Chunk) error {
	return s.replaceChunks(ctx, s.querier(), fileID, chunks)
}

func scanChunk(row interface{ Scan(...any) error }) (*types.Chunk, error) {
	var chunk types.Chunk
	var language, kind string
	err := row.Scan(&chunk.ID, &chunk.Path, &language, &kind,
		&chunk.StartLine, &chunk.EndLine, &chunk.Text)
	if err != nil {
		return nil, err
	}
	chunk.Language = types.Language(language)
	chunk.Kind = types.ChunkKind(kind)
	return &chunk, nil
}

const chunkColumns = `id, path, language, kind, start_line, end_line, text`

func (s *SQLiteStorage) getChunk(ctx context.Context, q querier, chunkID string) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	chunk, err := scanChunk(q.QueryRowContext(ctx, query, chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return chunk, err
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error) {
	return s.getChunk(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) countChunks(ctx context.Context, q querier, repoID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c
		JOIN files f ON c.file_id = f.id
		WHERE f.repo_id = ?
	`, repoID).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CountChunks(ctx context.Context, repoID int64) (int, error) {
	return s.countChunks(ctx, s.querier(), repoID)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbedding(ctx context.Context, q querier, chunkID string, vector []float32, model string) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model
	`
	_, err := q.ExecContext(ctx, query,
		chunkID, serializeVector(vector), len(vector), model, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, chunkID string, vector []float32, model string) error {
	return s.upsertEmbedding(ctx, s.querier(), chunkID, vector, model)
}

func (s *SQLiteStorage) getEmbedding(ctx context.Context, q querier, chunkID string) ([]float32, error) {
	var blob []byte
	err := q.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE chunk_id = ?`, chunkID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deserializeVector(blob), nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	return s.getEmbedding(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, repoID int64, vector []float32, limit int, filters *types.SearchFilters) ([]types.ScoredChunk, error) {
	return searchVector(ctx, s.querier(), repoID, vector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, repoID int64, query string, limit int) ([]types.ScoredChunk, error) {
	return searchText(ctx, s.querier(), repoID, query, limit)
}

// Purge

func (s *SQLiteStorage) deleteRepoData(ctx context.Context, q querier, repoID int64) error {
	// Cascades remove chunks and embeddings.
	if _, err := q.ExecContext(ctx, `DELETE FROM files WHERE repo_id = ?`, repoID); err != nil {
		return fmt.Errorf("failed to purge repo data: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteRepoData(ctx context.Context, repoID int64) error {
	return s.deleteRepoData(ctx, s.querier(), repoID)
}

// Stats

func (s *SQLiteStorage) getStats(ctx context.Context, q querier, repoID int64) (*Stats, error) {
	var rootPath string
	err := q.QueryRowContext(ctx, `SELECT root_path FROM repos WHERE id = ?`, repoID).Scan(&rootPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	repo, err := s.getRepo(ctx, q, rootPath)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Repo: repo}

	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE repo_id = ?`, repoID).Scan(&stats.FilesCount); err != nil {
		return nil, err
	}
	if stats.ChunksCount, err = s.countChunks(ctx, q, repoID); err != nil {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN chunks c ON e.chunk_id = c.id
		JOIN files f ON c.file_id = f.id
		WHERE f.repo_id = ?
	`, repoID).Scan(&stats.EmbeddingsCount); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

func (s *SQLiteStorage) GetStats(ctx context.Context, repoID int64) (*Stats, error) {
	return s.getStats(ctx, s.querier(), repoID)
}

// Transaction delegations

func (t *sqliteTx) UpsertRepo(ctx context.Context, repo *Repo) error {
	return t.storage.upsertRepo(ctx, t.querier(), repo)
}

func (t *sqliteTx) GetRepo(ctx context.Context, rootPath string) (*Repo, error) {
	return t.storage.getRepo(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) SetRepoState(ctx context.Context, repoID int64, state RepoState) error {
	return t.storage.setRepoState(ctx, t.querier(), repoID, state)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFile(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, repoID int64, path string) (*File, error) {
	return t.storage.getFile(ctx, t.querier(), repoID, path)
}

func (t *sqliteTx) ListFiles(ctx context.Context, repoID int64) ([]*File, error) {
	return t.storage.listFiles(ctx, t.querier(), repoID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, repoID int64, path string) error {
	return t.storage.deleteFile(ctx, t.querier(), repoID, path)
}

func (t *sqliteTx) ReplaceChunks(ctx context.Context, fileID int64, chunks []types.Chunk) error {
	return t.storage.replaceChunks(ctx, t.querier(), fileID, chunks)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error) {
	return t.storage.getChunk(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) CountChunks(ctx context.Context, repoID int64) (int, error) {
	return t.storage.countChunks(ctx, t.querier(), repoID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, chunkID string, vector []float32, model string) error {
	return t.storage.upsertEmbedding(ctx, t.querier(), chunkID, vector, model)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	return t.storage.getEmbedding(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, repoID int64, vector []float32, limit int, filters *types.SearchFilters) ([]types.ScoredChunk, error) {
	return searchVector(ctx, t.querier(), repoID, vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, repoID int64, query string, limit int) ([]types.ScoredChunk, error) {
	return searchText(ctx, t.querier(), repoID, query, limit)
}

func (t *sqliteTx) DeleteRepoData(ctx context.Context, repoID int64) error {
	return t.storage.deleteRepoData(ctx, t.querier(), repoID)
}

// GetStats runs on the transaction connection; with a single write
// connection, reaching back to the pool here would deadlock.
func (t *sqliteTx) GetStats(ctx context.Context, repoID int64) (*Stats, error) {
	return t.storage.getStats(ctx, t.querier(), repoID)
}

func (t *sqliteTx) Close() error {
	// Transactions never close the underlying connection.
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
