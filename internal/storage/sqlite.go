package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edittrail/edittrail/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite. The changes
// table is the metadata store, changes_fts the lexical store, and
// change_embeddings the vector index.
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
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

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const changeColumns = `id, workspace_id, ts, file_path, abs_path, language, kind, diff,
	lines_added, lines_deleted, line_count, content_before, content_after,
	symbols, imports, git_branch, git_commit, git_author,
	embedding_id, summary, search_text, created_at`

// InsertChange stores a new change record. The FTS index is updated by
// trigger. Records are immutable after insert except for embedding and
// summary attachment.
func (s *SQLiteStorage) InsertChange(ctx context.Context, change *types.ChangeRecord) error {
	if err := change.Validate(); err != nil {
		return err
	}

	symbols, err := json.Marshal(change.Symbols)
	if err != nil {
		return fmt.Errorf("marshal symbols: %w", err)
	}
	imports, err := json.Marshal(change.Imports)
	if err != nil {
		return fmt.Errorf("marshal imports: %w", err)
	}

	searchText := change.SearchText
	if searchText == "" {
		searchText = change.ComposeSearchText()
	}

	query := `
		INSERT INTO changes (` + changeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := change.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, query,
		change.ID, change.WorkspaceID, change.Timestamp,
		change.FilePath, change.AbsolutePath, change.Language,
		string(change.Kind), change.Diff,
		change.LinesAdded, change.LinesDeleted, change.LineCount,
		change.ContentBefore, change.ContentAfter,
		string(symbols), string(imports),
		change.GitBranch, change.GitCommit, change.GitAuthor,
		change.EmbeddingID, change.Summary, searchText,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert change: %w", err)
	}
	return nil
}

// GetChange retrieves a change record by id. Returns ErrNotFound if absent.
func (s *SQLiteStorage) GetChange(ctx context.Context, id string) (*types.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM changes WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	change, err := scanChange(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get change: %w", err)
	}
	return change, nil
}

// AttachEmbedding records the embedding pointer on an existing change.
func (s *SQLiteStorage) AttachEmbedding(ctx context.Context, changeID, embeddingID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE changes SET embedding_id = ? WHERE id = ?", embeddingID, changeID)
	if err != nil {
		return fmt.Errorf("failed to attach embedding: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachSummary records an LLM summary on an existing change. The FTS
// update trigger keeps the summary searchable.
func (s *SQLiteStorage) AttachSummary(ctx context.Context, changeID, summary string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE changes SET summary = ? WHERE id = ?", summary, changeID)
	if err != nil {
		return fmt.Errorf("failed to attach summary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListChanges returns records matching the filters, newest first.
func (s *SQLiteStorage) ListChanges(ctx context.Context, filters *types.Filters, limit int) ([]*types.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM changes WHERE 1=1`
	args := []interface{}{}
	query, args = applyChangeFilters(query, args, filters, "")
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChanges(rows)
}

// ListUnembedded returns records not yet attached to an embedding, oldest
// first so post-processing drains the backlog in order.
func (s *SQLiteStorage) ListUnembedded(ctx context.Context, limit int) ([]*types.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM changes
		WHERE embedding_id IS NULL OR embedding_id = ''
		ORDER BY ts ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unembedded changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChanges(rows)
}

// FileTimeline returns the change history for one file, newest first.
func (s *SQLiteStorage) FileTimeline(ctx context.Context, workspaceID, filePath string, limit int) ([]*types.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM changes WHERE file_path = ?`
	args := []interface{}{filePath}
	if workspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file timeline: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChanges(rows)
}

// SymbolTimeline returns changes that touched the given symbol, newest
// first. Symbols are stored as a JSON array; matching goes through the FTS
// index on the symbols column.
func (s *SQLiteStorage) SymbolTimeline(ctx context.Context, workspaceID, symbol string, limit int) ([]*types.ChangeRecord, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM changes
		WHERE rowid IN (SELECT rowid FROM changes_fts WHERE symbols MATCH ?)
	`
	args := []interface{}{quoteFTSTerm(symbol)}
	if workspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol timeline: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChanges(rows)
}

// UpsertEmbedding stores or replaces the embedding for a change.
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	query := `
		INSERT INTO change_embeddings (id, change_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(change_id) DO UPDATE SET
			id = excluded.id,
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		emb.ID, emb.ChangeID, emb.Vector, emb.Dimension, emb.Provider, emb.Model, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// GetEmbeddingByChange fetches the embedding for a change, ErrNotFound if none.
func (s *SQLiteStorage) GetEmbeddingByChange(ctx context.Context, changeID string) (*Embedding, error) {
	query := `
		SELECT id, change_id, vector, dimension, provider, model, created_at
		FROM change_embeddings WHERE change_id = ?
	`
	var emb Embedding
	err := s.db.QueryRowContext(ctx, query, changeID).Scan(
		&emb.ID, &emb.ChangeID, &emb.Vector, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return &emb, nil
}

// SearchVector performs nearest-neighbor search over stored embeddings.
func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, topK int, filters *types.Filters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, topK, filters)
}

// SearchLexical runs a full-text query and returns matches in relevance
// order. The caller is responsible for sanitizing queryExpr into the FTS5
// token-OR syntax; rank is the 1-based position in the BM25 ordering.
func (s *SQLiteStorage) SearchLexical(ctx context.Context, workspaceID, queryExpr string, limit int) ([]LexicalResult, error) {
	if queryExpr == "" {
		return nil, fmt.Errorf("empty search query")
	}

	query := `
		SELECT ` + prefixColumns("c", changeColumns) + `
		FROM changes_fts
		INNER JOIN changes c ON changes_fts.rowid = c.rowid
		WHERE changes_fts MATCH ?
	`
	args := []interface{}{queryExpr}
	if workspaceID != "" {
		query += " AND c.workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY changes_fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	changes, err := collectChanges(rows)
	if err != nil {
		return nil, err
	}

	results := make([]LexicalResult, len(changes))
	for i, c := range changes {
		results[i] = LexicalResult{Record: c, Rank: i + 1}
	}
	return results, nil
}

// PruneBefore deletes records with ts earlier than cutoff (retention sweep).
// Embeddings follow via cascade.
func (s *SQLiteStorage) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM changes WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune changes: %w", err)
	}
	return result.RowsAffected()
}

// ClearHistory deletes all records for a workspace, or everything if
// workspaceID is empty.
func (s *SQLiteStorage) ClearHistory(ctx context.Context, workspaceID string) (int64, error) {
	var result sql.Result
	var err error
	if workspaceID == "" {
		result, err = s.db.ExecContext(ctx, "DELETE FROM changes")
	} else {
		result, err = s.db.ExecContext(ctx, "DELETE FROM changes WHERE workspace_id = ?", workspaceID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return result.RowsAffected()
}

// Stats reports aggregate index state.
func (s *SQLiteStorage) Stats(ctx context.Context, workspaceID string) (*Stats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(embedding_id),
			COUNT(DISTINCT workspace_id),
			COALESCE(MIN(ts), 0),
			COALESCE(MAX(ts), 0)
		FROM changes
	`
	args := []interface{}{}
	if workspaceID != "" {
		query += " WHERE workspace_id = ?"
		args = append(args, workspaceID)
	}

	var st Stats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&st.TotalChanges, &st.EmbeddedChanges, &st.Workspaces,
		&st.EarliestTS, &st.LatestTS)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanChange reads one change record from a row
func scanChange(row rowScanner) (*types.ChangeRecord, error) {
	var c types.ChangeRecord
	var kind string
	var symbols, imports sql.NullString
	var absPath, language, diff, branch, commit, author, summary, searchText sql.NullString
	var contentBefore, contentAfter, embeddingID sql.NullString

	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Timestamp,
		&c.FilePath, &absPath, &language, &kind, &diff,
		&c.LinesAdded, &c.LinesDeleted, &c.LineCount,
		&contentBefore, &contentAfter,
		&symbols, &imports,
		&branch, &commit, &author,
		&embeddingID, &summary, &searchText,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Kind = types.EventKind(kind)
	c.AbsolutePath = absPath.String
	c.Language = language.String
	c.Diff = diff.String
	c.GitBranch = branch.String
	c.GitCommit = commit.String
	c.GitAuthor = author.String
	c.Summary = summary.String
	c.SearchText = searchText.String
	if contentBefore.Valid {
		v := contentBefore.String
		c.ContentBefore = &v
	}
	if contentAfter.Valid {
		v := contentAfter.String
		c.ContentAfter = &v
	}
	if embeddingID.Valid && embeddingID.String != "" {
		v := embeddingID.String
		c.EmbeddingID = &v
	}
	if symbols.Valid && symbols.String != "" {
		if err := json.Unmarshal([]byte(symbols.String), &c.Symbols); err != nil {
			return nil, fmt.Errorf("unmarshal symbols: %w", err)
		}
	}
	if imports.Valid && imports.String != "" {
		if err := json.Unmarshal([]byte(imports.String), &c.Imports); err != nil {
			return nil, fmt.Errorf("unmarshal imports: %w", err)
		}
	}

	return &c, nil
}

// collectChanges drains rows into change records
func collectChanges(rows *sql.Rows) ([]*types.ChangeRecord, error) {
	changes := make([]*types.ChangeRecord, 0)
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
