// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/research-weaver/pkg/types"
)

const dbFile = "research-weaver.db"

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	dataDir string
	logger  *zap.Logger

	// fts reports whether the evidence_fts index exists. The FTS5 module is
	// only compiled into go-sqlite3 with the sqlite_fts5 build tag.
	fts bool
}

// NewSQLiteStore opens or creates dataDir/research-weaver.db and its schema.
func NewSQLiteStore(dataDir string, logger *zap.Logger) (*SQLiteStore, error) {
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, dataDir: dataDir, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FullText reports whether evidence search uses the FTS5 index.
func (s *SQLiteStore) FullText() bool { return s.fts }

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			iteration INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			content TEXT NOT NULL,
			summary TEXT,
			source_uri TEXT,
			provider TEXT,
			origin_query TEXT,
			relevance REAL,
			tags TEXT,
			ingested_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_source ON evidence(source_uri)`,
		`CREATE TABLE IF NOT EXISTS task_evidence (
			task_id TEXT NOT NULL REFERENCES tasks(id),
			evidence_id TEXT NOT NULL REFERENCES evidence(id),
			PRIMARY KEY (task_id, evidence_id)
		)`,
		`CREATE TABLE IF NOT EXISTS outlines (
			task_id TEXT NOT NULL REFERENCES tasks(id),
			version INTEGER NOT NULL,
			iteration INTEGER NOT NULL,
			body TEXT NOT NULL,
			PRIMARY KEY (task_id, version)
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			task_id TEXT PRIMARY KEY REFERENCES tasks(id),
			body TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='evidence_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE evidence_fts USING fts5(title, content, content=evidence, content_rowid=rowid)`,
		`CREATE TRIGGER evidence_ai AFTER INSERT ON evidence BEGIN
			INSERT INTO evidence_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
		`CREATE TRIGGER evidence_ad AFTER DELETE ON evidence BEGIN
			INSERT INTO evidence_fts(evidence_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
		END`,
		`CREATE TRIGGER evidence_au AFTER UPDATE ON evidence BEGIN
			INSERT INTO evidence_fts(evidence_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			INSERT INTO evidence_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
		END`,
	}
	if _, err := s.db.Exec(ftsStatements[0]); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			s.logger.Warn("fts5 unavailable, evidence search falls back to substring match", zap.Error(err))
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}
	for _, stmt := range ftsStatements[1:] {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// SaveTask creates the task row, or leaves an existing one untouched.
func (s *SQLiteStore) SaveTask(ctx context.Context, taskID, query string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, query, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		taskID, query, ts, ts)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", taskID, err)
	}
	return nil
}

// SaveEvidence stores items and links them to the task. Items are
// immutable, so an id already stored is only linked.
func (s *SQLiteStore) SaveEvidence(ctx context.Context, taskID string, items []types.EvidenceItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO evidence (id, title, content, summary, source_uri, provider, origin_query, relevance, tags, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	link, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO task_evidence (task_id, evidence_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing link: %w", err)
	}
	defer link.Close()

	for _, it := range items {
		tagsJSON, _ := json.Marshal(it.TopicTags)
		if _, err := insert.ExecContext(ctx,
			it.ID, it.Title, it.RawContent, it.Summary, it.SourceURI, it.Provider,
			it.OriginQuery, it.RelevanceScore, string(tagsJSON),
			it.IngestTimestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting evidence %s: %w", it.ID, err)
		}
		if _, err := link.ExecContext(ctx, taskID, it.ID); err != nil {
			return fmt.Errorf("linking evidence %s: %w", it.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?`, now(), taskID); err != nil {
		return fmt.Errorf("touching task: %w", err)
	}
	return tx.Commit()
}

// SaveOutline stores an outline version and the iteration it was saved at.
func (s *SQLiteStore) SaveOutline(ctx context.Context, taskID string, o *types.Outline, iteration int) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshaling outline: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outlines (task_id, version, iteration, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT(task_id, version) DO UPDATE SET iteration=excluded.iteration, body=excluded.body`,
		taskID, o.Version, iteration, string(body),
	); err != nil {
		return fmt.Errorf("saving outline: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET iteration = ?, updated_at = ? WHERE id = ?`, iteration, now(), taskID,
	); err != nil {
		return fmt.Errorf("touching task: %w", err)
	}
	return tx.Commit()
}

// SaveResult stores the final result of the task.
func (s *SQLiteStore) SaveResult(ctx context.Context, taskID string, r *types.ResearchResult) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO results (task_id, body) VALUES (?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET body=excluded.body`,
		taskID, string(body),
	); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// Load returns the task's latest outline, its evidence and any result.
func (s *SQLiteStore) Load(ctx context.Context, taskID string) (*types.TaskSnapshot, error) {
	snap, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var body string
	err = s.db.QueryRowContext(ctx,
		`SELECT body FROM outlines WHERE task_id = ? ORDER BY version DESC LIMIT 1`, taskID,
	).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("loading outline: %w", err)
	default:
		snap.Outline = &types.Outline{}
		if err := json.Unmarshal([]byte(body), snap.Outline); err != nil {
			return nil, fmt.Errorf("decoding outline: %w", err)
		}
	}

	snap.Evidence, err = s.queryEvidence(ctx,
		`SELECT e.id, e.title, e.content, e.summary, e.source_uri, e.provider, e.origin_query, e.relevance, e.tags, e.ingested_at
		 FROM evidence e JOIN task_evidence te ON te.evidence_id = e.id
		 WHERE te.task_id = ? ORDER BY e.id`, taskID)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT body FROM results WHERE task_id = ?`, taskID).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("loading result: %w", err)
	default:
		snap.Result = &types.ResearchResult{}
		if err := json.Unmarshal([]byte(body), snap.Result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
	}
	return snap, nil
}

func (s *SQLiteStore) loadTask(ctx context.Context, taskID string) (*types.TaskSnapshot, error) {
	var created, updated string
	snap := &types.TaskSnapshot{TaskID: taskID}
	err := s.db.QueryRowContext(ctx,
		`SELECT query, iteration, created_at, updated_at FROM tasks WHERE id = ?`, taskID,
	).Scan(&snap.Query, &snap.Iteration, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return snap, nil
}

// ListTasks returns every task without evidence or outlines, most
// recently updated first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]types.TaskSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, iteration, created_at, updated_at FROM tasks ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []types.TaskSnapshot
	for rows.Next() {
		var t types.TaskSnapshot
		var created, updated string
		if err := rows.Scan(&t.TaskID, &t.Query, &t.Iteration, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SearchEvidence finds stored evidence matching query across all tasks.
// With FTS5 the query uses FTS syntax and results are ranked; without it
// every whitespace-separated term must appear in the title or content.
func (s *SQLiteStore) SearchEvidence(ctx context.Context, query string, limit int) ([]types.EvidenceItem, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.fts {
		return s.queryEvidence(ctx,
			`SELECT e.id, e.title, e.content, e.summary, e.source_uri, e.provider, e.origin_query, e.relevance, e.tags, e.ingested_at
			 FROM evidence_fts JOIN evidence e ON e.rowid = evidence_fts.rowid
			 WHERE evidence_fts MATCH ? ORDER BY evidence_fts.rank LIMIT ?`, query, limit)
	}

	var qb strings.Builder
	var args []any
	qb.WriteString(`SELECT id, title, content, summary, source_uri, provider, origin_query, relevance, tags, ingested_at
		FROM evidence e WHERE 1=1`)
	for _, term := range strings.Fields(query) {
		qb.WriteString(` AND (e.title LIKE ? OR e.content LIKE ?)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	qb.WriteString(` ORDER BY e.relevance DESC, e.id LIMIT ?`)
	args = append(args, limit)
	return s.queryEvidence(ctx, qb.String(), args...)
}

func (s *SQLiteStore) queryEvidence(ctx context.Context, query string, args ...any) ([]types.EvidenceItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var out []types.EvidenceItem
	for rows.Next() {
		var (
			it       types.EvidenceItem
			title    sql.NullString
			summary  sql.NullString
			source   sql.NullString
			provider sql.NullString
			origin   sql.NullString
			tags     sql.NullString
			ingested sql.NullString
		)
		if err := rows.Scan(&it.ID, &title, &it.RawContent, &summary, &source, &provider,
			&origin, &it.RelevanceScore, &tags, &ingested); err != nil {
			return nil, fmt.Errorf("scanning evidence: %w", err)
		}
		it.Title = title.String
		it.Summary = summary.String
		it.SourceURI = source.String
		it.Provider = provider.String
		it.OriginQuery = origin.String
		if tags.Valid {
			json.Unmarshal([]byte(tags.String), &it.TopicTags)
		}
		if ingested.Valid {
			it.IngestTimestamp, _ = time.Parse(time.RFC3339Nano, ingested.String)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
