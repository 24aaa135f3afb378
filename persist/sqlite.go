// ABOUTME: SQLite repository: documents stored as JSON rows with name and save time columns for listing.
// ABOUTME: Opens in WAL mode and upserts on save.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteRepository keeps documents in a single table.
type SqliteRepository struct {
	db *sql.DB
}

// OpenSqlite opens or creates the database at path.
func OpenSqlite(path string) (*SqliteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			node_count INTEGER NOT NULL,
			body TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SqliteRepository{db: db}, nil
}

// Save upserts doc.
func (r *SqliteRepository) Save(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, node_count, body, saved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			node_count = excluded.node_count,
			body = excluded.body,
			saved_at = excluded.saved_at`,
		doc.ID, doc.Name, len(doc.Nodes), string(body), doc.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Load reads one document.
func (r *SqliteRepository) Load(ctx context.Context, id string) (Document, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every document, newest first.
func (r *SqliteRepository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, node_count, saved_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var savedAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.Nodes, &savedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		if s.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("parse saved_at for %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

// Delete removes a document.
func (r *SqliteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (r *SqliteRepository) Close() error {
	return r.db.Close()
}
