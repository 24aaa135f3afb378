// ABOUTME: Filesystem repository: one JSON file per document, written atomically via temp file and rename.
// ABOUTME: Listing reads every document in the directory and sorts by save time.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileRepository keeps documents as <dir>/<id>.json.
type FileRepository struct {
	dir string
}

// NewFileRepository creates dir if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

// Save writes doc to a temp file, syncs it, and renames it into place.
func (r *FileRepository) Save(_ context.Context, doc Document) error {
	path, err := r.path(doc.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, doc.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync document: %w", err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

// Load reads one document.
func (r *FileRepository) Load(_ context.Context, id string) (Document, error) {
	path, err := r.path(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

// List returns every document, newest first.
func (r *FileRepository) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read document dir: %w", err)
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		doc, err := r.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Delete removes a document.
func (r *FileRepository) Delete(_ context.Context, id string) error {
	path, err := r.path(id)
	if err != nil {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close is a no-op.
func (r *FileRepository) Close() error { return nil }

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].SavedAt.Equal(s[j].SavedAt) {
			return s[i].SavedAt.After(s[j].SavedAt)
		}
		return s[i].ID < s[j].ID
	})
}
