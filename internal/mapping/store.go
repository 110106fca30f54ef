package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"transponster/internal/config"
	"transponster/internal/services"
)

// Mapping links a chat platform file to a destination document.
type Mapping struct {
	SourceFileID string
	DocumentID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store persists mappings in SQLite. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the mapping database under the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.MappingsDBPath())
}

// OpenPath opens or creates the mapping database at path.
func OpenPath(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	query := url.Values{}
	for _, pragma := range []string{
		"journal_mode(WAL)",
		"synchronous(FULL)",
		"busy_timeout(5000)",
		"foreign_keys(ON)",
	} {
		query.Add("_pragma", pragma)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put records that sourceFileID is linked to documentID, replacing any
// earlier link. The write is committed before Put returns.
func (s *Store) Put(ctx context.Context, sourceFileID, documentID string) error {
	sourceFileID = strings.TrimSpace(sourceFileID)
	documentID = strings.TrimSpace(documentID)
	if sourceFileID == "" || documentID == "" {
		return services.Wrap(services.ErrValidation, "mapping", "put", "source file id and document id are required", nil)
	}
	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO file_mappings (source_file_id, document_id, created_at, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(source_file_id) DO UPDATE SET
             document_id = excluded.document_id,
             updated_at = excluded.updated_at`,
		sourceFileID, documentID, timestamp, timestamp,
	)
	if err != nil {
		return fmt.Errorf("put mapping: %w", err)
	}
	return nil
}

// Get returns the document linked to sourceFileID. ok is false when no
// mapping exists.
func (s *Store) Get(ctx context.Context, sourceFileID string) (string, bool, error) {
	mapping, err := s.Lookup(ctx, sourceFileID)
	if err != nil || mapping == nil {
		return "", false, err
	}
	return mapping.DocumentID, true, nil
}

// Lookup returns the full mapping record, or nil when absent.
func (s *Store) Lookup(ctx context.Context, sourceFileID string) (*Mapping, error) {
	var m *Mapping
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT source_file_id, document_id, created_at, updated_at
             FROM file_mappings WHERE source_file_id = ?`,
			strings.TrimSpace(sourceFileID),
		)
		scanned, err := scanMapping(row)
		if errors.Is(err, sql.ErrNoRows) {
			m = nil
			return nil
		}
		m = scanned
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

// List returns the most recently updated mappings first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Mapping, error) {
	query := `SELECT source_file_id, document_id, created_at, updated_at
              FROM file_mappings ORDER BY updated_at DESC, source_file_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	return out, nil
}

// Delete removes a mapping and reports whether one existed.
func (s *Store) Delete(ctx context.Context, sourceFileID string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_mappings WHERE source_file_id = ?`, strings.TrimSpace(sourceFileID))
	if err != nil {
		return false, fmt.Errorf("delete mapping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of stored mappings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM file_mappings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mappings: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*Mapping, error) {
	var (
		m                Mapping
		created, updated string
	)
	if err := row.Scan(&m.SourceFileID, &m.DocumentID, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if m.CreatedAt, err = parseTimeString(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTimeString(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &m, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
