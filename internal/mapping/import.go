package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// ImportStats summarizes an ImportJSON run.
type ImportStats struct {
	Imported int
	Skipped  int
}

// ImportJSON loads a legacy mapping file, a JSON object of source file id to
// document id. Existing mappings are kept unless overwrite is set. The import
// is a single transaction.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, overwrite bool) (ImportStats, error) {
	var legacy map[string]string
	if err := json.NewDecoder(r).Decode(&legacy); err != nil {
		return ImportStats{}, fmt.Errorf("decode legacy mappings: %w", err)
	}

	keys := make([]string, 0, len(legacy))
	for key := range legacy {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	statement := `INSERT INTO file_mappings (source_file_id, document_id, created_at, updated_at)
                  VALUES (?, ?, ?, ?) ON CONFLICT(source_file_id) DO NOTHING`
	if overwrite {
		statement = `INSERT INTO file_mappings (source_file_id, document_id, created_at, updated_at)
                     VALUES (?, ?, ?, ?) ON CONFLICT(source_file_id) DO UPDATE SET
                         document_id = excluded.document_id, updated_at = excluded.updated_at`
	}

	var stats ImportStats
	err := retryOnBusy(ctx, func() error {
		stats = ImportStats{}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		timestamp := s.now().UTC().Format(time.RFC3339Nano)
		for _, key := range keys {
			source := strings.TrimSpace(key)
			document := strings.TrimSpace(legacy[key])
			if source == "" || document == "" {
				stats.Skipped++
				continue
			}
			res, err := tx.ExecContext(ctx, statement, source, document, timestamp, timestamp)
			if err != nil {
				return err
			}
			if affected, _ := res.RowsAffected(); affected > 0 {
				stats.Imported++
			} else {
				stats.Skipped++
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return ImportStats{}, fmt.Errorf("import legacy mappings: %w", err)
	}
	return stats, nil
}
