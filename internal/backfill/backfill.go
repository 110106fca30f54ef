// Package backfill links transcripts posted before the mapping store existed
// to their Drive documents, matching by filename stem.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"transponster/internal/chat"
	"transponster/internal/logging"
	"transponster/internal/services/gdrive"
)

// FileLister lists chat files created since a point in time.
type FileLister interface {
	FilesSince(ctx context.Context, since time.Time, types string) ([]chat.File, error)
}

// DocumentFinder finds documents by name.
type DocumentFinder interface {
	FindDocuments(ctx context.Context, name string) ([]gdrive.Document, error)
}

// Store reads and writes mappings.
type Store interface {
	Get(ctx context.Context, sourceFileID string) (string, bool, error)
	Put(ctx context.Context, sourceFileID, documentID string) error
}

// Outcome classifies one transcript.
type Outcome string

const (
	OutcomeMapped    Outcome = "mapped"
	OutcomeWouldMap  Outcome = "would map"
	OutcomeExisting  Outcome = "already mapped"
	OutcomeNoMatch   Outcome = "no match"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeError     Outcome = "error"
)

// Entry is the result for one transcript file.
type Entry struct {
	FileID     string
	Name       string
	Outcome    Outcome
	DocumentID string
	Detail     string
}

// Report summarizes a run.
type Report struct {
	Entries []Entry
}

// Count returns the number of entries with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Options controls a run.
type Options struct {
	Since  time.Time
	DryRun bool
	Logger *slog.Logger
}

// Run lists .txt files posted since opts.Since and maps each unmapped one to
// the single document whose name equals its stem. Lookups that fail are
// recorded per file; only the listing failure aborts the run.
func Run(ctx context.Context, files FileLister, docs DocumentFinder, store Store, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	listed, err := files.FilesSince(ctx, opts.Since, "text")
	if err != nil {
		return Report{}, fmt.Errorf("list files: %w", err)
	}

	var report Report
	for _, file := range listed {
		if !strings.EqualFold(path.Ext(file.Name), ".txt") {
			continue
		}
		entry := resolve(ctx, file, docs, store, opts.DryRun)
		if entry.Outcome == OutcomeError {
			logging.WarnWithContext(logger, "backfill lookup failed", "backfill_failed",
				logging.String(logging.FieldErrorHint, "rerun the backfill; mapped files are skipped"),
				logging.String(logging.FieldFileID, file.ID),
				logging.String("detail", entry.Detail),
			)
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

func resolve(ctx context.Context, file chat.File, docs DocumentFinder, store Store, dryRun bool) Entry {
	entry := Entry{FileID: file.ID, Name: file.Name}
	if existing, ok, err := store.Get(ctx, file.ID); err != nil {
		entry.Outcome, entry.Detail = OutcomeError, err.Error()
		return entry
	} else if ok {
		entry.Outcome, entry.DocumentID = OutcomeExisting, existing
		return entry
	}

	candidates, err := docs.FindDocuments(ctx, file.Name)
	if err != nil {
		entry.Outcome, entry.Detail = OutcomeError, err.Error()
		return entry
	}
	stem := stemKey(gdrive.DocumentName(file.Name))
	var matches []gdrive.Document
	for _, doc := range candidates {
		if stemKey(gdrive.DocumentName(doc.Name)) == stem {
			matches = append(matches, doc)
		}
	}

	switch len(matches) {
	case 0:
		entry.Outcome = OutcomeNoMatch
		return entry
	case 1:
	default:
		entry.Outcome = OutcomeAmbiguous
		entry.Detail = fmt.Sprintf("%d documents share the name", len(matches))
		return entry
	}

	entry.DocumentID = matches[0].ID
	if dryRun {
		entry.Outcome = OutcomeWouldMap
		return entry
	}
	if err := store.Put(ctx, file.ID, entry.DocumentID); err != nil {
		entry.Outcome, entry.Detail = OutcomeError, err.Error()
		return entry
	}
	entry.Outcome = OutcomeMapped
	return entry
}

// stemKey compares names case-insensitively across Unicode normalization
// forms.
func stemKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
