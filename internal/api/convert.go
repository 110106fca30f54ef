package api

import (
	"time"

	"transponster/internal/mapping"
	"transponster/internal/workflow"
)

// FromStatusSummary converts workflow counters into the API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:            summary.Running,
		PendingUploads:     summary.PendingUploads,
		ActiveTranslations: summary.ActiveTranslations,
		Batches:            summary.Batches,
		FilesSucceeded:     summary.FilesSucceeded,
		FilesFailed:        summary.FilesFailed,
		Translations:       summary.Translations,
		TranslationsFailed: summary.TranslationsFailed,
		LastBatchAt:        FormatTime(summary.LastBatchAt),
		LastError:          summary.LastError,
	}
}

// FromMapping converts a stored mapping.
func FromMapping(m mapping.Mapping) Mapping {
	return Mapping{
		SourceFileID: m.SourceFileID,
		DocumentID:   m.DocumentID,
		CreatedAt:    FormatTime(m.CreatedAt),
		UpdatedAt:    FormatTime(m.UpdatedAt),
	}
}

// FromMappings converts a slice, never returning nil.
func FromMappings(list []mapping.Mapping) []Mapping {
	out := make([]Mapping, 0, len(list))
	for _, m := range list {
		out = append(out, FromMapping(m))
	}
	return out
}

// FormatTime renders t in UTC, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
