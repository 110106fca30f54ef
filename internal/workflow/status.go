package workflow

import (
	"context"
	"errors"
	"time"
)

type counters struct {
	batches            int
	filesSucceeded     int
	filesFailed        int
	translations       int
	translationsFailed int
	lastBatchAt        time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running            bool
	PendingUploads     int
	ActiveTranslations int
	Batches            int
	FilesSucceeded     int
	FilesFailed        int
	Translations       int
	TranslationsFailed int
	LastBatchAt        time.Time
	LastError          string
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:            m.running,
		ActiveTranslations: len(m.inflight),
		Batches:            m.counters.batches,
		FilesSucceeded:     m.counters.filesSucceeded,
		FilesFailed:        m.counters.filesFailed,
		Translations:       m.counters.translations,
		TranslationsFailed: m.counters.translationsFailed,
		LastBatchAt:        m.counters.lastBatchAt,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()
	summary.PendingUploads = m.batcher.Pending()
	return summary
}

func (m *Manager) recordBatch(succeeded, failed int) {
	m.mu.Lock()
	m.counters.batches++
	m.counters.filesSucceeded += succeeded
	m.counters.filesFailed += failed
	m.counters.lastBatchAt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) recordTranslation(ok bool) {
	m.mu.Lock()
	if ok {
		m.counters.translations++
	} else {
		m.counters.translationsFailed++
	}
	m.mu.Unlock()
}

// recordError keeps the most recent failure. Shutdown cancellations are not
// failures.
func (m *Manager) recordError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
