package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transponster/internal/batching"
	"transponster/internal/chat"
	"transponster/internal/logging"
	"transponster/internal/services"
	"transponster/internal/services/gdrive"
)

// outcome is the result of processing one file of a batch. failure holds the
// user-facing text when the file did not produce a transcript.
type outcome struct {
	fileID  string
	name    string
	failure string
	err     error
	uploads []chat.File
	doc     *gdrive.Document
}

func (o outcome) ok() bool {
	return o.failure == ""
}

// folderTarget is the uploader's document folder for one batch.
type folderTarget struct {
	folder  gdrive.Document
	created bool
	enabled bool
}

// processBatch is the batching.Action for uploads.
func (m *Manager) processBatch(ctx context.Context, batch batching.Batch) error {
	started := time.Now()
	logger := logging.WithContext(ctx, m.logger)
	key := batch.Key
	logger.Info("batch started",
		logging.Int("files", len(batch.Events)),
		logging.Duration("waited", batch.FlushedAt.Sub(batch.FirstSeen)),
	)

	m.post(ctx, key.ChannelID, key.ThreadTS, AckMessage(len(batch.Events)))
	target := m.resolveFolder(ctx, batch.UserID())

	outcomes := make([]outcome, len(batch.Events))
	sem := make(chan struct{}, m.parallelism())
	var wg sync.WaitGroup
	for i, event := range batch.Events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = m.guardedFile(ctx, sem, event, target)
		}()
	}
	wg.Wait()

	succeeded, failed := 0, 0
	var (
		docs  []gdrive.Document
		names []string
	)
	for _, out := range outcomes {
		if out.ok() {
			succeeded++
		} else {
			failed++
		}
		if out.doc != nil {
			docs = append(docs, *out.doc)
			names = append(names, out.name)
		}
	}

	summary := SummaryMessage(outcomes)
	if drive := DriveMessage(target.folder, target.created, docs, names); drive != "" {
		summary += "\n\n" + drive
	}
	delivered := m.post(ctx, key.ChannelID, key.ThreadTS, summary)

	elapsed := time.Since(started)
	m.recordBatch(succeeded, failed)
	logger.Info("batch finished",
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Int("documents", len(docs)),
		logging.Duration("elapsed", elapsed),
	)
	if err := m.notifier.NotifyBatchCompleted(context.WithoutCancel(ctx), key.String(), succeeded, failed, elapsed); err != nil {
		logger.Debug("batch notification failed", logging.Error(err))
	}
	if !delivered {
		return fmt.Errorf("batch %s: summary message not delivered", key)
	}
	return nil
}

// guardedFile waits for a processing slot and contains panics so one bad
// file cannot take the batch down.
func (m *Manager) guardedFile(ctx context.Context, sem chan struct{}, event batching.UploadEvent, target folderTarget) (out outcome) {
	name := firstNonEmpty(event.Filename, event.FileID)
	if err := ctx.Err(); err != nil {
		return m.failed(ctx, event.FileID, name, "queue", err)
	}
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return m.failed(ctx, event.FileID, name, "queue", ctx.Err())
	}
	defer func() { <-sem }()
	defer func() {
		if r := recover(); r != nil {
			out = m.failed(ctx, event.FileID, name, "panic", fmt.Errorf("panic: %v", r))
		}
	}()
	return m.processFile(ctx, event, target)
}

// resolveFolder finds or creates the uploader's folder once per batch.
// Failures disable documents for the batch only.
func (m *Manager) resolveFolder(ctx context.Context, userID string) folderTarget {
	if m.documents == nil || userID == "" || ctx.Err() != nil {
		return folderTarget{}
	}
	ctx = services.WithStage(ctx, "document")
	logger := logging.WithContext(ctx, m.logger)

	nameCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	owner, err := m.chat.UserName(nameCtx, userID)
	cancel()
	if err != nil || owner == "" {
		logging.WarnWithContext(logger, "uploader name lookup failed", "user_lookup_failed",
			logging.String(logging.FieldErrorHint, "check the bot token has users:read"),
			logging.String(logging.FieldImpact, "falling back to the user id as folder name"),
			logging.String("user_id", userID),
			logging.Error(err),
		)
		owner = userID
	}

	folderCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.DocumentTimeoutSeconds)
	defer cancel()
	folder, created, err := m.documents.EnsureFolder(folderCtx, owner)
	if err != nil {
		logging.WarnWithContext(logger, "document folder unavailable", "drive_folder_failed",
			logging.String(logging.FieldErrorHint, "check the service account can write to the shared drive"),
			logging.String(logging.FieldImpact, "batch transcripts are not stored as documents"),
			logging.String("owner", owner),
			logging.Error(err),
		)
		m.recordError(err)
		return folderTarget{}
	}
	if created {
		logger.Info("document folder created", logging.String("owner", owner), logging.String("folder_id", folder.ID))
	}
	return folderTarget{folder: folder, created: created, enabled: true}
}
