package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"transponster/internal/batching"
	"transponster/internal/chat"
	"transponster/internal/logging"
	"transponster/internal/services"
	"transponster/internal/services/gdrive"
	"transponster/internal/transcript"
)

// processFile runs one upload from metadata lookup to document creation.
func (m *Manager) processFile(ctx context.Context, event batching.UploadEvent, target folderTarget) outcome {
	ctx = services.WithFileID(ctx, event.FileID)
	name := firstNonEmpty(event.Filename, event.FileID)
	logger := logging.WithContext(ctx, m.logger)

	infoCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	info, err := m.chat.FileInfo(infoCtx, event.FileID)
	cancel()
	if err != nil {
		return m.failed(ctx, event.FileID, name, "file_info", err)
	}
	name = firstNonEmpty(info.Name, name)

	if !info.IsMedia() {
		logger.Info("rejected non-media upload", logging.String("mimetype", info.Mimetype), logging.String("filename", name))
		return outcome{fileID: event.FileID, name: name, failure: NotMediaMessage(name)}
	}
	if limit := m.cfg.MaxFileBytes(); limit > 0 && info.Size > limit {
		logger.Info("rejected oversized upload", logging.Int64("size", info.Size), logging.Int64("limit", limit))
		return outcome{fileID: event.FileID, name: name, failure: TooLargeMessage(name, m.cfg.Workflow.MaxFileMB)}
	}

	path, err := m.download(ctx, info)
	if err != nil {
		return m.failed(ctx, event.FileID, name, "download", err)
	}
	defer os.Remove(path)

	result, err := m.transcribe(ctx, path, name)
	if err != nil {
		return m.failed(ctx, event.FileID, name, "transcribe", err)
	}
	if result.Empty() {
		logger.Info("no speech recognised", logging.String("filename", name))
		return outcome{fileID: event.FileID, name: name, failure: NoSpeechMessage(name)}
	}

	out := outcome{fileID: event.FileID, name: name}
	mode := transcript.ModeFor(name)
	var transcriptFile *chat.File
	var text string
	if mode.WantsTranscript() {
		text = transcript.RenderTranscript(result)
		uploaded, err := m.upload(ctx, event, info.Stem()+".txt", text, UploadComment(false, name))
		if err != nil {
			return m.failed(ctx, event.FileID, name, "upload", err)
		}
		out.uploads = append(out.uploads, uploaded)
		transcriptFile = &uploaded
	}
	if mode.WantsSubtitles() {
		maxDuration := time.Duration(m.cfg.Workflow.SubtitleMaxSeconds * float64(time.Second))
		srt := transcript.RenderSubtitles(result, m.cfg.Workflow.SubtitleMaxChars, maxDuration)
		uploaded, err := m.upload(ctx, event, info.Stem()+".srt", srt, UploadComment(true, name))
		if err != nil {
			return m.failed(ctx, event.FileID, name, "upload", err)
		}
		out.uploads = append(out.uploads, uploaded)
	}

	if target.enabled && transcriptFile != nil {
		out.doc = m.storeDocument(ctx, target.folder, transcriptFile.ID, info.Stem()+".txt", text)
	}
	logger.Info("file processed",
		logging.String("filename", name),
		logging.String("mode", string(mode)),
		logging.String("language", result.LanguageCode),
		logging.Int("uploads", len(out.uploads)),
	)
	return out
}

func (m *Manager) download(ctx context.Context, info chat.File) (string, error) {
	ctx = services.WithStage(ctx, "download")
	dir := filepath.Join(m.cfg.Paths.DataDir, "downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "download", "mkdir", dir, err)
	}
	file, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(info.Name))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "download", "create temp file", "", err)
	}

	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.DownloadTimeoutSeconds)
	defer cancel()
	err = m.chat.Download(callCtx, info, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func (m *Manager) transcribe(ctx context.Context, path, name string) (transcript.Result, error) {
	ctx = services.WithStage(ctx, "transcribe")
	file, err := os.Open(path)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("open download: %w", err)
	}
	defer file.Close()

	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.TranscribeTimeoutSeconds)
	defer cancel()
	started := time.Now()
	result, err := m.transcriber.Transcribe(callCtx, name, file)
	if err != nil {
		return transcript.Result{}, err
	}
	logging.WithContext(ctx, m.logger).Debug("transcription received",
		logging.Int("words", len(result.Words)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (m *Manager) upload(ctx context.Context, event batching.UploadEvent, filename, content, comment string) (chat.File, error) {
	ctx = services.WithStage(ctx, "upload")
	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	defer cancel()
	return m.chat.Upload(callCtx, chat.Upload{
		ChannelID:      event.ChannelID,
		ThreadTS:       event.ThreadTS,
		Filename:       filename,
		Title:          filename,
		Content:        []byte(content),
		InitialComment: comment,
	})
}

// storeDocument creates the transcript document and maps the uploaded
// transcript to it. Failures only cost the document link.
func (m *Manager) storeDocument(ctx context.Context, folder gdrive.Document, uploadedID, name, text string) *gdrive.Document {
	ctx = services.WithStage(ctx, "document")
	logger := logging.WithContext(ctx, m.logger)
	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.DocumentTimeoutSeconds)
	defer cancel()

	doc, err := m.documents.Create(callCtx, folder.ID, name, text)
	if err != nil {
		logging.WarnWithContext(logger, "document creation failed", "drive_upload_failed",
			logging.String(logging.FieldErrorHint, "check Drive quota and service account permissions"),
			logging.String(logging.FieldImpact, "no document link for this file"),
			logging.Error(err),
		)
		m.recordError(err)
		return nil
	}
	if m.mappings != nil && uploadedID != "" {
		if err := m.mappings.Put(ctx, uploadedID, doc.ID); err != nil {
			logging.WarnWithContext(logger, "mapping not saved", "mapping_put_failed",
				logging.String(logging.FieldErrorHint, "check the mappings database is writable"),
				logging.String(logging.FieldImpact, "translations of this transcript will not reach the document"),
				logging.String("document_id", doc.ID),
				logging.Error(err),
			)
		}
	}
	return &doc
}

// failed logs a file failure and builds its outcome.
func (m *Manager) failed(ctx context.Context, fileID, name, stage string, err error) outcome {
	ctx = services.WithStage(ctx, stage)
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "file skipped, other files in the batch continue"),
		logging.String("error_kind", string(services.FailureKind(err))),
		logging.String("filename", name),
		logging.Error(err),
	}
	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "file processing failed", "file_failed", attrs...)
	m.recordError(err)
	if services.FailureKind(err) != services.KindCanceled {
		if notifyErr := m.notifier.NotifyError(context.WithoutCancel(ctx), err, name); notifyErr != nil {
			m.logger.Debug("error notification failed", logging.Error(notifyErr))
		}
	}
	return outcome{fileID: fileID, name: name, failure: ErrorMessage(name, err), err: err}
}

func hintFor(err error) string {
	switch services.FailureKind(err) {
	case services.KindQuota:
		return "check the provider's usage limits"
	case services.KindConfiguration:
		return "check API keys and token scopes in the config file"
	case services.KindTimeout:
		return "raise the workflow timeouts or retry with a shorter file"
	case services.KindCanceled:
		return "daemon shutting down"
	case services.KindNotFound:
		return "the file was deleted before it could be processed"
	default:
		return "check logs for details"
	}
}
