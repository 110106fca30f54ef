package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"transponster/internal/chat"
	"transponster/internal/codec"
	"transponster/internal/logging"
	"transponster/internal/services"
	"transponster/internal/translate"
)

// maxTranslationBytes caps the size of a text file accepted for translation.
const maxTranslationBytes = 8 << 20

// Translation is the output of the text pipeline.
type Translation struct {
	Format codec.Format
	Output string
	Result translate.Result
	Spans  int
}

// LanguageFor maps a reaction name to its configured language tag.
func (m *Manager) LanguageFor(reaction string) (string, bool) {
	key := strings.Trim(strings.ToLower(strings.TrimSpace(reaction)), ":")
	// Skin-tone variants arrive as "name::skin-tone-2".
	if base, _, found := strings.Cut(key, "::"); found {
		key = base
	}
	lang, ok := m.cfg.Translation.Reactions[key]
	return lang, ok && lang != ""
}

// HandleReaction translates the transcript or subtitle files of the reacted
// message when the reaction names a configured language.
func (m *Manager) HandleReaction(ctx context.Context, event chat.ReactionAdded) {
	lang, ok := m.LanguageFor(event.Reaction)
	if !ok || m.isBot(event.UserID) {
		return
	}
	ctx = services.WithStage(ctx, "translate")
	logger := logging.WithContext(ctx, m.logger)

	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	msg, err := m.chat.ThreadMessage(callCtx, event.ChannelID, event.MessageTS)
	cancel()
	if err != nil {
		logging.WarnWithContext(logger, "reacted message lookup failed", "reaction_lookup_failed",
			logging.String(logging.FieldErrorHint, "check the bot token has channels:history"),
			logging.String(logging.FieldImpact, "reaction ignored"),
			logging.String("channel", event.ChannelID),
			logging.Error(err),
		)
		return
	}
	if msg.ThreadTS == "" {
		logger.Debug("reaction outside a thread ignored", logging.String("channel", event.ChannelID))
		return
	}
	threadTS := msg.ThreadTS

	for _, file := range msg.Files {
		format, ok := codec.DetectFormat(file.Name)
		if !ok {
			continue
		}
		if !m.claimTranslation(file.ID, lang) {
			logger.Info("translation already running", logging.String("filename", file.Name), logging.String("language", lang))
			continue
		}
		m.translateFile(services.WithFileID(ctx, file.ID), event.ChannelID, threadTS, file, format, lang)
		m.releaseTranslation(file.ID, lang)
	}
}

// translateFile posts exactly one final message for file: the upload comment
// on success or partial success, a reply on failure.
func (m *Manager) translateFile(ctx context.Context, channelID, threadTS string, file chat.File, format codec.Format, lang string) {
	logger := logging.WithContext(ctx, m.logger)
	fail := func(step string, err error) {
		logging.WarnWithContext(logger, "translation failed", "translation_failed",
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.String(logging.FieldImpact, "no translated file posted"),
			logging.String("step", step),
			logging.String("language", lang),
			logging.Error(err),
		)
		m.recordTranslation(false)
		if err != nil {
			m.recordError(err)
		}
		m.post(ctx, channelID, threadTS, TranslationFailedMessage(file.Name, lang, err))
	}

	downloadCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.DownloadTimeoutSeconds)
	var buf bytes.Buffer
	err := m.chat.Download(downloadCtx, file, &limitedWriter{w: &buf, remaining: maxTranslationBytes})
	cancel()
	if err != nil {
		fail("download", err)
		return
	}

	translation, err := m.TranslateText(ctx, file.Name, buf.String(), lang)
	if err != nil {
		fail("translate", err)
		return
	}
	if translation.Result.Failed() {
		fail("translate", nil)
		return
	}

	comment := TranslationDoneMessage(file.Name, lang)
	if translation.Result.Partial() {
		comment = TranslationPartialMessage(file.Name, lang, len(translation.Result.Untranslated), translation.Spans)
	}
	outputName := TranslatedName(file.Name, lang, format)
	uploadCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	uploaded, err := m.chat.Upload(uploadCtx, chat.Upload{
		ChannelID:      channelID,
		ThreadTS:       threadTS,
		Filename:       outputName,
		Title:          outputName,
		Content:        []byte(translation.Output),
		InitialComment: comment,
	})
	cancel()
	if err != nil {
		fail("upload", err)
		return
	}
	m.recordTranslation(true)
	logger.Info("translation posted",
		logging.String("filename", outputName),
		logging.String("language", lang),
		logging.Int("spans", translation.Spans),
		logging.Int("untranslated", len(translation.Result.Untranslated)),
		logging.Int("requests", translation.Result.Requests),
	)

	m.appendTranslation(ctx, file.ID, uploaded.ID, lang, translation.Output)
}

// appendTranslation adds the translation to the document mapped to the
// source file and maps the translated upload to the same document.
func (m *Manager) appendTranslation(ctx context.Context, sourceID, translatedID, lang, text string) {
	if m.documents == nil || m.mappings == nil {
		return
	}
	ctx = services.WithStage(ctx, "document")
	logger := logging.WithContext(ctx, m.logger)
	docID, ok, err := m.mappings.Get(ctx, sourceID)
	if err != nil {
		logging.WarnWithContext(logger, "mapping lookup failed", "mapping_get_failed",
			logging.String(logging.FieldErrorHint, "check the mappings database"),
			logging.String(logging.FieldImpact, "translation not appended to the document"),
			logging.Error(err),
		)
		return
	}
	if !ok {
		logger.Debug("no document mapped for file")
		return
	}

	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.DocumentTimeoutSeconds)
	defer cancel()
	if err := m.documents.Append(callCtx, docID, TranslationHeading(lang), text); err != nil {
		logging.WarnWithContext(logger, "document append failed", "drive_append_failed",
			logging.String(logging.FieldErrorHint, "check the document still exists and is writable"),
			logging.String(logging.FieldImpact, "translation only available in the thread"),
			logging.String("document_id", docID),
			logging.Error(err),
		)
		m.recordError(err)
		return
	}
	if translatedID != "" {
		if err := m.mappings.Put(ctx, translatedID, docID); err != nil {
			logger.Debug("translated file mapping not saved", logging.Error(err))
		}
	}
}

// TranslateText parses raw by the format implied by name, translates every
// span into lang and rebuilds the file. Spans that could not be translated
// keep their original text; the result reports which.
func (m *Manager) TranslateText(ctx context.Context, name, raw, lang string) (Translation, error) {
	format, ok := codec.DetectFormat(name)
	if !ok {
		return Translation{}, services.Wrap(services.ErrValidation, "translate", "detect format", fmt.Sprintf("%s is not a .txt or .srt file", name), nil)
	}
	entries, err := codec.Parse(format, raw)
	if err != nil {
		return Translation{}, err
	}
	units := translate.UnitsFromEntries(entries)
	result, err := m.translator.Translate(ctx, units, lang)
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		Format: format,
		Output: codec.Rebuild(format, entries, translate.Translations(result.Units)),
		Result: result,
		Spans:  len(units),
	}, nil
}

// TranslatedName derives "<stem>_<lang>.<ext>" from the source filename.
func TranslatedName(name, lang string, format codec.Format) string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	return stem + "_" + lang + format.Extension()
}

func (m *Manager) claimTranslation(fileID, lang string) bool {
	key := fileID + "|" + lang
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[key]; busy {
		return false
	}
	m.inflight[key] = struct{}{}
	return true
}

func (m *Manager) releaseTranslation(fileID, lang string) {
	m.mu.Lock()
	delete(m.inflight, fileID+"|"+lang)
	m.mu.Unlock()
}

// limitedWriter fails once more than remaining bytes are written.
type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.remaining {
		return 0, services.Wrap(services.ErrValidation, "translate", "download", "file too large to translate", nil)
	}
	l.remaining -= int64(len(p))
	return l.w.Write(p)
}
