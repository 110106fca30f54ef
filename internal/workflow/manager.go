package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"transponster/internal/batching"
	"transponster/internal/chat"
	"transponster/internal/config"
	"transponster/internal/logging"
	"transponster/internal/notifications"
	"transponster/internal/services"
	"transponster/internal/services/gdrive"
	"transponster/internal/transcript"
	"transponster/internal/translate"
)

// Transcriber converts media into a timed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, r io.Reader) (transcript.Result, error)
}

// Translator translates spans into a target language.
type Translator interface {
	Translate(ctx context.Context, units []translate.Unit, targetLanguage string) (translate.Result, error)
}

// Documents stores transcripts as documents grouped per uploader.
type Documents interface {
	EnsureFolder(ctx context.Context, owner string) (gdrive.Document, bool, error)
	Create(ctx context.Context, folderID, name, text string) (gdrive.Document, error)
	Append(ctx context.Context, documentID, heading, text string) error
}

// MappingStore links uploaded chat files to their documents.
type MappingStore interface {
	Put(ctx context.Context, sourceFileID, documentID string) error
	Get(ctx context.Context, sourceFileID string) (string, bool, error)
}

// Manager coordinates the transcription and translation pipelines.
type Manager struct {
	cfg         *config.Config
	chat        chat.Platform
	transcriber Transcriber
	translator  Translator
	documents   Documents
	mappings    MappingStore
	notifier    notifications.Service
	logger      *slog.Logger
	botUserID   string
	batcher     *batching.Batcher

	mu       sync.RWMutex
	running  bool
	lastErr  error
	inflight map[string]struct{}
	counters counters
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithDocuments enables document storage. Translations are appended to the
// document a mapping points at.
func WithDocuments(docs Documents) Option {
	return func(m *Manager) {
		m.documents = docs
	}
}

// WithMappings sets the store that links uploaded files to documents.
func WithMappings(store MappingStore) Option {
	return func(m *Manager) {
		m.mappings = store
	}
}

// WithNotifier sets the operator notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBotUserID makes the manager ignore events caused by the bot itself.
func WithBotUserID(id string) Option {
	return func(m *Manager) {
		m.botUserID = strings.TrimSpace(id)
	}
}

// NewManager constructs a manager. Start must be called before events are
// accepted.
func NewManager(cfg *config.Config, platform chat.Platform, transcriber Transcriber, translator Translator, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		chat:        platform,
		transcriber: transcriber,
		translator:  translator,
		notifier:    notifications.NewService(cfg),
		logger:      logging.NewNop(),
		inflight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "workflow")
	m.batcher = batching.New(cfg.BatchWindow(), m.processBatch,
		batching.WithRetention(cfg.DedupRetention()),
		batching.WithLogger(m.logger),
	)
	return m
}

// Start begins accepting uploads. Batches run under ctx; cancelling it aborts
// in-flight work.
func (m *Manager) Start(ctx context.Context) error {
	if m.chat == nil || m.transcriber == nil || m.translator == nil {
		return errors.New("workflow manager requires chat, transcriber and translator")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow manager already running")
	}
	if err := m.batcher.Start(ctx); err != nil {
		return err
	}
	m.running = true
	m.logger.Info("workflow manager started",
		logging.Duration("batch_window", m.cfg.BatchWindow()),
		logging.Int("max_parallel_files", m.parallelism()),
		logging.Bool("documents_enabled", m.documents != nil),
	)
	return nil
}

// Stop reports batches still collecting as interrupted and waits for
// running ones.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.batcher.Stop()
	m.logger.Info("workflow manager stopped")
}

// HandleFileShared resolves the thread a file was shared in and queues it
// for its batch.
func (m *Manager) HandleFileShared(ctx context.Context, event chat.FileShared) {
	ctx = services.WithFileID(ctx, event.FileID)
	logger := logging.WithContext(ctx, m.logger)
	if event.ChannelID == "" || event.FileID == "" {
		logger.Debug("ignoring file event without channel", logging.String("user_id", event.UserID))
		return
	}
	if m.isBot(event.UserID) {
		return
	}

	callCtx, cancel := m.withTimeout(ctx, m.cfg.Workflow.UploadTimeoutSeconds)
	info, err := m.chat.FileInfo(callCtx, event.FileID)
	cancel()
	if err != nil {
		logging.WarnWithContext(logger, "file info lookup failed", "file_info_failed",
			logging.String(logging.FieldErrorHint, "check the bot token scopes include files:read"),
			logging.String(logging.FieldImpact, "upload not processed"),
			logging.Error(err),
		)
		m.recordError(err)
		m.post(ctx, event.ChannelID, "", ErrorMessage(event.FileID, err))
		return
	}
	if info.IsCanvas() || m.isBot(info.UserID) {
		logger.Debug("ignoring file", logging.String("filetype", info.Filetype), logging.String("owner", info.UserID))
		return
	}

	upload := batching.UploadEvent{
		FileID:     event.FileID,
		ChannelID:  event.ChannelID,
		ThreadTS:   info.ThreadIn(event.ChannelID),
		UserID:     firstNonEmpty(event.UserID, info.UserID),
		Filename:   info.Name,
		ReceivedAt: time.Now(),
	}
	if !m.batcher.Submit(upload) {
		logger.Debug("upload event absorbed", logging.String("channel", event.ChannelID))
		return
	}
	logger.Info("upload queued",
		logging.String(logging.FieldBatchKey, upload.Key().String()),
		logging.String("filename", upload.Filename),
	)
}

func (m *Manager) isBot(userID string) bool {
	return m.botUserID != "" && userID == m.botUserID
}

func (m *Manager) parallelism() int {
	if n := m.cfg.Workflow.MaxParallelFiles; n > 0 {
		return n
	}
	return 1
}

// withTimeout bounds one external call. Non-positive seconds only inherit
// the parent's deadline.
func (m *Manager) withTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if d := config.Seconds(seconds); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// post sends a thread reply. Delivery failures are logged, never returned:
// there is no other channel to report them on.
func (m *Manager) post(ctx context.Context, channelID, threadTS, text string) bool {
	callCtx, cancel := m.withTimeout(context.WithoutCancel(ctx), m.cfg.Workflow.UploadTimeoutSeconds)
	defer cancel()
	if err := m.chat.PostMessage(callCtx, channelID, threadTS, text); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "chat reply failed", "chat_post_failed",
			logging.String(logging.FieldErrorHint, "check the bot is a member of the channel"),
			logging.String(logging.FieldImpact, "user did not receive a status message"),
			logging.String("channel", channelID),
			logging.Error(err),
		)
		m.recordError(err)
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
