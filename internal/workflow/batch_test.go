package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transponster/internal/chat"
	"transponster/internal/services"
	"transponster/internal/testsupport"
	"transponster/internal/workflow"
)

func TestBatchAcknowledgesOnceAndSummarizesInOrder(t *testing.T) {
	h := newHarness(t)
	h.chat.addFile(mediaFile("F1", "interview.mp3", "C1", "100.1"), "audio-1")
	h.chat.addFile(mediaFile("F2", "notes.mp3", "C1", "100.1"), "audio-2")

	h.share("F1", "C1")
	h.share("F2", "C1")
	h.share("F1", "C1")

	posts := h.chat.waitPosts(t, 2)
	assert.Equal(t, workflow.AckMessage(2), posts[0].text)
	assert.Equal(t, "100.1", posts[0].thread)

	summary := posts[1].text
	containsAll(t, summary, "1. `interview.mp3`", "2. `notes.mp3`")
	assert.Less(t, strings.Index(summary, "interview.mp3"), strings.Index(summary, "notes.mp3"))

	uploads := h.chat.uploadsSnapshot()
	require.Len(t, uploads, 2)
	names := []string{uploads[0].Filename, uploads[1].Filename}
	assert.ElementsMatch(t, []string{"interview.txt", "notes.txt"}, names)
	for _, up := range uploads {
		assert.Equal(t, "100.1", up.ThreadTS)
		assert.Contains(t, up.InitialComment, "розшифровка")
		assert.Contains(t, string(up.Content), "[speaker_0]")
	}

	status := h.manager.Status()
	assert.Equal(t, 1, status.Batches)
	assert.Equal(t, 2, status.FilesSucceeded)
}

func TestBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	h.chat.addFile(mediaFile("F1", "good.mp3", "C1", "1.0"), "audio")
	h.chat.addFile(chat.File{ID: "F2", Name: "slides.pdf", Mimetype: "application/pdf", Filetype: "pdf", Threads: map[string]string{"C1": "1.0"}}, "pdf")
	h.chat.addFile(mediaFile("F3", "broken.mp3", "C1", "1.0"), "audio")
	big := mediaFile("F4", "huge.mp4", "C1", "1.0")
	big.Size = h.cfg.MaxFileBytes() + 1
	h.chat.addFile(big, "x")
	h.chat.addFile(mediaFile("F5", "silence.mp3", "C1", "1.0"), "audio")
	h.stt.fail["broken.mp3"] = services.Wrap(services.ErrQuota, "transcribe", "", "", errors.New("429"))
	h.stt.empty["silence.mp3"] = true

	for _, id := range []string{"F1", "F2", "F3", "F4", "F5"} {
		h.share(id, "C1")
	}

	posts := h.chat.waitPosts(t, 2)
	summary := posts[1].text
	containsAll(t, summary,
		"1. `good.mp3` :white_check_mark:",
		"2. "+workflow.NotMediaMessage("slides.pdf"),
		"3. :expressionless:",
		"4. "+workflow.TooLargeMessage("huge.mp4", 1000),
		"5. "+workflow.NoSpeechMessage("silence.mp3"),
	)
	assert.Contains(t, summary, "ліміт")

	require.Len(t, h.chat.uploadsSnapshot(), 1)
	status := h.manager.Status()
	assert.Equal(t, 1, status.FilesSucceeded)
	assert.Equal(t, 4, status.FilesFailed)
	assert.NotEmpty(t, status.LastError)
}

func TestBatchModeFromFilename(t *testing.T) {
	h := newHarness(t)
	h.chat.addFile(mediaFile("F1", "lecture subtitles.mp3", "C1", "5.5"), "a")
	h.chat.addFile(mediaFile("F2", "podcast обидва.mp3", "C1", "5.5"), "b")

	h.share("F1", "C1")
	h.share("F2", "C1")
	h.chat.waitPosts(t, 2)

	var names []string
	for _, up := range h.chat.uploadsSnapshot() {
		names = append(names, up.Filename)
		if strings.HasSuffix(up.Filename, ".srt") {
			assert.Contains(t, string(up.Content), "00:00:00,000 --> ")
			assert.Contains(t, up.InitialComment, "субтитри")
		}
	}
	assert.ElementsMatch(t, []string{"lecture subtitles.srt", "podcast обидва.txt", "podcast обидва.srt"}, names)
}

func TestBatchCreatesDocumentsAndMappings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	docs := newFakeDocs()
	h := newHarness(t, workflow.WithDocuments(docs), workflow.WithMappings(store))
	h.chat.addFile(mediaFile("F1", "call.m4a", "C1", "9.9"), "a")

	h.share("F1", "C1")
	posts := h.chat.waitPosts(t, 2)

	require.Equal(t, []string{"call.txt"}, docs.created)
	containsAll(t, posts[1].text, "Я створив для тебе <https://drive/folder-name-U1|папку>", "<https://docs/doc-1|Ось твоє посилання на файл>")

	uploads := h.chat.uploadsSnapshot()
	require.Len(t, uploads, 1)
	docID, ok, err := store.Get(context.Background(), "FUP1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-1", docID)
}

func TestBatchDocumentFailureKeepsTranscript(t *testing.T) {
	docs := newFakeDocs()
	docs.fail = true
	h := newHarness(t, workflow.WithDocuments(docs))
	h.chat.addFile(mediaFile("F1", "call.mp3", "C1", "9.9"), "a")

	h.share("F1", "C1")
	posts := h.chat.waitPosts(t, 2)

	assert.Contains(t, posts[1].text, "`call.mp3` :white_check_mark:")
	assert.NotContains(t, posts[1].text, "Google Drive")
	assert.Len(t, h.chat.uploadsSnapshot(), 1)
}

func TestFileSharedIgnoresCanvasBotAndMissingChannel(t *testing.T) {
	h := newHarness(t, workflow.WithBotUserID("UBOT"))
	h.chat.addFile(chat.File{ID: "F1", Name: "Canvas", Filetype: "quip", Threads: map[string]string{"C1": "1.0"}}, "")
	h.chat.addFile(chat.File{ID: "F2", Name: "own.txt", Filetype: "text", UserID: "UBOT", Threads: map[string]string{"C1": "1.0"}}, "x")
	h.chat.addFile(mediaFile("F3", "a.mp3", "C1", "1.0"), "a")

	h.share("F1", "C1")
	h.share("F2", "C1")
	h.manager.HandleFileShared(context.Background(), chat.FileShared{FileID: "F3", UserID: "U1"})

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, h.chat.posted)
	assert.Zero(t, h.manager.Status().PendingUploads)
}

func TestFileSharedReportsLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.chat.infoErr["F9"] = services.Wrap(services.ErrConfiguration, "slack", "files.info", "", errors.New("missing_scope"))

	h.share("F9", "C1")

	posts := h.chat.waitPosts(t, 1)
	assert.Equal(t, "C1", posts[0].channel)
	assert.Contains(t, posts[0].text, "`F9`")
}

func TestStopCancelsRunningBatch(t *testing.T) {
	h := newHarness(t)
	h.chat.addFile(mediaFile("F1", "a.mp3", "C1", "1.0"), "a")
	block := make(chan struct{})
	blocking := &blockingTranscriber{release: block, started: make(chan struct{})}
	manager := workflow.NewManager(h.cfg, h.chat, blocking, nil)
	require.Error(t, manager.Start(context.Background()), "translator is required")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	translator := &stubTranslator{}
	manager = workflow.NewManager(h.cfg, h.chat, blocking, translator)
	require.NoError(t, manager.Start(ctx))
	manager.HandleFileShared(ctx, chat.FileShared{FileID: "F1", ChannelID: "C1", UserID: "U1"})

	ack := h.chat.waitPosts(t, 1)
	assert.Equal(t, workflow.AckMessage(1), ack[0].text)
	<-blocking.started
	manager.Stop()

	summary := h.chat.waitPosts(t, 1)
	assert.Contains(t, summary[0].text, "перезапускаюся")
	close(block)
}

func TestStopReportsCollectingBatchAsInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatchWindowMillis(60_000))
	fc := newFakeChat()
	fc.addFile(mediaFile("F1", "a.mp3", "C1", "1.0"), "a")
	fc.addFile(mediaFile("F2", "b.mp3", "C1", "1.0"), "b")
	stt := &fakeTranscriber{fail: map[string]error{}, empty: map[string]bool{}}
	manager := workflow.NewManager(cfg, fc, stt, stubTranslator{})
	require.NoError(t, manager.Start(context.Background()))

	manager.HandleFileShared(context.Background(), chat.FileShared{FileID: "F1", ChannelID: "C1", UserID: "U1"})
	manager.HandleFileShared(context.Background(), chat.FileShared{FileID: "F2", ChannelID: "C1", UserID: "U1"})
	manager.Stop()

	posts := fc.waitPosts(t, 2)
	assert.Equal(t, workflow.AckMessage(2), posts[0].text)
	containsAll(t, posts[1].text, "a.mp3", "b.mp3", "перезапускаюся")
	assert.Empty(t, stt.calls)
	assert.Empty(t, fc.uploadsSnapshot())
}
