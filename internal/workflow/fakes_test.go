package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transponster/internal/chat"
	"transponster/internal/config"
	"transponster/internal/services"
	"transponster/internal/services/gdrive"
	"transponster/internal/testsupport"
	"transponster/internal/transcript"
	"transponster/internal/translate"
	"transponster/internal/workflow"
)

type post struct {
	channel, thread, text string
}

type fakeChat struct {
	mu        sync.Mutex
	files     map[string]chat.File
	content   map[string]string
	messages  map[string]chat.Message
	infoErr   map[string]error
	uploadErr error
	posts     []post
	uploads   []chat.Upload
	nextID    int
	posted    chan post
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		files:    map[string]chat.File{},
		content:  map[string]string{},
		messages: map[string]chat.Message{},
		infoErr:  map[string]error{},
		posted:   make(chan post, 64),
	}
}

func (f *fakeChat) addFile(file chat.File, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file.Size == 0 {
		file.Size = int64(len(content))
	}
	f.files[file.ID] = file
	f.content[file.ID] = content
}

func (f *fakeChat) FileInfo(_ context.Context, fileID string) (chat.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.infoErr[fileID]; err != nil {
		return chat.File{}, err
	}
	file, ok := f.files[fileID]
	if !ok {
		return chat.File{}, services.Wrap(services.ErrNotFound, "slack", "files.info", fileID, nil)
	}
	return file, nil
}

func (f *fakeChat) Download(_ context.Context, file chat.File, w io.Writer) error {
	f.mu.Lock()
	content, ok := f.content[file.ID]
	f.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "slack", "download", file.ID, nil)
	}
	_, err := io.WriteString(w, content)
	return err
}

func (f *fakeChat) Upload(_ context.Context, upload chat.Upload) (chat.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return chat.File{}, f.uploadErr
	}
	f.nextID++
	id := fmt.Sprintf("FUP%d", f.nextID)
	f.uploads = append(f.uploads, upload)
	file := chat.File{ID: id, Name: upload.Filename, Threads: map[string]string{upload.ChannelID: upload.ThreadTS}}
	f.files[id] = file
	f.content[id] = string(upload.Content)
	return file, nil
}

func (f *fakeChat) PostMessage(_ context.Context, channelID, threadTS, text string) error {
	p := post{channel: channelID, thread: threadTS, text: text}
	f.mu.Lock()
	f.posts = append(f.posts, p)
	f.mu.Unlock()
	f.posted <- p
	return nil
}

func (f *fakeChat) ThreadMessage(_ context.Context, channelID, ts string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[channelID+"/"+ts]
	if !ok {
		return chat.Message{}, services.Wrap(services.ErrNotFound, "slack", "conversations.replies", ts, nil)
	}
	return msg, nil
}

func (f *fakeChat) UserName(_ context.Context, userID string) (string, error) {
	return "name-" + userID, nil
}

func (f *fakeChat) uploadsSnapshot() []chat.Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Upload(nil), f.uploads...)
}

// waitPosts returns once n messages have been posted.
func (f *fakeChat) waitPosts(t *testing.T, n int) []post {
	t.Helper()
	out := make([]post, 0, n)
	deadline := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case p := <-f.posted:
			out = append(out, p)
		case <-deadline:
			t.Fatalf("timed out after %d of %d messages", len(out), n)
		}
	}
	return out
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	empty map[string]bool
}

func (f *fakeTranscriber) Transcribe(_ context.Context, filename string, r io.Reader) (transcript.Result, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return transcript.Result{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, filename)
	failure := f.fail[filename]
	empty := f.empty[filename]
	f.mu.Unlock()
	if failure != nil {
		return transcript.Result{}, failure
	}
	if empty {
		return transcript.Result{}, nil
	}
	return transcript.Result{
		Text:         string(body),
		LanguageCode: "ukr",
		Words: []transcript.Word{
			{Text: "Привіт", Start: 0, End: 0.5, Type: transcript.TokenWord, SpeakerID: "speaker_0"},
			{Text: " ", Start: 0.5, End: 0.6, Type: transcript.TokenSpacing, SpeakerID: "speaker_0"},
			{Text: "світе", Start: 0.6, End: 1.2, Type: transcript.TokenWord, SpeakerID: "speaker_0"},
		},
	}, nil
}

// prefixModel translates by tagging each text with the language.
type prefixModel struct {
	mu    sync.Mutex
	fail  bool
	block chan struct{}
	calls int
}

func (p *prefixModel) TranslateBatch(ctx context.Context, texts []string, lang string) ([]string, error) {
	p.mu.Lock()
	p.calls++
	fail, block := p.fail, p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, services.Wrap(services.ErrTransport, "llm", "chat", "unavailable", nil)
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = "[" + lang + "] " + text
	}
	return out, nil
}

type fakeDocs struct {
	mu       sync.Mutex
	created  []string
	appended map[string][]string
	folders  int
	fail     bool
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{appended: map[string][]string{}}
}

func (f *fakeDocs) EnsureFolder(_ context.Context, owner string) (gdrive.Document, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return gdrive.Document{}, false, errors.New("drive down")
	}
	f.folders++
	return gdrive.Document{ID: "folder-" + owner, Name: owner, Link: "https://drive/folder-" + owner}, f.folders == 1, nil
}

func (f *fakeDocs) Create(_ context.Context, folderID, name, _ string) (gdrive.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	id := fmt.Sprintf("doc-%d", len(f.created))
	return gdrive.Document{ID: id, Name: gdrive.DocumentName(name), Link: "https://docs/" + id}, nil
}

func (f *fakeDocs) Append(_ context.Context, documentID, heading, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[documentID] = append(f.appended[documentID], heading+"\n"+text)
	return nil
}

type harness struct {
	cfg     *config.Config
	chat    *fakeChat
	stt     *fakeTranscriber
	model   *prefixModel
	manager *workflow.Manager
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBatchWindowMillis(80))
	h := &harness{
		cfg:   cfg,
		chat:  newFakeChat(),
		stt:   &fakeTranscriber{fail: map[string]error{}, empty: map[string]bool{}},
		model: &prefixModel{},
	}
	h.manager = workflow.NewManager(cfg, h.chat, h.stt, newTranslator(h.model), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.manager.Start(ctx))
	t.Cleanup(func() {
		h.manager.Stop()
		cancel()
	})
	return h
}

func (h *harness) share(fileID, channel string) {
	h.manager.HandleFileShared(context.Background(), chat.FileShared{FileID: fileID, ChannelID: channel, UserID: "U1"})
}

func mediaFile(id, name, channel, thread string) chat.File {
	return chat.File{ID: id, Name: name, Mimetype: "audio/mpeg", Filetype: "mp3", UserID: "U1", Threads: map[string]string{channel: thread}}
}

func containsAll(t *testing.T, text string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		require.True(t, strings.Contains(text, fragment), "expected %q in %q", fragment, text)
	}
}

// blockingTranscriber holds every call until release is closed or the
// context ends.
type blockingTranscriber struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, _ string, _ io.Reader) (transcript.Result, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return transcript.Result{Text: "late"}, nil
	case <-ctx.Done():
		return transcript.Result{}, ctx.Err()
	}
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, units []translate.Unit, _ string) (translate.Result, error) {
	return translate.Result{Units: units}, nil
}

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

// failAfterModel answers the first limit requests and fails the rest.
type failAfterModel struct {
	mu    sync.Mutex
	limit int
	calls int
}

func (f *failAfterModel) TranslateBatch(ctx context.Context, texts []string, lang string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	over := f.calls > f.limit
	f.mu.Unlock()
	if over {
		return nil, services.Wrap(services.ErrQuota, "llm", "chat", "rate limited", nil)
	}
	return (&prefixModel{}).TranslateBatch(ctx, texts, lang)
}

func newTranslator(model translate.Model) *translate.Translator {
	return translate.New(model, translate.WithMaxBatchItems(2))
}
