// Package chat defines the chat-platform contract the workflow depends on.
// The Slack adapter in services/slack implements it; tests use fakes.
package chat

import (
	"context"
	"io"
	"path"
	"strings"
)

// FileShared is a file-shared notification. Slack does not include the
// thread in the event, so the workflow resolves it through FileInfo.
type FileShared struct {
	FileID    string
	ChannelID string
	UserID    string
	EventTS   string
}

// ReactionAdded is a reaction on a message.
type ReactionAdded struct {
	Reaction  string
	UserID    string
	ChannelID string
	MessageTS string
	EventTS   string
}

// File is platform file metadata. Threads maps each channel the file was
// shared in to the timestamp replies about it belong under.
type File struct {
	ID          string
	Name        string
	Title       string
	Mimetype    string
	Filetype    string
	Size        int64
	UserID      string
	DownloadURL string
	Permalink   string
	Threads     map[string]string
	Created     int64
}

// Message is one chat message with its attachments.
type Message struct {
	TS       string
	ThreadTS string
	UserID   string
	Text     string
	Files    []File
}

// Upload describes a file posted into a thread.
type Upload struct {
	ChannelID      string
	ThreadTS       string
	Filename       string
	Title          string
	Content        []byte
	InitialComment string
}

// Platform is what the workflow needs from the chat service.
type Platform interface {
	FileInfo(ctx context.Context, fileID string) (File, error)
	Download(ctx context.Context, file File, w io.Writer) error
	Upload(ctx context.Context, upload Upload) (File, error)
	PostMessage(ctx context.Context, channelID, threadTS, text string) error
	ThreadMessage(ctx context.Context, channelID, ts string) (Message, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// IsCanvas reports a Slack canvas, which is never transcribed.
func (f File) IsCanvas() bool {
	return strings.EqualFold(f.Filetype, "quip")
}

// Extension returns the lowercased extension without the dot.
func (f File) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
}

// Stem returns the name without its extension.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, path.Ext(f.Name))
}

// ThreadIn returns the thread root for the share in channelID, or "" when
// the file was not shared there.
func (f File) ThreadIn(channelID string) string {
	return f.Threads[channelID]
}
