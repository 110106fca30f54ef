package batching

import (
	"context"
	"time"
)

// UploadEvent is one file-shared notification.
type UploadEvent struct {
	FileID     string
	ChannelID  string
	ThreadTS   string
	UserID     string
	Filename   string
	ReceivedAt time.Time
}

// Key groups events that belong to one logical upload.
type Key struct {
	ChannelID string
	ThreadTS  string
}

func (k Key) String() string {
	if k.ThreadTS == "" {
		return k.ChannelID
	}
	return k.ChannelID + "/" + k.ThreadTS
}

// Key returns the grouping key of the event.
func (e UploadEvent) Key() Key {
	return Key{ChannelID: e.ChannelID, ThreadTS: e.ThreadTS}
}

// Batch is the deduplicated, arrival-ordered set of events flushed for a key.
type Batch struct {
	Key       Key
	Events    []UploadEvent
	FirstSeen time.Time
	FlushedAt time.Time
}

// FileIDs lists the batch's file IDs in arrival order.
func (b Batch) FileIDs() []string {
	ids := make([]string, len(b.Events))
	for i, ev := range b.Events {
		ids[i] = ev.FileID
	}
	return ids
}

// UserID returns the uploader of the first event.
func (b Batch) UserID() string {
	if len(b.Events) == 0 {
		return ""
	}
	return b.Events[0].UserID
}

// Action handles a flushed batch. Its error is logged and never retried.
type Action func(ctx context.Context, batch Batch) error
