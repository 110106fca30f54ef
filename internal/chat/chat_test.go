package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"transponster/internal/chat"
)

func TestFileClassification(t *testing.T) {
	assert.True(t, chat.File{Name: "call.MP3"}.IsMedia())
	assert.True(t, chat.File{Name: "clip", Mimetype: "video/quicktime"}.IsMedia())
	assert.False(t, chat.File{Name: "notes.pdf", Mimetype: "application/pdf"}.IsMedia())
	assert.True(t, chat.File{Name: "Canvas", Filetype: "quip"}.IsCanvas())
}

func TestFileNameParts(t *testing.T) {
	f := chat.File{Name: "interview.final.SRT"}
	assert.Equal(t, "srt", f.Extension())
	assert.Equal(t, "interview.final", f.Stem())
	shared := chat.File{Threads: map[string]string{"C1": "9.9"}}
	assert.Equal(t, "9.9", shared.ThreadIn("C1"))
	assert.Empty(t, shared.ThreadIn("C2"))
}
