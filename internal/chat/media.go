package chat

import (
	"slices"
	"strings"
)

// MediaExtensions lists the extensions accepted when the mimetype is not
// audio or video.
var MediaExtensions = []string{"mp3", "wav", "mp4", "m4a", "flac", "ogg"}

// IsMedia reports whether the file looks like audio or video.
func (f File) IsMedia() bool {
	mime := strings.ToLower(f.Mimetype)
	if strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/") {
		return true
	}
	return slices.Contains(MediaExtensions, f.Extension())
}
