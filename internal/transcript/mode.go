package transcript

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects which files are delivered for an upload.
type Mode string

const (
	ModeTranscript Mode = "txt_only"
	ModeSubtitles  Mode = "srt_only"
	ModeBoth       Mode = "both"
)

// modeTable is checked in order; the first keyword found in the filename wins.
var modeTable = []struct {
	keywords []string
	mode     Mode
}{
	{keywords: []string{"subtitles", "субтитри"}, mode: ModeSubtitles},
	{keywords: []string{"both", "обидва"}, mode: ModeBoth},
}

// ModeFor resolves the delivery mode from an uploaded filename. Matching is
// case-insensitive on the NFC form, so decomposed Cyrillic from macOS
// filenames still matches.
func ModeFor(filename string) Mode {
	name := norm.NFC.String(strings.ToLower(filename))
	for _, row := range modeTable {
		for _, keyword := range row.keywords {
			if strings.Contains(name, keyword) {
				return row.mode
			}
		}
	}
	return ModeTranscript
}

// WantsTranscript reports whether a .txt transcript is delivered.
func (m Mode) WantsTranscript() bool {
	return m == ModeTranscript || m == ModeBoth
}

// WantsSubtitles reports whether a .srt file is delivered.
func (m Mode) WantsSubtitles() bool {
	return m == ModeSubtitles || m == ModeBoth
}
