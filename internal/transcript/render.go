package transcript

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const unknownSpeaker = "unknown"

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Milliseconds are
// truncated, not rounded.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds*1000 + 1e-6))
	hours := total / 3_600_000
	total %= 3_600_000
	minutes := total / 60_000
	total %= 60_000
	secs := total / 1_000
	millis := total % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// RenderTranscript groups consecutive words by speaker. Each group becomes a
// header "start --> end - [speaker]", a blank line, the words joined as
// returned, and a blank line. Without word timings the plain text is returned.
func RenderTranscript(result Result) string {
	if len(result.Words) == 0 {
		return result.Text
	}

	type segment struct {
		speaker string
		words   []Word
	}
	var segments []segment
	for _, word := range result.Words {
		speaker := word.SpeakerID
		if speaker == "" {
			speaker = unknownSpeaker
		}
		if n := len(segments); n > 0 && segments[n-1].speaker == speaker {
			segments[n-1].words = append(segments[n-1].words, word)
			continue
		}
		segments = append(segments, segment{speaker: speaker, words: []Word{word}})
	}

	lines := make([]string, 0, len(segments)*4)
	for _, seg := range segments {
		var text strings.Builder
		for _, word := range seg.words {
			text.WriteString(word.Text)
		}
		first, last := seg.words[0], seg.words[len(seg.words)-1]
		lines = append(lines,
			fmt.Sprintf("%s --> %s - [%s]", FormatTimestamp(first.Start), FormatTimestamp(last.End), seg.speaker),
			"",
			text.String(),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// Cue is one subtitle block before numbering.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// BuildCues packs words into cues of at most maxChars characters spanning at
// most maxDuration. Spacing tokens only separate words; they never start or
// end a cue.
func BuildCues(result Result, maxChars int, maxDuration time.Duration) []Cue {
	limit := maxDuration.Seconds()
	hasSpacing := false
	for _, word := range result.Words {
		if word.Type == TokenSpacing {
			hasSpacing = true
			break
		}
	}

	var (
		cues    []Cue
		current *Cue
		gap     string
	)
	flush := func() {
		if current != nil {
			cues = append(cues, *current)
			current = nil
		}
		gap = ""
	}
	for _, word := range result.Words {
		if word.Type == TokenSpacing {
			if current != nil {
				gap = " "
			}
			continue
		}
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}
		if current != nil {
			sep := gap
			if !hasSpacing {
				sep = " "
			}
			candidate := current.Text + sep + text
			if utf8.RuneCountInString(candidate) > maxChars || word.End-current.Start > limit {
				flush()
			} else {
				current.Text = candidate
				current.End = word.End
				gap = ""
				continue
			}
		}
		current = &Cue{Start: word.Start, End: word.End, Text: text}
		gap = ""
	}
	flush()
	return cues
}

// RenderSubtitles renders word timings as SubRip text numbered from 1.
// It returns an empty string when the result carries no timed words.
func RenderSubtitles(result Result, maxChars int, maxDuration time.Duration) string {
	cues := BuildCues(result, maxChars, maxDuration)
	if len(cues) == 0 {
		return ""
	}
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}
