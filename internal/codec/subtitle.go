package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var cueTimingPattern = regexp.MustCompile(`^\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}\s*-->\s*\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}`)

// ParseSubtitle parses SubRip text. Each block must be a numeric index line,
// a timing line, and at least one text line, in that order. Blank lines
// around blocks, CRLF or mixed endings and a byte order mark are tolerated.
func ParseSubtitle(raw string) ([]Entry, error) {
	lead, lines := splitLines(raw)
	var (
		entries []Entry
		pending strings.Builder
	)
	pending.WriteString(lead)

	i := 0
	for {
		for i < len(lines) && lines[i].blank() {
			pending.WriteString(lines[i].raw())
			i++
		}
		if i >= len(lines) {
			break
		}

		indexLine := lines[i]
		index, err := strconv.Atoi(strings.TrimSpace(indexLine.content))
		if err != nil {
			return nil, &FormatError{Format: FormatSubtitle, Line: i + 1, Reason: fmt.Sprintf("expected cue index, got %q", indexLine.content)}
		}
		pending.WriteString(indexLine.raw())
		i++

		if i >= len(lines) || lines[i].blank() {
			return nil, &FormatError{Format: FormatSubtitle, Line: i + 1, Reason: fmt.Sprintf("cue %d is missing its timing line", index)}
		}
		timingLine := lines[i]
		if !cueTimingPattern.MatchString(timingLine.content) {
			return nil, &FormatError{Format: FormatSubtitle, Line: i + 1, Reason: fmt.Sprintf("expected timing line, got %q", timingLine.content)}
		}
		pending.WriteString(timingLine.raw())
		i++

		entry := Entry{
			Index:  index,
			Timing: strings.TrimSpace(timingLine.content),
			Header: []string{indexLine.content, timingLine.content},
			prefix: pending.String(),
		}
		pending.Reset()
		for i < len(lines) && !lines[i].blank() {
			entry.Text = append(entry.Text, lines[i].content)
			entry.textEOL = append(entry.textEOL, lines[i].eol)
			i++
		}
		if len(entry.Text) == 0 {
			return nil, &FormatError{Format: FormatSubtitle, Line: i + 1, Reason: fmt.Sprintf("cue %d has no text", index)}
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, &FormatError{Format: FormatSubtitle, Reason: "no cues found"}
	}
	entries[len(entries)-1].suffix = pending.String()
	return entries, nil
}
