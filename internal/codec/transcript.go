package codec

import (
	"regexp"
	"strings"
)

var transcriptHeaderPattern = regexp.MustCompile(`^(\d{2,}:\d{2}:\d{2},\d{3} --> \d{2,}:\d{2}:\d{2},\d{3})(?: - \[[^\]]*\])?\s*$`)

// ParseTranscript parses the bot's transcript layout: a header line
// "HH:MM:SS,mmm --> HH:MM:SS,mmm - [speaker]", a blank line, the spoken text,
// a blank line, repeated. Paragraphs without a preceding header (plain text
// transcripts) become header-less entries. A header with no text becomes an
// entry with empty Text that is never translated.
func ParseTranscript(raw string) ([]Entry, error) {
	lead, lines := splitLines(raw)
	var (
		entries    []Entry
		pending    strings.Builder
		current    *Entry
		prevHeader bool
	)
	pending.WriteString(lead)

	closeHeaderOnly := func() {
		if current == nil {
			return
		}
		current.prefix = pending.String()
		pending.Reset()
		entries = append(entries, *current)
		current = nil
	}

	i := 0
	for i < len(lines) {
		ln := lines[i]
		if ln.blank() {
			pending.WriteString(ln.raw())
			prevHeader = false
			i++
			continue
		}
		if match := transcriptHeaderPattern.FindStringSubmatch(ln.content); match != nil {
			if current != nil && prevHeader {
				current.Header = append(current.Header, ln.content)
			} else {
				closeHeaderOnly()
				current = &Entry{
					Index:  len(entries) + 1,
					Timing: match[1],
					Header: []string{ln.content},
				}
			}
			pending.WriteString(ln.raw())
			prevHeader = true
			i++
			continue
		}

		entry := Entry{Index: len(entries) + 1}
		if current != nil {
			entry = *current
			current = nil
		}
		entry.prefix = pending.String()
		pending.Reset()
		for i < len(lines) && !lines[i].blank() && !transcriptHeaderPattern.MatchString(lines[i].content) {
			entry.Text = append(entry.Text, lines[i].content)
			entry.textEOL = append(entry.textEOL, lines[i].eol)
			i++
		}
		entries = append(entries, entry)
		prevHeader = false
	}
	closeHeaderOnly()

	if len(entries) == 0 {
		return nil, &FormatError{Format: FormatTranscript, Reason: "transcript is empty"}
	}
	entries[len(entries)-1].suffix += pending.String()
	return entries, nil
}
