package codec

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"transponster/internal/services"
)

// Format identifies one of the supported text formats.
type Format string

const (
	FormatSubtitle   Format = "srt"
	FormatTranscript Format = "txt"
)

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// DetectFormat resolves the format from a filename extension.
func DetectFormat(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".srt":
		return FormatSubtitle, true
	case ".txt":
		return FormatTranscript, true
	default:
		return "", false
	}
}

// Entry is one structural unit of a parsed file. Header holds the structural
// lines shown before the text (cue index and timing for subtitles, speaker
// header for transcripts); Text holds the translatable lines.
type Entry struct {
	Index  int
	Timing string
	Header []string
	Text   []string

	prefix  string
	textEOL []string
	suffix  string
}

// FormatError reports malformed input at a 1-based line number.
type FormatError struct {
	Format Format
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	name := "subtitle"
	if e.Format == FormatTranscript {
		name = "transcript"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d: %s", name, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", name, e.Reason)
}

// Unwrap lets errors.Is match services.ErrFormat.
func (e *FormatError) Unwrap() error {
	return services.ErrFormat
}

// Parse dispatches to the parser for format.
func Parse(format Format, raw string) ([]Entry, error) {
	switch format {
	case FormatSubtitle:
		return ParseSubtitle(raw)
	case FormatTranscript:
		return ParseTranscript(raw)
	default:
		return nil, &FormatError{Format: format, Reason: fmt.Sprintf("unsupported format %q", format)}
	}
}

// Rebuild dispatches to the rebuilder for format.
func Rebuild(format Format, entries []Entry, translations []string) string {
	if format == FormatTranscript {
		return RebuildTranscript(entries, translations)
	}
	return RebuildSubtitle(entries, translations)
}

// Texts returns the translatable text of each entry with lines joined by "\n".
func Texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, entry := range entries {
		out[i] = strings.Join(entry.Text, "\n")
	}
	return out
}

// RebuildSubtitle writes entries back as SubRip text. translations is indexed
// by entry position; a missing or blank translation keeps the original text.
func RebuildSubtitle(entries []Entry, translations []string) string {
	return rebuild(entries, translations, subtitleHeader)
}

// RebuildTranscript writes entries back as transcript text. translations is
// indexed by entry position; a missing or blank translation keeps the
// original text.
func RebuildTranscript(entries []Entry, translations []string) string {
	return rebuild(entries, translations, transcriptHeader)
}

// subtitleHeader lays out a cue built outside Parse: index then timing,
// unless Header spells the lines out.
func subtitleHeader(entry Entry) []string {
	if len(entry.Header) > 0 {
		return entry.Header
	}
	return []string{strconv.Itoa(entry.Index), entry.Timing}
}

// transcriptHeader lays out a transcript entry built outside Parse: its
// header lines followed by a blank line.
func transcriptHeader(entry Entry) []string {
	if len(entry.Header) == 0 {
		return nil
	}
	return append(append([]string(nil), entry.Header...), "")
}

// prefixFor returns the layout Parse recorded, or synthesizes one for
// entries constructed by callers.
func prefixFor(entry Entry, first bool, header func(Entry) []string) string {
	if entry.prefix != "" || len(entry.textEOL) > 0 || (len(entry.Text) == 0 && len(entry.Header) == 0) {
		return entry.prefix
	}
	var b strings.Builder
	if !first {
		b.WriteString("\n")
	}
	for _, line := range header(entry) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func rebuild(entries []Entry, translations []string, header func(Entry) []string) string {
	var b strings.Builder
	for i, entry := range entries {
		b.WriteString(prefixFor(entry, i == 0, header))
		translated := ""
		if i < len(translations) {
			translated = translations[i]
		}
		writeText(&b, entry, translated)
		b.WriteString(entry.suffix)
	}
	return b.String()
}

func writeText(b *strings.Builder, entry Entry, translated string) {
	if len(entry.Text) == 0 {
		return
	}
	lines := normalizeTranslation(translated)
	if len(lines) == 0 || strings.Join(lines, "\n") == strings.Join(entry.Text, "\n") {
		for i, line := range entry.Text {
			b.WriteString(line)
			b.WriteString(entry.eolAt(i))
		}
		return
	}
	eol := entry.eolAt(0)
	if eol == "" {
		eol = "\n"
	}
	last := entry.eolAt(len(entry.Text) - 1)
	for i, line := range lines {
		b.WriteString(line)
		if i == len(lines)-1 {
			b.WriteString(last)
		} else {
			b.WriteString(eol)
		}
	}
}

// eolAt is the terminator recorded for text line i, "\n" when the line was
// not produced by Parse.
func (e Entry) eolAt(i int) string {
	if i < len(e.textEOL) {
		return e.textEOL[i]
	}
	return "\n"
}

// normalizeTranslation folds line endings and drops blank lines so text
// returned by a model can never open or close a block.
func normalizeTranslation(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
