package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"transponster/internal/services"
)

// SegmentMarker separates segments in both directions.
const SegmentMarker = "<<<SEGMENT>>>"

const translationPrompt = `You are a professional translator of subtitles and interview transcripts.
Translate every segment into %s (%s).
The input contains %d segments separated by lines that contain only %s.
Reply with exactly %d translated segments in the same order, separated by the same marker line.
Keep the line breaks inside each segment. Do not merge, split, number, quote or comment on segments.
Keep speaker names, sound tags in square brackets, and proper nouns as they are unless they have an established translation.`

// TranslateBatch translates texts into targetLanguage (a BCP 47 tag) and
// returns one string per input in the same order.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "llm", "api key required", nil)
	}
	tag, err := language.Parse(strings.TrimSpace(targetLanguage))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "translate", "llm", "invalid target language "+targetLanguage, err)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: TranslationPrompt(tag, len(texts))},
			{Role: "user", Content: JoinSegments(texts)},
		},
	}
	content, err := c.complete(ctx, payload, "llm translate")
	if err != nil {
		return nil, err
	}
	segments := SplitSegments(content)
	if len(segments) != len(texts) {
		return segments, fmt.Errorf("llm translate: %w: sent %d segments, received %d", services.ErrFormat, len(texts), len(segments))
	}
	return segments, nil
}

// TranslationPrompt renders the system prompt for n segments.
func TranslationPrompt(tag language.Tag, n int) string {
	return fmt.Sprintf(translationPrompt, LanguageName(tag), tag.String(), n, SegmentMarker, n)
}

// LanguageName returns the English display name of tag, or the tag itself.
func LanguageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// JoinSegments builds the request body.
func JoinSegments(texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n" + SegmentMarker + "\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

// SplitSegments splits a reply on marker lines. Blank lines around each
// segment are trimmed; a leading or trailing marker is ignored.
func SplitSegments(content string) []string {
	content = strings.ReplaceAll(stripCodeFence(content), "\r\n", "\n")
	var (
		segments []string
		current  []string
	)
	flush := func() {
		segments = append(segments, strings.Trim(strings.Join(current, "\n"), "\n"))
		current = current[:0]
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == SegmentMarker {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	if len(segments) > 1 && segments[0] == "" {
		segments = segments[1:]
	}
	if len(segments) > 1 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	return segments
}
