package transcript_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"transponster/internal/codec"
	"transponster/internal/transcript"
)

func word(text string, start, end float64, speaker string) transcript.Word {
	return transcript.Word{Text: text, Start: start, End: end, Type: transcript.TokenWord, SpeakerID: speaker}
}

func space(at float64, speaker string) transcript.Word {
	return transcript.Word{Text: " ", Start: at, End: at, Type: transcript.TokenSpacing, SpeakerID: speaker}
}

func TestModeFor(t *testing.T) {
	cases := map[string]transcript.Mode{
		"interview-subtitles.mp4": transcript.ModeSubtitles,
		"interview-both.mp4":      transcript.ModeBoth,
		"interview.mp4":           transcript.ModeTranscript,
		"Інтерв'ю СУБТИТРИ.mov":   transcript.ModeSubtitles,
		"зустріч обидва.m4a":      transcript.ModeBoth,
		"both-and-subtitles.mp4":  transcript.ModeSubtitles,
	}
	for name, want := range cases {
		assert.Equal(t, want, transcript.ModeFor(name), name)
	}
	assert.True(t, transcript.ModeBoth.WantsTranscript())
	assert.True(t, transcript.ModeBoth.WantsSubtitles())
	assert.False(t, transcript.ModeSubtitles.WantsTranscript())
	assert.False(t, transcript.ModeTranscript.WantsSubtitles())
}

func TestFormatTimestampTruncatesMillis(t *testing.T) {
	assert.Equal(t, "00:00:00,000", transcript.FormatTimestamp(0))
	assert.Equal(t, "00:00:01,999", transcript.FormatTimestamp(1.9999))
	assert.Equal(t, "00:00:01,001", transcript.FormatTimestamp(1.001))
	assert.Equal(t, "01:01:01,500", transcript.FormatTimestamp(3661.5))
	assert.Equal(t, "00:00:00,000", transcript.FormatTimestamp(-3))
}

func TestRenderTranscriptGroupsBySpeaker(t *testing.T) {
	result := transcript.Result{Words: []transcript.Word{
		word("Добрий", 0, 0.5, "speaker_0"), space(0.5, "speaker_0"), word("день.", 0.6, 1.2, "speaker_0"),
		word("Привіт!", 1.5, 2.25, "speaker_1"),
		word("Так.", 3, 3.5, "speaker_0"),
	}}

	want := "00:00:00,000 --> 00:00:01,200 - [speaker_0]\n\nДобрий день.\n\n" +
		"00:00:01,500 --> 00:00:02,250 - [speaker_1]\n\nПривіт!\n\n" +
		"00:00:03,000 --> 00:00:03,500 - [speaker_0]\n\nТак.\n"
	got := transcript.RenderTranscript(result)
	assert.Equal(t, want, got)

	entries, err := codec.ParseTranscript(got)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Добрий день.", "Привіт!", "Так."}, codec.Texts(entries))
}

func TestRenderTranscriptFallsBackToText(t *testing.T) {
	result := transcript.Result{Text: "plain text only"}
	assert.Equal(t, "plain text only", transcript.RenderTranscript(result))
}

func TestRenderTranscriptUnknownSpeaker(t *testing.T) {
	result := transcript.Result{Words: []transcript.Word{{Text: "hi", Start: 0, End: 1}}}
	assert.Equal(t, "00:00:00,000 --> 00:00:01,000 - [unknown]\n\nhi\n", transcript.RenderTranscript(result))
}

func TestRenderSubtitlesSplitsOnCharsAndDuration(t *testing.T) {
	result := transcript.Result{Words: []transcript.Word{
		word("one", 0, 0.5, ""), space(0.5, ""),
		word("two", 0.6, 1.0, ""), space(1.0, ""),
		word("three", 1.1, 5.0, ""), space(5.0, ""),
		word("aaaaaaaaaa", 5.1, 5.5, ""), space(5.5, ""),
		word("bbbbbbbbbb", 5.6, 6.0, ""),
	}}

	got := transcript.RenderSubtitles(result, 12, 4*time.Second)
	want := "1\n00:00:00,000 --> 00:00:01,000\none two\n\n" +
		"2\n00:00:01,100 --> 00:00:05,000\nthree\n\n" +
		"3\n00:00:05,100 --> 00:00:05,500\naaaaaaaaaa\n\n" +
		"4\n00:00:05,600 --> 00:00:06,000\nbbbbbbbbbb\n"
	assert.Equal(t, want, got)

	entries, err := codec.ParseSubtitle(got)
	assert.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, 4, entries[3].Index)
}

func TestRenderSubtitlesKeepsPunctuationAttached(t *testing.T) {
	result := transcript.Result{Words: []transcript.Word{
		word("Hello", 0, 0.5, ""), word(",", 0.5, 0.5, ""), space(0.5, ""),
		{Text: "(laughs)", Start: 0.6, End: 1, Type: transcript.TokenAudioEvent},
	}}
	got := transcript.RenderSubtitles(result, 40, 4*time.Second)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nHello, (laughs)\n", got)
}

func TestRenderSubtitlesEmptyWithoutWords(t *testing.T) {
	assert.Equal(t, "", transcript.RenderSubtitles(transcript.Result{Text: "x"}, 40, 4*time.Second))
	assert.True(t, transcript.Result{Words: []transcript.Word{space(0, "")}}.Empty())
	assert.False(t, transcript.Result{Text: "x"}.Empty())
}
