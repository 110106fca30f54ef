package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transponster/internal/codec"
	"transponster/internal/services"
)

const twoCues = "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n"

func TestParseSubtitleTwoCues(t *testing.T) {
	entries, err := codec.ParseSubtitle(twoCues)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, 2, entries[1].Index)
	assert.Equal(t, "00:00:01,000 --> 00:00:02,000", entries[0].Timing)
	assert.Equal(t, []string{"Hello", "World"}, codec.Texts(entries))
}

func TestRebuildSubtitleSubstitutesOnlyText(t *testing.T) {
	entries, err := codec.ParseSubtitle(twoCues)
	require.NoError(t, err)

	got := codec.RebuildSubtitle(entries, []string{"Bonjour", "Monde"})
	want := "1\n00:00:01,000 --> 00:00:02,000\nBonjour\n\n2\n00:00:03,000 --> 00:00:04,000\nMonde\n"
	assert.Equal(t, want, got)
}

func TestSubtitleRoundTripIsExact(t *testing.T) {
	cases := map[string]string{
		"lf":                 twoCues,
		"crlf":               "1\r\n00:00:01,000 --> 00:00:02,000\r\nHello\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nWorld\r\n",
		"mixed endings":      "1\r\n00:00:01,000 --> 00:00:02,000\nHello\r\n\n2\n00:00:03,000 --> 00:00:04,000\r\nWorld",
		"bom":                "\ufeff1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		"leading blanks":     "\n\n1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		"trailing blanks":    twoCues + "\n\n\n",
		"extra separators":   "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n",
		"multi-line text":    "1\n00:00:01,000 --> 00:00:02,000\nHello there\n  second line  \n",
		"positional timing":  "1\n00:00:01,000 --> 00:00:02,000 X1:10 X2:20\n<i>Hi</i>\n",
		"no final newline":   "1\n00:00:01,000 --> 00:00:02,000\nHello",
		"whitespace blanks":  "1\n00:00:01,000 --> 00:00:02,000\nHello\n   \n2\n00:00:03,000 --> 00:00:04,000\nWorld\n",
		"period millis":      "1\n00:00:01.000 --> 00:00:02.000\nHello\n",
		"cyrillic and emoji": "1\n00:00:01,000 --> 00:00:02,000\nПривіт 👋\n",
		"lone cr":            "1\r00:00:01,000 --> 00:00:02,000\rHello\r\r2\r00:00:03,000 --> 00:00:04,000\rWorld\r",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			entries, err := codec.ParseSubtitle(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, codec.RebuildSubtitle(entries, codec.Texts(entries)))
			assert.Equal(t, raw, codec.RebuildSubtitle(entries, nil))
		})
	}
}

func TestParseSubtitleRejectsMalformedBlocks(t *testing.T) {
	cases := map[string]struct {
		raw  string
		line int
	}{
		"missing index":  {raw: "00:00:01,000 --> 00:00:02,000\nHello\n", line: 1},
		"missing timing": {raw: "1\nHello\n", line: 2},
		"timing at eof":  {raw: "1\n", line: 2},
		"missing text":   {raw: "1\n00:00:01,000 --> 00:00:02,000\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n", line: 3},
		"empty":          {raw: "\n\n", line: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.ParseSubtitle(tc.raw)
			require.Error(t, err)
			var formatErr *codec.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, tc.line, formatErr.Line)
			assert.True(t, errors.Is(err, services.ErrFormat))
		})
	}
}

func TestRebuildSubtitleFallsBackPerEntry(t *testing.T) {
	entries, err := codec.ParseSubtitle(twoCues)
	require.NoError(t, err)

	got := codec.RebuildSubtitle(entries, []string{"", "Monde"})
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nMonde\n", got)

	got = codec.RebuildSubtitle(entries, []string{"Bonjour"})
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nBonjour\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n", got)
}

func TestRebuildSubtitleCannotBreakStructure(t *testing.T) {
	raw := "1\r\n00:00:01,000 --> 00:00:02,000\r\nHello\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nWorld\r\n"
	entries, err := codec.ParseSubtitle(raw)
	require.NoError(t, err)

	got := codec.RebuildSubtitle(entries, []string{"Bon\n\n3\n00:00:09,000 --> 00:00:10,000\njour", "Monde"})
	reparsed, err := codec.ParseSubtitle(got)
	require.NoError(t, err)
	require.Len(t, reparsed, 2)
	assert.Equal(t, "Bon\n3\n00:00:09,000 --> 00:00:10,000\njour", codec.Texts(reparsed)[0])
	assert.Equal(t, entries[1].Timing, reparsed[1].Timing)
	assert.Contains(t, got, "Bon\r\n3\r\n")
}

func TestParseSubtitleLoneCarriageReturns(t *testing.T) {
	raw := "1\r00:00:01,000 --> 00:00:02,000\rHello\r"
	entries, err := codec.ParseSubtitle(raw)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "00:00:01,000 --> 00:00:02,000", entries[0].Timing)
	assert.Equal(t, "1\r00:00:01,000 --> 00:00:02,000\rBonjour\r", codec.RebuildSubtitle(entries, []string{"Bonjour"}))
}

func TestRebuildSubtitleFromConstructedEntries(t *testing.T) {
	entries := []codec.Entry{
		{Index: 1, Timing: "00:00:01,000 --> 00:00:02,000", Text: []string{"Hello"}},
		{Index: 2, Timing: "00:00:03,000 --> 00:00:04,000", Text: []string{"Two", "lines"}},
	}

	got := codec.RebuildSubtitle(entries, []string{"Bonjour"})
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nBonjour\n\n2\n00:00:03,000 --> 00:00:04,000\nTwo\nlines\n", got)

	reparsed, err := codec.ParseSubtitle(got)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour", "Two\nlines"}, codec.Texts(reparsed))
}

func TestDetectFormat(t *testing.T) {
	format, ok := codec.DetectFormat("Interview.SRT")
	assert.True(t, ok)
	assert.Equal(t, codec.FormatSubtitle, format)

	format, ok = codec.DetectFormat("notes.txt")
	assert.True(t, ok)
	assert.Equal(t, codec.FormatTranscript, format)
	assert.Equal(t, ".txt", format.Extension())

	_, ok = codec.DetectFormat("clip.mp4")
	assert.False(t, ok)
}
