// Package codec parses and rebuilds the two line-oriented text formats the
// bot delivers: SubRip subtitles and diarized transcripts.
//
// Parsing splits a file into entries whose structural lines (cue indices,
// timing lines, speaker headers, separating blank lines, line endings, byte
// order mark) are kept verbatim beside the translatable text. Rebuilding
// writes the structure back unchanged and only substitutes text, so
// Rebuild(Parse(raw), Texts(entries)) reproduces raw byte for byte.
package codec
