// Package transcript holds the speech-to-text result model and turns it into
// the two deliverable formats: a diarized plain-text transcript and SubRip
// subtitles. It also owns the fixed filename keyword table that selects which
// of the two a user receives.
package transcript
