package transcript

import "strings"

// Token types reported for each Word.
const (
	TokenWord       = "word"
	TokenSpacing    = "spacing"
	TokenAudioEvent = "audio_event"
)

// Word is one timed token. Start and End are seconds from the beginning of
// the media.
type Word struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type,omitempty"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// Result is a speech-to-text response. Words may be empty when the service
// only returned plain text.
type Result struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code,omitempty"`
	Words        []Word  `json:"words,omitempty"`
	Probability  float64 `json:"language_probability,omitempty"`
}

// Empty reports whether no speech was recognised.
func (r Result) Empty() bool {
	if len(r.Words) == 0 {
		return strings.TrimSpace(r.Text) == ""
	}
	for _, w := range r.Words {
		if w.Type != TokenSpacing && strings.TrimSpace(w.Text) != "" {
			return false
		}
	}
	return true
}
