// Package elevenlabs is the speech-to-text client.
//
// Transcribe streams the media as a multipart upload to the scribe endpoint
// with diarization and audio-event tagging, and decodes the word-level
// response into a transcript.Result. Non-2xx replies surface as *StatusError;
// 402 and 429 are quota failures and put the shared limiter into cool-down.
package elevenlabs
