// Package workflow turns chat events into transcripts and translations.
//
// The Manager receives file-shared and reaction events from the chat adapter.
// Uploads go through the batching package so that files shared together are
// acknowledged once, processed in parallel, and reported in a single summary
// message. Reactions that name a configured language translate the transcript
// or subtitle file attached to the reacted message and post the result back
// into the same thread, appending it to the uploader's Drive document when a
// mapping exists.
//
// Collaborators are interfaces so the daemon can wire the Slack, ElevenLabs,
// OpenRouter and Google Drive adapters while tests substitute fakes.
package workflow
