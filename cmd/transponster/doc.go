// Command transponster runs the Slack transcription bot and the operator
// commands around it.
//
// `transponster serve` starts the daemon: it receives Slack events over
// HTTP, transcribes uploaded media, translates transcripts on reaction and
// exposes a small JSON API on paths.api_bind. The other commands either talk
// to that API (status, mappings) or work locally against the same
// configuration (config, check, translate, logs, notify).
package main
