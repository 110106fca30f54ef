// Package gdrive keeps transcripts as Google Docs on a shared drive.
//
// Each uploader gets a folder named after their chat display name on the
// shared drive. Create converts plain text into a Google Doc; Append exports
// the document as text, adds a headed section and writes it back. Every call
// passes through a rate limiter, and 429 or rateLimitExceeded replies put it
// into cool-down.
package gdrive
