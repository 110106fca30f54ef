// Package llm is the OpenRouter chat-completions client used for translation.
//
// TranslateBatch sends a list of plain strings joined by a marker line and
// splits the reply on the same marker; a reply with the wrong number of
// segments is an error so the caller can fall back to the original text.
// HealthCheck issues a tiny JSON request for preflight.
//
// The client retries HTTP 408/429/5xx, empty completions and network timeouts
// with exponential backoff, honouring Retry-After. Configure one attempt to
// disable retries. Context cancellation aborts immediately.
package llm
