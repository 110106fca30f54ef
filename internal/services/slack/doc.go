// Package slack adapts github.com/slack-go/slack to chat.Platform and serves
// the Events API endpoint.
//
// Client wraps the Web API calls the workflow needs. EventHandler verifies
// request signatures with the app's signing secret, answers URL verification
// challenges, acknowledges every callback immediately, and hands file_shared
// and reaction_added events to a Sink on a background goroutine.
package slack
