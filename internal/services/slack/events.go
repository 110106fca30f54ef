package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"transponster/internal/chat"
	"transponster/internal/logging"
)

const maxEventBody = 1 << 20

// Sink receives verified events. Calls run on their own goroutine with the
// handler's base context.
type Sink interface {
	HandleFileShared(ctx context.Context, event chat.FileShared)
	HandleReaction(ctx context.Context, event chat.ReactionAdded)
}

// EventHandler serves the Events API request URL.
type EventHandler struct {
	base          context.Context
	signingSecret string
	sink          Sink
	logger        *slog.Logger
	inflight      sync.WaitGroup
}

// NewEventHandler dispatches events to sink under base. Cancel base to abort
// in-flight handlers, then call Wait.
func NewEventHandler(base context.Context, signingSecret string, sink Sink, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EventHandler{base: base, signingSecret: signingSecret, sink: sink, logger: logger}
}

// Wait blocks until every dispatched handler returned.
func (h *EventHandler) Wait() {
	h.inflight.Wait()
}

func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	verifier, err := slackapi.NewSecretsVerifier(r.Header, h.signingSecret)
	if err == nil {
		_, _ = verifier.Write(body)
		err = verifier.Ensure()
	}
	if err != nil {
		logging.WarnWithContext(h.logger, "rejected unsigned slack request", "slack_signature_invalid",
			logging.Error(err),
			logging.String("remote", r.RemoteAddr),
			logging.String(logging.FieldErrorHint, "check slack.signing_secret"),
		)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Unknown inner event types are acknowledged so Slack stops retrying.
		h.logger.Debug("ignoring unparsed slack event", logging.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
		h.dispatch(event.InnerEvent)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *EventHandler) dispatch(inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.FileSharedEvent:
		shared := chat.FileShared{
			FileID:    ev.FileID,
			ChannelID: ev.ChannelID,
			UserID:    ev.UserID,
			EventTS:   ev.EventTimestamp,
		}
		if shared.FileID == "" {
			shared.FileID = ev.File.ID
		}
		h.goHandle(func(ctx context.Context) { h.sink.HandleFileShared(ctx, shared) })
	case *slackevents.ReactionAddedEvent:
		if ev.Item.Type != "message" {
			return
		}
		reaction := chat.ReactionAdded{
			Reaction:  ev.Reaction,
			UserID:    ev.User,
			ChannelID: ev.Item.Channel,
			MessageTS: ev.Item.Timestamp,
			EventTS:   ev.EventTimestamp,
		}
		h.goHandle(func(ctx context.Context) { h.sink.HandleReaction(ctx, reaction) })
	default:
		h.logger.Debug("ignoring slack event", logging.String("type", inner.Type))
	}
}

func (h *EventHandler) goHandle(fn func(context.Context)) {
	if h.base.Err() != nil {
		return
	}
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		fn(h.base)
	}()
}
