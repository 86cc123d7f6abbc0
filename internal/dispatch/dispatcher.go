// Package dispatch orchestrates inbound LINE events: session lookup,
// backend relay, and reply delivery.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linebridge/linebridge/internal/dedupe"
	"github.com/linebridge/linebridge/internal/line"
	"github.com/linebridge/linebridge/internal/session"
	"github.com/linebridge/linebridge/internal/timeline"
)

// SessionSource yields the backend session for a user.
type SessionSource interface {
	GetOrCreate(ctx context.Context, userID string) (*session.Session, error)
}

// Relayer forwards a message into a conversation and resolves the reply.
type Relayer interface {
	SendAndAwaitReply(ctx context.Context, token, conversationID, text string) (string, error)
}

// ReplySink delivers a text reply for a reply token.
type ReplySink interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// Dispatcher is the sole recovery point for session and relay failures:
// any downstream error becomes the apology text, so each well-formed text
// event gets exactly one reply attempt.
type Dispatcher struct {
	sessions SessionSource
	relay    Relayer
	replies  ReplySink
	seen     *dedupe.Cache
	store    *timeline.Service
	apology  string
}

// New creates a dispatcher. store may be nil to disable the exchange log.
func New(sessions SessionSource, relay Relayer, replies ReplySink, seen *dedupe.Cache, store *timeline.Service, apology string) *Dispatcher {
	if strings.TrimSpace(apology) == "" {
		apology = "Sorry, something went wrong."
	}
	return &Dispatcher{
		sessions: sessions,
		relay:    relay,
		replies:  replies,
		seen:     seen,
		store:    store,
		apology:  apology,
	}
}

// HandleBatch processes one webhook delivery. Events run concurrently and
// are isolated from each other: a failing event never blocks the rest of
// the batch.
func (d *Dispatcher) HandleBatch(ctx context.Context, events []line.Event) {
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev line.Event) {
			defer wg.Done()
			d.HandleEvent(ctx, ev)
		}(ev)
	}
	wg.Wait()
}

// HandleEvent relays one event. Non-text events are ignored. Redelivered
// events within the dedupe window are dropped so upstream retry of a
// whole batch does not double-relay the messages that already succeeded.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev line.Event) {
	if !ev.IsTextMessage() {
		return
	}
	userID := strings.TrimSpace(ev.Source.UserID)
	if userID == "" || strings.TrimSpace(ev.ReplyToken) == "" {
		return
	}
	if d.seen != nil && d.seen.Seen(ev.DedupeKey(), time.Now()) {
		slog.Debug("Duplicate event dropped", "user_id", userID, "key", ev.DedupeKey())
		return
	}

	traceID := uuid.NewString()
	reply, convID, err := d.relayMessage(ctx, userID, ev.Message.Text)
	status := timeline.StatusReplied
	errText := ""
	if err != nil {
		slog.Error("Relay failed, sending apology", "trace_id", traceID, "user_id", userID, "error", err)
		reply = d.apology
		status = timeline.StatusFailed
		errText = err.Error()
	}

	if err := d.replies.Reply(ctx, ev.ReplyToken, reply); err != nil {
		// Reply tokens are single use; a failed delivery is not retried.
		slog.Error("Reply delivery failed", "trace_id", traceID, "user_id", userID, "error", err)
	}

	if d.store != nil {
		rec := &timeline.Exchange{
			TraceID:        traceID,
			UserID:         userID,
			ConversationID: convID,
			ContentIn:      ev.Message.Text,
			ContentOut:     reply,
			Status:         status,
			ErrorText:      errText,
		}
		if err := d.store.Record(rec); err != nil {
			slog.Warn("Exchange log write failed", "trace_id", traceID, "error", err)
		}
	}
}

func (d *Dispatcher) relayMessage(ctx context.Context, userID, text string) (reply, conversationID string, err error) {
	sess, err := d.sessions.GetOrCreate(ctx, userID)
	if err != nil {
		return "", "", err
	}
	reply, err = d.relay.SendAndAwaitReply(ctx, sess.Token, sess.ConversationID, text)
	if err != nil {
		return "", sess.ConversationID, err
	}
	return reply, sess.ConversationID, nil
}
