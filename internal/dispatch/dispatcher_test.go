package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linebridge/linebridge/internal/dedupe"
	"github.com/linebridge/linebridge/internal/line"
	"github.com/linebridge/linebridge/internal/session"
	"github.com/linebridge/linebridge/internal/timeline"
)

type fakeSessions struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSessions) GetOrCreate(ctx context.Context, userID string) (*session.Session, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &session.Session{UserID: userID, Token: "tok", ConversationID: "conv-" + userID}, nil
}

type fakeRelay struct {
	calls atomic.Int32
	reply string
	err   error
	// errFor fails only for this text, for batch isolation tests.
	errFor string
}

func (f *fakeRelay) SendAndAwaitReply(ctx context.Context, token, conversationID, text string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	if f.errFor != "" && text == f.errFor {
		return "", errors.New("send failed")
	}
	return f.reply, nil
}

type sentReply struct {
	token string
	text  string
}

type fakeSink struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeSink) Reply(ctx context.Context, replyToken, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{replyToken, text})
	return f.err
}

func (f *fakeSink) sent() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentReply, len(f.replies))
	copy(out, f.replies)
	return out
}

func textEvent(user, text, replyToken, eventID string) line.Event {
	return line.Event{
		Type:           "message",
		WebhookEventID: eventID,
		ReplyToken:     replyToken,
		Source:         line.Source{Type: "user", UserID: user},
		Message:        line.Message{ID: "m-" + eventID, Type: "text", Text: text},
	}
}

func TestHandleEventRelaysAndReplies(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "hello there"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, nil, "sorry")

	d.HandleEvent(context.Background(), textEvent("U1", "hi", "rt-1", "e1"))

	sent := sink.sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(sent))
	}
	if sent[0].token != "rt-1" || sent[0].text != "hello there" {
		t.Fatalf("unexpected reply: %+v", sent[0])
	}
}

func TestHandleEventIgnoresNonTextEvents(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "hello"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, nil, "sorry")

	d.HandleEvent(context.Background(), line.Event{Type: "follow", Source: line.Source{UserID: "U1"}})
	d.HandleEvent(context.Background(), line.Event{
		Type:       "message",
		ReplyToken: "rt-1",
		Source:     line.Source{UserID: "U1"},
		Message:    line.Message{ID: "m1", Type: "sticker"},
	})

	if sessions.calls.Load() != 0 || relay.calls.Load() != 0 {
		t.Fatal("non-text events must not reach registry or relay")
	}
	if len(sink.sent()) != 0 {
		t.Fatal("non-text events must produce no reply")
	}
}

func TestHandleEventApologyOnSessionFailure(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("token endpoint down")}
	relay := &fakeRelay{reply: "unused"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, nil, "Sorry, something went wrong.")

	d.HandleEvent(context.Background(), textEvent("U1", "hi", "rt-1", "e1"))

	sent := sink.sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one apology reply, got %d", len(sent))
	}
	if sent[0].text != "Sorry, something went wrong." {
		t.Fatalf("unexpected apology: %q", sent[0].text)
	}
	if relay.calls.Load() != 0 {
		t.Fatal("relay must not run without a session")
	}
}

func TestHandleEventApologyOnRelayFailure(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{err: errors.New("send failed")}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, nil, "sorry")

	d.HandleEvent(context.Background(), textEvent("U1", "hi", "rt-1", "e1"))

	sent := sink.sent()
	if len(sent) != 1 || sent[0].text != "sorry" {
		t.Fatalf("expected one apology reply, got %+v", sent)
	}
}

func TestHandleEventReplyFailureNotRetried(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "hello"}
	sink := &fakeSink{err: errors.New("reply token expired")}
	d := New(sessions, relay, sink, nil, nil, "sorry")

	// Must not panic and must attempt the reply exactly once.
	d.HandleEvent(context.Background(), textEvent("U1", "hi", "rt-1", "e1"))
	if len(sink.sent()) != 1 {
		t.Fatalf("expected one reply attempt, got %d", len(sink.sent()))
	}
}

func TestHandleBatchFailureIsolation(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "ok", errFor: "poison"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, nil, "sorry")

	d.HandleBatch(context.Background(), []line.Event{
		textEvent("U1", "first", "rt-1", "e1"),
		textEvent("U2", "poison", "rt-2", "e2"),
		textEvent("U3", "third", "rt-3", "e3"),
	})

	sent := sink.sent()
	if len(sent) != 3 {
		t.Fatalf("every event must get exactly one reply, got %d", len(sent))
	}
	byToken := map[string]string{}
	for _, r := range sent {
		byToken[r.token] = r.text
	}
	if byToken["rt-1"] != "ok" || byToken["rt-3"] != "ok" {
		t.Fatalf("healthy events must be replied normally: %+v", byToken)
	}
	if byToken["rt-2"] != "sorry" {
		t.Fatalf("failing event must get the apology: %+v", byToken)
	}
}

func TestHandleEventDropsRedeliveredEvents(t *testing.T) {
	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "ok"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, dedupe.New(time.Minute), nil, "sorry")

	ev := textEvent("U1", "hi", "rt-1", "e1")
	d.HandleEvent(context.Background(), ev)
	d.HandleEvent(context.Background(), ev)

	if len(sink.sent()) != 1 {
		t.Fatalf("redelivered event must not produce a second reply, got %d", len(sink.sent()))
	}
	if relay.calls.Load() != 1 {
		t.Fatalf("redelivered event must not be relayed again, got %d", relay.calls.Load())
	}
}

func TestHandleEventRecordsExchanges(t *testing.T) {
	store, err := timeline.NewService(filepath.Join(t.TempDir(), "exchanges.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	sessions := &fakeSessions{}
	relay := &fakeRelay{reply: "ok", errFor: "poison"}
	sink := &fakeSink{}
	d := New(sessions, relay, sink, nil, store, "sorry")

	d.HandleEvent(context.Background(), textEvent("U1", "hi", "rt-1", "e1"))
	d.HandleEvent(context.Background(), textEvent("U1", "poison", "rt-2", "e2"))

	counts, err := store.CountByStatus()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts.Total != 2 || counts.Replied != 1 || counts.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(recent))
	}
	if recent[0].ContentIn != "poison" || recent[0].Status != timeline.StatusFailed {
		t.Fatalf("unexpected newest exchange: %+v", recent[0])
	}
}
