package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	secret := "shhh"

	if err := VerifySignature(body, Sign(body, secret), secret); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature(body, Sign(body, "other"), secret); err == nil {
		t.Fatal("signature from wrong secret accepted")
	}
	if err := VerifySignature(body, "", secret); err == nil {
		t.Fatal("missing signature accepted")
	}
	if err := VerifySignature([]byte("tampered"), Sign(body, secret), secret); err == nil {
		t.Fatal("tampered body accepted")
	}
	// Empty configured secret skips verification.
	if err := VerifySignature(body, "anything", ""); err != nil {
		t.Fatalf("empty secret must skip verification: %v", err)
	}
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"destination": "bot-1",
		"events": [
			{
				"type": "message",
				"webhookEventId": "evt-1",
				"replyToken": "rt-1",
				"source": {"type": "user", "userId": "U1"},
				"message": {"id": "m1", "type": "text", "text": "hello"}
			},
			{
				"type": "follow",
				"source": {"type": "user", "userId": "U2"}
			},
			{
				"type": "message",
				"replyToken": "rt-3",
				"source": {"type": "user", "userId": "U3"},
				"message": {"id": "m3", "type": "sticker"}
			}
		]
	}`)

	wb, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if len(wb.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(wb.Events))
	}
	if !wb.Events[0].IsTextMessage() {
		t.Fatal("text message event not recognized")
	}
	if wb.Events[0].Message.Text != "hello" || wb.Events[0].Source.UserID != "U1" {
		t.Fatalf("event fields not parsed: %+v", wb.Events[0])
	}
	if wb.Events[1].IsTextMessage() {
		t.Fatal("follow event misclassified as text message")
	}
	if wb.Events[2].IsTextMessage() {
		t.Fatal("sticker message misclassified as text message")
	}

	if _, err := ParseWebhook([]byte("{not json")); err == nil {
		t.Fatal("malformed body accepted")
	}
}

func TestEventDedupeKey(t *testing.T) {
	ev := Event{WebhookEventID: "evt-1", Message: Message{ID: "m1"}}
	if got := ev.DedupeKey(); got != "line:event:evt-1" {
		t.Fatalf("unexpected key: %q", got)
	}
	ev.WebhookEventID = ""
	if got := ev.DedupeKey(); got != "line:msg:m1" {
		t.Fatalf("unexpected fallback key: %q", got)
	}
	if got := (Event{}).DedupeKey(); got != "" {
		t.Fatalf("empty event must have empty key, got %q", got)
	}
}

func TestReplyClientPostsReply(t *testing.T) {
	type replyBody struct {
		ReplyToken string `json:"replyToken"`
		Messages   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"messages"`
	}

	var got replyBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer channel-token" {
			t.Errorf("unexpected auth: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode reply body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewReplyClient(srv.URL, "channel-token", &http.Client{Timeout: 2 * time.Second})
	if err := c.Reply(context.Background(), "rt-1", "hello back"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got.ReplyToken != "rt-1" || len(got.Messages) != 1 {
		t.Fatalf("unexpected reply payload: %+v", got)
	}
	if got.Messages[0].Type != "text" || got.Messages[0].Text != "hello back" {
		t.Fatalf("unexpected message: %+v", got.Messages[0])
	}
}

func TestReplyClientNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewReplyClient(srv.URL, "channel-token", nil)
	if err := c.Reply(context.Background(), "rt-1", "hi"); err == nil {
		t.Fatal("expected error on non-2xx reply status")
	}
}
