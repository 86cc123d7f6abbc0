// Package line covers the LINE Messaging API surface this gateway
// touches: webhook event parsing, signature verification, and the reply
// endpoint.
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the webhook body HMAC.
const SignatureHeader = "X-Line-Signature"

// Event is one webhook event. Only text message events are relayed;
// everything else passes through untouched and is ignored downstream.
type Event struct {
	Type           string  `json:"type"`
	WebhookEventID string  `json:"webhookEventId,omitempty"`
	ReplyToken     string  `json:"replyToken,omitempty"`
	Source         Source  `json:"source"`
	Message        Message `json:"message,omitempty"`
}

// Source identifies where an event originated.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message payload of a message event.
type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsTextMessage reports whether the event is a relayable text message.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text"
}

// DedupeKey returns a stable identity for webhook redelivery detection.
func (e Event) DedupeKey() string {
	if id := strings.TrimSpace(e.WebhookEventID); id != "" {
		return "line:event:" + id
	}
	if e.Message.ID != "" {
		return "line:msg:" + e.Message.ID
	}
	return ""
}

// WebhookBody is the envelope of a webhook delivery: a batch of events.
type WebhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// ParseWebhook decodes a webhook delivery body.
func ParseWebhook(body []byte) (*WebhookBody, error) {
	var wb WebhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("parse webhook body: %w", err)
	}
	return &wb, nil
}

// VerifySignature checks the X-Line-Signature header against the raw
// request body: base64(HMAC-SHA256(channel secret, body)). An empty
// configured secret skips verification.
func VerifySignature(body []byte, signature, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("missing line signature header")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("line signature mismatch")
	}
	return nil
}

// Sign computes the webhook signature for a body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
