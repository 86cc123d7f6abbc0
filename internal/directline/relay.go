package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Activity is one unit of conversation content in the Direct Line protocol.
type Activity struct {
	ID   string       `json:"id,omitempty"`
	Type string       `json:"type"`
	From ActivityFrom `json:"from"`
	Text string       `json:"text,omitempty"`
}

// ActivityFrom identifies the activity sender.
type ActivityFrom struct {
	ID string `json:"id"`
}

// ActivitySet is a snapshot of the conversation's activity stream. The
// watermark is an index into Activities marking the most recent activity
// of interest.
type ActivitySet struct {
	Activities []Activity `json:"activities"`
	Watermark  int        `json:"watermark"`
}

// RelayOptions bounds the reply polling loop.
type RelayOptions struct {
	// ReplyBudget is the total time allowed for the bot's reply to appear.
	ReplyBudget time.Duration
	// PollInitial is the first poll delay; doubled per attempt up to PollMax.
	PollInitial time.Duration
	PollMax     time.Duration
	// FallbackText is returned when no reply can be resolved.
	FallbackText string
}

// Relay sends user messages into an open conversation and resolves the
// bot's reply from the watermark-indexed activity stream.
//
// The upstream protocol offers no completion signal, so the relay polls
// with backoff until the activity at the watermark is one it did not send
// itself, the watermark advances past its first observed value, or the
// reply budget elapses. The watermark-position extraction assumes the
// backend appends exactly the relevant reply at that index; that is a
// protocol assumption of the Copilot activity stream, not a guarantee.
type Relay struct {
	client *Client
	opts   RelayOptions
}

// NewRelay creates a relay over the given client. Zero option fields get
// conservative defaults.
func NewRelay(client *Client, opts RelayOptions) *Relay {
	if opts.ReplyBudget <= 0 {
		opts.ReplyBudget = 10 * time.Second
	}
	if opts.PollInitial <= 0 {
		opts.PollInitial = 500 * time.Millisecond
	}
	if opts.PollMax <= 0 {
		opts.PollMax = 4 * time.Second
	}
	if strings.TrimSpace(opts.FallbackText) == "" {
		opts.FallbackText = "No response from bot."
	}
	return &Relay{client: client, opts: opts}
}

// SendAndAwaitReply posts text into the conversation and returns the
// backend's reply. An unresolvable reply (empty stream, out-of-range
// watermark, budget exhausted) yields the fallback text and no error.
// Transport failures wrap ErrSendActivity or ErrPollActivities.
func (r *Relay) SendAndAwaitReply(ctx context.Context, token, conversationID, text string) (string, error) {
	sentID, err := r.send(ctx, token, conversationID, text)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(r.opts.ReplyBudget)
	delay := r.opts.PollInitial
	firstWatermark := -1
	var last *ActivitySet

	for {
		set, err := r.poll(ctx, token, conversationID)
		if err != nil {
			return "", err
		}
		last = set
		if firstWatermark < 0 {
			firstWatermark = set.Watermark
		}
		if act, ok := activityAt(set); ok && isNewReply(act, sentID, set.Watermark, firstWatermark) {
			return replyText(act, r.opts.FallbackText), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", ErrPollActivities, ctx.Err())
		case <-timer.C:
		}
		if delay *= 2; delay > r.opts.PollMax {
			delay = r.opts.PollMax
		}
	}

	// Budget exhausted: resolve from the last snapshot, never fail for an
	// unresolvable reply alone.
	if act, ok := activityAt(last); ok {
		return replyText(act, r.opts.FallbackText), nil
	}
	return r.opts.FallbackText, nil
}

func (r *Relay) send(ctx context.Context, token, conversationID, text string) (string, error) {
	body, _ := json.Marshal(Activity{
		Type: "message",
		From: ActivityFrom{ID: "user"},
		Text: text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.client.activitiesURL(conversationID), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendActivity, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSendActivity, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrSendActivity, resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	// The posted activity's id distinguishes our own echo from the reply;
	// a body without one just disables that shortcut.
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return strings.TrimSpace(out.ID), nil
}

func (r *Relay) poll(ctx context.Context, token, conversationID string) (*ActivitySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.activitiesURL(conversationID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPollActivities, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPollActivities, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrPollActivities, resp.StatusCode)
	}
	var set ActivitySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPollActivities, err)
	}
	return &set, nil
}

func activityAt(set *ActivitySet) (Activity, bool) {
	if set == nil || set.Watermark < 0 || set.Watermark >= len(set.Activities) {
		return Activity{}, false
	}
	return set.Activities[set.Watermark], true
}

// isNewReply reports whether the activity at the watermark is something
// other than the echo of the message this relay just sent.
func isNewReply(act Activity, sentID string, watermark, firstWatermark int) bool {
	if watermark > firstWatermark {
		return true
	}
	return act.ID != "" && act.ID != sentID
}

func replyText(act Activity, fallback string) string {
	if strings.TrimSpace(act.Text) == "" {
		return fallback
	}
	return act.Text
}
