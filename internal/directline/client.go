// Package directline talks to a Bot Framework Direct Line v3 backend:
// acquiring tokens, opening conversations, and relaying message activities
// over the HTTP polling protocol.
package directline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client performs single-shot Direct Line requests. It holds no session
// state: token and conversation caching is the session registry's job.
type Client struct {
	httpClient *http.Client
	tokenURL   string
	baseURL    string
}

// NewClient creates a client for the given token endpoint and Direct Line
// conversations base URL. A nil httpClient gets a bounded default.
func NewClient(tokenURL, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		tokenURL:   strings.TrimSpace(tokenURL),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// BaseURL returns the conversations base URL the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// AcquireToken fetches a Direct Line access token from the configured
// token endpoint. The response also carries expiry and a conversation id,
// but only the token is read; conversations are opened explicitly. Not
// retried: the caller decides.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAcquireToken, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAcquireToken, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrAcquireToken, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrAcquireToken, err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", fmt.Errorf("%w: response missing token", ErrAcquireToken)
	}
	return out.Token, nil
}

// OpenConversation starts a new Direct Line conversation using the given
// token and returns its id.
func (c *Client) OpenConversation(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenConversation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenConversation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrOpenConversation, resp.StatusCode)
	}
	var out struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrOpenConversation, err)
	}
	if strings.TrimSpace(out.ConversationID) == "" {
		return "", fmt.Errorf("%w: response missing conversationId", ErrOpenConversation)
	}
	return out.ConversationID, nil
}

func (c *Client) activitiesURL(conversationID string) string {
	return c.baseURL + "/" + conversationID + "/activities"
}
