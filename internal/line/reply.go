package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReplyClient delivers text replies through the LINE reply API. It is the
// gateway's only outbound contract toward the messaging platform.
type ReplyClient struct {
	httpClient  *http.Client
	apiBase     string
	accessToken string
}

// NewReplyClient creates a reply client for the given API base
// (https://api.line.me in production) and channel access token.
func NewReplyClient(apiBase, accessToken string, httpClient *http.Client) *ReplyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &ReplyClient{
		httpClient:  httpClient,
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		accessToken: strings.TrimSpace(accessToken),
	}
}

// Reply sends one text message for the given reply token.
func (c *ReplyClient) Reply(ctx context.Context, replyToken, text string) error {
	body, _ := json.Marshal(map[string]any{
		"replyToken": replyToken,
		"messages": []map[string]any{
			{"type": "text", "text": text},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("line reply status: %d", resp.StatusCode)
	}
	return nil
}
