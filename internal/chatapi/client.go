// Package chatapi is the REST collaborator the realtime core calls for
// operations that live outside the socket: fetching a chat's aggregated
// history snapshot and closing a chat. Responses use the CRM's
// {success, data} envelope; a non-success response is an error to surface,
// never to ignore.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/counseldesk/operator-console/internal/protocol"
)

// Client talks to the chat REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL, e.g.
// "https://crm.example.com/api/chat". The trailing slash is optional.
func NewClient(baseURL string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// historyResponse is the {success, data} envelope of the history endpoint.
type historyResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    []protocol.ChatMessage `json:"data"`
}

// closeResponse is the {success} envelope of the close endpoint.
type closeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// closeRequest is the body of the close endpoint.
type closeRequest struct {
	OperatorID string `json:"operatorId"`
	Role       string `json:"role"`
}

// History fetches the aggregated point-in-time message snapshot for a chat.
// The returned slice replaces the local timeline; overlap with concurrently
// pushed messages is resolved by the caller's id-based dedupe.
func (c *Client) History(ctx context.Context, chatID string) ([]protocol.ChatMessage, error) {
	u := fmt.Sprintf("%s/chats/%s/history?aggregated=true", c.baseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("chatapi: build history request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatapi: fetch history chat=%s: %w", chatID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chatapi: history chat=%s: unexpected status %d", chatID, resp.StatusCode)
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("chatapi: decode history chat=%s: %w", chatID, err)
	}
	if !body.Success {
		return nil, fmt.Errorf("chatapi: history chat=%s: server reported failure: %s", chatID, body.Message)
	}
	return body.Data, nil
}

// Close asks the server to close a chat on the operator's behalf. The local
// chat status must NOT be flipped on success here; it only transitions on the
// chat_closed push event, so a lost push cannot leave the console and the
// server disagreeing about who closed the chat.
func (c *Client) Close(ctx context.Context, chatID, operatorID, role string) error {
	payload, err := json.Marshal(closeRequest{OperatorID: operatorID, Role: role})
	if err != nil {
		return fmt.Errorf("chatapi: marshal close request: %w", err)
	}

	u := fmt.Sprintf("%s/chats/%s/close", c.baseURL, chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chatapi: build close request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chatapi: close chat=%s: %w", chatID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatapi: close chat=%s: unexpected status %d", chatID, resp.StatusCode)
	}

	var body closeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("chatapi: decode close response chat=%s: %w", chatID, err)
	}
	if !body.Success {
		return fmt.Errorf("chatapi: close chat=%s: server reported failure: %s", chatID, body.Message)
	}
	return nil
}
