// Package agent is the client for the server-side chat agent.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kir-gadjello/aperture/transport"
)

const (
	chatPath = "/agent/chat"
	undoPath = "/agent/undo"
)

// ChatRequest is the /agent/chat request body. Confirm and Action are only
// sent when executing a previously previewed action.
type ChatRequest struct {
	Message string          `json:"message"`
	Confirm bool            `json:"confirm,omitempty"`
	Action  json.RawMessage `json:"action,omitempty"`
}

// Client talks to the agent endpoints of one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Chat sends a user message.
func (c *Client) Chat(ctx context.Context, message string) (Reply, error) {
	return c.chat(ctx, ChatRequest{Message: message})
}

// Confirm asks the server to execute action, which came from an earlier
// NeedsConfirmation reply to message.
func (c *Client) Confirm(ctx context.Context, message string, action json.RawMessage) (Reply, error) {
	return c.chat(ctx, ChatRequest{Message: message, Confirm: true, Action: action})
}

func (c *Client) chat(ctx context.Context, req ChatRequest) (Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Reply{}, err
	}
	body, err := c.post(ctx, chatPath, payload)
	if err != nil {
		return Reply{}, err
	}
	return DecodeReply(body)
}

// Undo reverts the last executed action. An application-level failure is
// reported through UndoResult.OK, not as an error.
func (c *Client) Undo(ctx context.Context) (UndoResult, error) {
	body, err := c.post(ctx, undoPath, nil)
	if err != nil {
		return UndoResult{}, err
	}
	var res UndoResult
	if err := json.Unmarshal(body, &res); err != nil {
		return UndoResult{}, fmt.Errorf("decode undo response: %w", err)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, rel string, payload []byte) ([]byte, error) {
	endpoint, err := transport.JoinURL(c.baseURL, rel)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("server error (status %d): %s", resp.StatusCode, errorDetail(body))
	}
	return body, nil
}

// errorDetail pulls a readable message out of an error body. FastAPI-style
// servers use "detail"; the agent itself uses "message".
func errorDetail(body []byte) string {
	var e struct {
		Detail  interface{} `json:"detail"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if s, ok := e.Detail.(string); ok && s != "" {
			return s
		}
		if e.Message != "" {
			return e.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
