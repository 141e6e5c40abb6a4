package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
)

// ChatBridge reads chat history and sends commands to the assistant.
type ChatBridge struct {
	client *Client
	now    func() time.Time
}

var _ ports.ChatBridge = (*ChatBridge)(nil)

func NewChatBridge(client *Client) *ChatBridge {
	return &ChatBridge{client: client, now: time.Now}
}

type historyResponse struct {
	Messages []historyRecord `json:"messages"`
	Total    int             `json:"total"`
}

type historyRecord struct {
	ID            string          `json:"id"`
	Message       string          `json:"message"`
	Response      json.RawMessage `json:"response"`
	IsUserMessage bool            `json:"is_user_message"`
	CreatedAt     string          `json:"created_at"`
}

type sendRequest struct {
	TreeSessionID    string   `json:"tree_session_id"`
	Message          string   `json:"message"`
	CurrentTreeState treeData `json:"current_tree_state"`
}

type sendResponse struct {
	ID        string          `json:"id"`
	MessageID string          `json:"message_id"`
	Response  json.RawMessage `json:"response"`
	CreatedAt string          `json:"created_at"`
}

// FetchHistory returns the transcript oldest first. A record that carries
// both the user's text and the assistant's response yields two messages.
func (b *ChatBridge) FetchHistory(ctx context.Context, sessionID string) ([]entities.Message, error) {
	var resp historyResponse
	if err := b.client.get(ctx, "fetch_history", "/api/chat/history/"+url.PathEscape(sessionID), &resp); err != nil {
		return nil, err
	}

	out := make([]entities.Message, 0, len(resp.Messages))
	for _, r := range resp.Messages {
		created := parseTime(r.CreatedAt)
		hasResponse := present(r.Response)

		if r.IsUserMessage {
			out = append(out, entities.Message{ID: r.ID, Text: r.Message, IsUser: true, CreatedAt: created})
			if hasResponse {
				out = append(out, assistantMessage(r.ID+"-reply", r.Response, created))
			}
			continue
		}
		raw := r.Response
		if !hasResponse {
			raw, _ = json.Marshal(r.Message)
		}
		out = append(out, assistantMessage(r.ID, raw, created))
	}
	return out, nil
}

// SendMessage posts text with the current graph and returns the assistant
// reply. The whole response body is kept as the raw reply.
func (b *ChatBridge) SendMessage(ctx context.Context, sessionID, text string, graph entities.Snapshot) (entities.Message, error) {
	req := sendRequest{
		TreeSessionID:    sessionID,
		Message:          text,
		CurrentTreeState: toTreeData(graph),
	}
	var resp sendResponse
	raw, err := b.client.send(ctx, "send_message", http.MethodPost, "/api/chat/message", req, &resp)
	if err != nil {
		return entities.Message{}, err
	}

	msg := entities.Message{
		ID:        resp.MessageID,
		CreatedAt: parseTime(resp.CreatedAt),
		RawReply:  json.RawMessage(raw),
	}
	if msg.ID == "" {
		msg.ID = resp.ID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = b.now().UTC()
	}
	// The echoed user text sits under "message"; prefer the response text.
	if present(resp.Response) {
		msg.Text = interpreter.Text(resp.Response)
	}
	if msg.Text == "" {
		msg.Text = interpreter.Text(msg.RawReply)
	}
	return msg, nil
}

func assistantMessage(id string, raw json.RawMessage, created time.Time) entities.Message {
	return entities.Message{
		ID:        id,
		Text:      interpreter.Text(raw),
		CreatedAt: created,
		RawReply:  raw,
	}
}

func present(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != `""`
}
