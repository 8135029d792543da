package ozon

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	endpointChatList    = "/v2/chat/list"
	endpointChatHistory = "/v3/chat/history"
	endpointSendMessage = "/v1/chat/send/message"
	endpointSendFile    = "/v1/chat/send/file"
	endpointChatRead    = "/v2/chat/read"
	endpointChatStart   = "/v1/chat/start"
	endpointChatFile    = "/v2/chat/file/messenger-rotated-2/"

	defaultChatListLimit    = 30
	defaultChatHistoryLimit = 50
)

// ChatListRequest selects one page of chats.
type ChatListRequest struct {
	Status     ChatStatus
	UnreadOnly bool
	Limit      int
	Offset     int
}

// ChatSummary is one entry of the chat list.
type ChatSummary struct {
	ChatID               string     `json:"chat_id"`
	Status               ChatStatus `json:"chat_status"`
	Type                 ChatType   `json:"chat_type"`
	CreatedAt            time.Time  `json:"created_at"`
	FirstUnreadMessageID ID         `json:"first_unread_message_id"`
	UnreadCount          int        `json:"unread_count"`
	LastMessageID        ID         `json:"last_message_id"`
}

// ChatPage is a single chat list page.
type ChatPage struct {
	Chats       []ChatSummary `json:"chats"`
	TotalChats  int           `json:"total_chats_count"`
	TotalUnread int           `json:"total_unread_count"`
}

type chatListPayload struct {
	Filter chatListFilter `json:"filter"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type chatListFilter struct {
	ChatStatus ChatStatus `json:"chat_status"`
	UnreadOnly bool       `json:"unread_only"`
}

// ListChats returns one page of chats. Draining offsets is up to the caller.
func (c *Client) ListChats(ctx context.Context, token string, req ChatListRequest) (ChatPage, error) {
	payload := chatListPayload{
		Filter: chatListFilter{ChatStatus: req.Status, UnreadOnly: req.UnreadOnly},
		Limit:  clampLimit(req.Limit, defaultChatListLimit, maxPageLimit),
		Offset: req.Offset,
	}
	if payload.Offset < 0 {
		payload.Offset = 0
	}
	var page ChatPage
	if err := c.post(ctx, token, endpointChatList, payload, &page); err != nil {
		return ChatPage{}, swallowPlan(err)
	}
	return page, nil
}

// ChatUser identifies a message author.
type ChatUser struct {
	ID   string   `json:"id"`
	Type UserType `json:"type"`
}

// ChatMessage is one message of a chat history page.
type ChatMessage struct {
	ID        ID        `json:"message_id"`
	User      ChatUser  `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
	IsImage   bool      `json:"is_image"`
	Data      []string  `json:"data"`
}

// ChatHistoryRequest selects one page of a chat history.
type ChatHistoryRequest struct {
	ChatID        string
	Direction     HistoryDirection
	FromMessageID ID
	Limit         int
}

type chatHistoryPayload struct {
	ChatID        string           `json:"chat_id"`
	Direction     HistoryDirection `json:"direction"`
	FromMessageID ID               `json:"from_message_id,omitempty"`
	Limit         int              `json:"limit"`
}

type chatHistoryResponse struct {
	HasNext  bool          `json:"has_next"`
	Messages []ChatMessage `json:"messages"`
}

// ChatHistory returns one page of messages. Backward pages are newest first.
func (c *Client) ChatHistory(ctx context.Context, token string, req ChatHistoryRequest) ([]ChatMessage, error) {
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, invalidArgument("chat id is required for chat history")
	}
	direction := req.Direction
	if direction == "" {
		direction = DirectionBackward
	}
	payload := chatHistoryPayload{
		ChatID:        req.ChatID,
		Direction:     direction,
		FromMessageID: req.FromMessageID,
		Limit:         clampLimit(req.Limit, defaultChatHistoryLimit, maxPageLimit),
	}
	var resp chatHistoryResponse
	if err := c.post(ctx, token, endpointChatHistory, payload, &resp); err != nil {
		return nil, swallowPlan(err)
	}
	return resp.Messages, nil
}

// SendMessage posts a text message into a chat.
func (c *Client) SendMessage(ctx context.Context, token, chatID, text string) error {
	if strings.TrimSpace(chatID) == "" {
		return invalidArgument("chat id is required to send a message")
	}
	if strings.TrimSpace(text) == "" {
		return invalidArgument("text is required to send a message")
	}
	payload := map[string]string{"chat_id": chatID, "text": text}
	return swallowPlan(c.post(ctx, token, endpointSendMessage, payload, nil))
}

// SendFile uploads a file into a chat.
func (c *Client) SendFile(ctx context.Context, token, chatID, name string, content []byte) error {
	if strings.TrimSpace(chatID) == "" {
		return invalidArgument("chat id is required to send a file")
	}
	if name == "" || len(content) == 0 {
		return invalidArgument("file name and content are required")
	}
	payload := map[string]string{
		"base64_content": base64.StdEncoding.EncodeToString(content),
		"chat_id":        chatID,
		"name":           name,
	}
	return swallowPlan(c.post(ctx, token, endpointSendFile, payload, nil))
}

type chatReadPayload struct {
	ChatID        string `json:"chat_id"`
	FromMessageID ID     `json:"from_message_id"`
}

// MarkRead marks chat messages up to fromMessageID as read.
func (c *Client) MarkRead(ctx context.Context, token, chatID string, fromMessageID ID) error {
	if strings.TrimSpace(chatID) == "" || fromMessageID == "" {
		return invalidArgument("chat id and message id are required to mark a chat read")
	}
	payload := chatReadPayload{ChatID: chatID, FromMessageID: fromMessageID}
	return swallowPlan(c.post(ctx, token, endpointChatRead, payload, nil))
}

type chatStartResponse struct {
	Result struct {
		ChatID string `json:"chat_id"`
	} `json:"result"`
}

// StartChat opens a buyer chat for a posting and returns its id.
func (c *Client) StartChat(ctx context.Context, token, postingNumber string) (string, error) {
	posting := strings.TrimPrefix(strings.TrimSpace(postingNumber), "O-")
	if posting == "" {
		return "", invalidArgument("posting number is required to start a chat")
	}
	var resp chatStartResponse
	if err := c.post(ctx, token, endpointChatStart, map[string]string{"posting_number": posting}, &resp); err != nil {
		return "", swallowPlan(err)
	}
	return resp.Result.ChatID, nil
}

// File is a streamed chat attachment. The caller must close Body.
type File struct {
	Body          io.ReadCloser
	ContentLength int64
}

// DownloadFile fetches a chat attachment by its file name.
func (c *Client) DownloadFile(ctx context.Context, token, name string) (*File, error) {
	if name == "" || name != path.Base(name) || strings.Contains(name, "..") {
		return nil, invalidArgument("bad file name %q", name)
	}
	endpoint := endpointChatFile + name
	resp, err := c.send(ctx, http.MethodGet, token, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.classify(token, endpoint, resp.StatusCode, raw)
	}
	return &File{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}
