package api

import "github.com/matheus3301/friendzone/internal/chat"

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Profile       string `json:"profile"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Status        string `json:"status"`
	StatusMessage string `json:"statusMessage"`
	Backend       string `json:"backend"`
	ActiveChatID  string `json:"activeChatId,omitempty"`
	UptimeMs      int64  `json:"uptimeMs"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StartOrResumeChatRequest struct {
	FriendID string `json:"friendId"`
}

// ChatResponse carries one session.
type ChatResponse struct {
	Chat chat.Session `json:"chat"`
}

type ListChatsRequest struct {
	// UserID defaults to the signed-in user.
	UserID string `json:"userId,omitempty"`
}

type ListChatsResponse struct {
	Chats []chat.Session `json:"chats"`
}

type RestoreChatRequest struct {
	// CachedOnly returns the pinned chat without validating it.
	CachedOnly bool `json:"cachedOnly,omitempty"`
}

type CloseChatRequest struct{}

type CloseChatResponse struct{}

type WatchChatsRequest struct{}

type ChatListUpdate struct {
	Chats []chat.Session `json:"chats"`
}

// Message is a chat log entry with its store key.
type Message struct {
	Key      string  `json:"key"`
	ChatID   string  `json:"chatId"`
	SenderID string  `json:"senderId"`
	Text     string  `json:"text"`
	File     *string `json:"file"`
}

// Attachment is an uploaded file carried inline.
type Attachment struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type SendMessageRequest struct {
	// ChatID defaults to the active chat.
	ChatID string `json:"chatId,omitempty"`
	// SenderID defaults to the signed-in user.
	SenderID   string      `json:"senderId,omitempty"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

type MessagesResponse struct {
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

type FetchMessagesRequest struct {
	ChatID string `json:"chatId,omitempty"`
}

type WatchMessagesRequest struct {
	ChatID string `json:"chatId,omitempty"`
}

type SearchUsersRequest struct {
	Query string `json:"query"`
}

type SearchUsersResponse struct {
	Users []chat.User `json:"users"`
}

func toMessages(in []chat.Message) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, Message{Key: m.Key, ChatID: m.ChatID, SenderID: m.SenderID, Text: m.Text, File: m.File})
	}
	return out
}
