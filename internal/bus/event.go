package bus

import "time"

// Event kinds published by the engine and daemon. Subscribers filter by
// namespace prefix ("message.", "chatlist.", "daemon.").
const (
	KindMessageSent       = "message.sent"
	KindMessageSendFailed = "message.send_failed"
	KindMessagesRefreshed = "message.refreshed"
	KindChatListUpdated   = "chatlist.updated"
	KindChatOpened        = "chat.opened"
	KindChatClosed        = "chat.closed"
	KindStatusChanged     = "daemon.status_changed"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ChatRef is the payload of chat-scoped events.
type ChatRef struct {
	ChatID string
	Detail string
}
