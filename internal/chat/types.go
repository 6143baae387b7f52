// Package chat holds the records shared through the real-time store and a
// typed repository over it.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/friendzone/internal/identity"
)

// PlaceholderImage is the summary icon shown when the last message carried
// an attachment.
const PlaceholderImage = "/images/add-image.png"

// TimeLayout renders Summary.Time in the sender's local clock.
const TimeLayout = "3:04 PM"

// User is a directory record under users/<id>.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Email     string `json:"email"`
	AuthToken string `json:"-"`
}

// Participant converts u to the snapshot kept inside a session.
func (u User) Participant() Participant {
	return Participant{ID: u.ID, Avatar: u.Avatar, Username: u.Username}
}

// Participant is a denormalized user snapshot taken when a session is
// created. It is not refreshed when the user record changes.
type Participant struct {
	ID       string `json:"id"`
	Avatar   string `json:"avatar"`
	Username string `json:"username"`
}

// Summary is the last-message preview stored on a session.
type Summary struct {
	Text   string  `json:"text"`
	Image  *string `json:"image"`
	Time   string  `json:"time"`
	SentAt int64   `json:"sentAt,omitempty"`
}

// NewSummary builds the preview for a message sent at now.
func NewSummary(text string, attached bool, now time.Time) Summary {
	s := Summary{Text: text, Time: now.Format(TimeLayout), SentAt: now.UnixMilli()}
	if attached {
		img := PlaceholderImage
		s.Image = &img
	}
	return s
}

// Session is a chat record under chats/<chatId>.
type Session struct {
	ChatID      string
	UserA       Participant
	UserB       Participant
	LastMessage *Summary
}

type sessionJSON struct {
	ChatID      string          `json:"chatId"`
	UserA       Participant     `json:"userA"`
	UserB       Participant     `json:"userB"`
	LastMessage json.RawMessage `json:"lastMessage"`
}

var emptyLastMessage = json.RawMessage(`""`)

// MarshalJSON writes lastMessage as "" until the first message is sent.
func (s Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{ChatID: s.ChatID, UserA: s.UserA, UserB: s.UserB, LastMessage: emptyLastMessage}
	if s.LastMessage != nil {
		raw, err := json.Marshal(s.LastMessage)
		if err != nil {
			return nil, err
		}
		out.LastMessage = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts "", null or an object for lastMessage.
func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Session{ChatID: in.ChatID, UserA: in.UserA, UserB: in.UserB}

	raw := bytes.TrimSpace(in.LastMessage)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, emptyLastMessage) {
		return nil
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return fmt.Errorf("lastMessage: %w", err)
	}
	s.LastMessage = &sum
	return nil
}

// NewSession creates an empty session between initiator and peer stored
// under chatID.
func NewSession(chatID string, initiator, peer User) Session {
	return Session{ChatID: chatID, UserA: initiator.Participant(), UserB: peer.Participant()}
}

// Involves reports whether userID participates in the session, judged by
// the chat id rather than the denormalized snapshots.
func (s Session) Involves(userID string) bool {
	return identity.Involves(s.ChatID, userID)
}

// Peer returns the participant snapshot that is not userID.
func (s Session) Peer(userID string) Participant {
	if s.UserA.ID == userID {
		return s.UserB
	}
	return s.UserA
}

// Message is one entry of messages/<chatId>.
type Message struct {
	Key      string  `json:"-"`
	ChatID   string  `json:"chatId"`
	SenderID string  `json:"senderId"`
	Text     string  `json:"text"`
	File     *string `json:"file"`
}
