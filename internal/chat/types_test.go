package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSessionWithoutSummaryWritesEmptyString(t *testing.T) {
	s := NewSession("u1+u2", User{ID: "u1", Username: "ada"}, User{ID: "u2", Username: "bob"})
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"lastMessage":""`) {
		t.Errorf("encoded session = %s, want lastMessage \"\"", data)
	}
	if !strings.Contains(string(data), `"userA":{"id":"u1","avatar":"","username":"ada"}`) {
		t.Errorf("encoded session = %s, want userA snapshot", data)
	}
}

func TestSessionDecodesLastMessageForms(t *testing.T) {
	tests := []struct {
		name    string
		last    string
		want    bool
		wantErr bool
	}{
		{"empty string", `""`, false, false},
		{"null", `null`, false, false},
		{"missing", ``, false, false},
		{"object", `{"text":"hi","image":null,"time":"3:04 PM"}`, true, false},
		{"number", `7`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"chatId":"u1+u2","userA":{"id":"u1"},"userB":{"id":"u2"}`
			if tt.last != "" {
				doc += `,"lastMessage":` + tt.last
			}
			doc += `}`

			var s Session
			err := json.Unmarshal([]byte(doc), &s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if (s.LastMessage != nil) != tt.want {
				t.Errorf("LastMessage = %+v, want present=%v", s.LastMessage, tt.want)
			}
			if s.ChatID != "u1+u2" || s.UserB.ID != "u2" {
				t.Errorf("session = %+v", s)
			}
		})
	}
}

func TestNewSummary(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 4, 0, 0, time.Local)

	plain := NewSummary("hi", false, at)
	if plain.Image != nil {
		t.Errorf("Image = %v, want nil for text only", *plain.Image)
	}
	if plain.Time != "3:04 PM" {
		t.Errorf("Time = %q, want 3:04 PM", plain.Time)
	}
	if plain.SentAt != at.UnixMilli() {
		t.Errorf("SentAt = %d", plain.SentAt)
	}

	withFile := NewSummary("", true, at)
	if withFile.Image == nil || *withFile.Image != PlaceholderImage {
		t.Errorf("Image = %v, want placeholder", withFile.Image)
	}
}

func TestMessageFileIsNullWhenAbsent(t *testing.T) {
	data, err := json.Marshal(Message{Key: "k", ChatID: "u1+u2", SenderID: "u1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"chatId":"u1+u2","senderId":"u1","text":"hi","file":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestOutgoingKind(t *testing.T) {
	att := &Attachment{Name: "a.png", Body: strings.NewReader("x")}
	tests := []struct {
		name    string
		out     Outgoing
		want    OutgoingKind
		wantErr bool
	}{
		{"text", Outgoing{Text: "hi"}, TextOnly, false},
		{"text and file", Outgoing{Text: "hi", Attachment: att}, TextWithAttachment, false},
		{"file only", Outgoing{Attachment: att}, AttachmentOnly, false},
		{"blank text", Outgoing{Text: "  \n"}, 0, true},
		{"nothing", Outgoing{}, 0, true},
		{"unnamed file", Outgoing{Attachment: &Attachment{Body: strings.NewReader("x")}}, AttachmentOnly, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
			if err := tt.out.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
