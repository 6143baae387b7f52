package chat

import (
	"errors"
	"io"
	"strings"
)

var ErrEmptyMessage = errors.New("message has neither text nor attachment")

// OutgoingKind classifies an outgoing message.
type OutgoingKind int

const (
	TextOnly OutgoingKind = iota + 1
	TextWithAttachment
	AttachmentOnly
)

func (k OutgoingKind) String() string {
	switch k {
	case TextOnly:
		return "text"
	case TextWithAttachment:
		return "text+attachment"
	case AttachmentOnly:
		return "attachment"
	default:
		return "empty"
	}
}

// Attachment is a file to upload alongside a message.
type Attachment struct {
	Name string
	Body io.Reader
}

// Outgoing is a message a user is about to send.
type Outgoing struct {
	Text       string
	Attachment *Attachment
}

// Kind reports the variant, or 0 when the message is empty.
func (o Outgoing) Kind() OutgoingKind {
	hasText := strings.TrimSpace(o.Text) != ""
	hasFile := o.Attachment != nil
	switch {
	case hasText && hasFile:
		return TextWithAttachment
	case hasFile:
		return AttachmentOnly
	case hasText:
		return TextOnly
	default:
		return 0
	}
}

// Validate rejects empty messages and unnamed attachments.
func (o Outgoing) Validate() error {
	if o.Kind() == 0 {
		return ErrEmptyMessage
	}
	if o.Attachment != nil && (o.Attachment.Name == "" || o.Attachment.Body == nil) {
		return errors.New("attachment needs a name and a body")
	}
	return nil
}
