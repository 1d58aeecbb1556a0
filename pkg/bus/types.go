package bus

import (
	"gewebridge/pkg/message"
	"gewebridge/pkg/reply"
)

// InboundMessage is a message the bot should answer. Content is the text
// after prefix and mention stripping; Message keeps the normalized original.
type InboundMessage struct {
	Channel     string              `json:"channel"`
	SenderID    string              `json:"sender_id"`
	ChatID      string              `json:"chat_id"`
	Content     string              `json:"content"`
	ContentType message.ContentType `json:"content_type"`
	IsGroup     bool                `json:"is_group"`
	Message     message.Message     `json:"message"`
}

// OutboundMessage addresses a reply to ChatID. AtUser is set for group
// replies that should mention the original sender.
type OutboundMessage struct {
	Channel string      `json:"channel"`
	ChatID  string      `json:"chat_id"`
	AtUser  string      `json:"at_user,omitempty"`
	Reply   reply.Reply `json:"-"`
}
