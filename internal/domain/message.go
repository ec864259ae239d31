package domain

import "time"

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	ChatID    string    `json:"chatId"`
	ChatType  ChatType  `json:"chatType"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// IsGroup reports whether the message was posted in a shared context.
func (m InboundMessage) IsGroup() bool {
	return m.ChatType == ChatTypeGroup
}

// Correspondent returns the key identifying the sender.
func (m InboundMessage) Correspondent() CorrespondentKey {
	return CorrespondentKey{ChannelID: m.ChannelID, Address: m.From}
}

// OutboundMessage is a message to be sent via a channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
	ReplyToID string `json:"replyToId,omitempty"`
}
