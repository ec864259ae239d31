package domain

import "context"

// ChannelCapabilities describes what a channel implementation supports.
type ChannelCapabilities struct {
	ChatTypes []ChatType `json:"chatTypes"`
	Multiline bool       `json:"multiline,omitempty"`
}

// ChannelStatus reports the runtime state of a channel.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	Peers     int    `json:"peers,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is the interface that all transport implementations must satisfy.
type Channel interface {
	// ID returns the channel identifier (e.g., "irc", "webchat").
	ID() string

	// Capabilities returns what this channel supports.
	Capabilities() ChannelCapabilities

	// Start connects the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully disconnects the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message through this channel.
	Send(ctx context.Context, msg OutboundMessage) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))
}
