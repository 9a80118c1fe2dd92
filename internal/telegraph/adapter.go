// Package telegraph bridges Signalbox to chat platforms (Slack, Discord).
// Technicians ask questions by mentioning the bot; answers, health reports
// and the routing digest are posted back to the channel.
package telegraph

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the adapter is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string // "slack", "discord"
	ChannelID string
	ThreadID  string // empty if top-level
	MessageID string
	UserID    string
	UserName  string
	Text      string
	Timestamp time.Time
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string // empty uses the adapter's default channel
	ThreadID  string
	Text      string
	Events    []FormattedEvent
}

// FormattedEvent is a structured attachment (Slack) or embed (Discord).
type FormattedEvent struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair displayed in an attachment.
type Field struct {
	Name  string
	Value string
	Short bool
}

// BotUserIDer is implemented by adapters that know the bot's own user ID.
type BotUserIDer interface {
	BotUserID() string
}
