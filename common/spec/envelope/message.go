// Package envelope defines the normalised inbound message that every
// transport adapter (Matrix bridge, HTTP gateway webhook, local chat) hands
// to the responder. Adapters translate their native event into a Message;
// the responder never sees transport-specific types.
package envelope

import (
	"fmt"
	"time"
)

// MaxSenderIDLen bounds SenderID. Matrix user IDs are limited to 255 bytes;
// nothing a bridge or gateway sends is longer.
const MaxSenderIDLen = 255

// Channel names used by the built-in adapters.
const (
	ChannelMatrix  = "matrix"
	ChannelWebhook = "webhook"
	ChannelLocal   = "local"
)

// Message is one inbound text message from a single sender.
type Message struct {
	// Channel names the adapter that received the message.
	Channel string `json:"channel"`

	// SenderID is the opaque per-conversation key: a phone number, a
	// WhatsApp JID or a bridged Matrix user ID. Conversation memory is keyed
	// by it.
	SenderID string `json:"sender_id"`

	// ConversationID is where the reply must go when it differs from the
	// sender (the Matrix room ID for bridged chats). Optional.
	ConversationID string `json:"conversation_id,omitempty"`

	// Text is the raw message body. Non-text payloads are coerced to a
	// string by the adapter; empty is valid and yields the fallback reply.
	Text string `json:"text"`

	// ReceivedAt is when the adapter received the message.
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks that a Message can be routed to a conversation.
// Text is deliberately not checked.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message must not be nil")
	}
	if m.Channel == "" {
		return fmt.Errorf("channel must not be empty")
	}
	if m.SenderID == "" {
		return fmt.Errorf("sender_id must not be empty")
	}
	if len(m.SenderID) > MaxSenderIDLen {
		return fmt.Errorf("sender_id is %d bytes, limit is %d", len(m.SenderID), MaxSenderIDLen)
	}
	return nil
}

// ReplyTo returns the address an outbound reply should be sent to.
func (m *Message) ReplyTo() string {
	if m.ConversationID != "" {
		return m.ConversationID
	}
	return m.SenderID
}
