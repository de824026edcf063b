package model

import "time"

// ConversationStatus is the server-authoritative lifecycle state of a
// conversation. "unread" is a status value, distinct from the unread counter.
type ConversationStatus string

const (
	StatusOpen    ConversationStatus = "open"
	StatusPending ConversationStatus = "pending"
	StatusUnread  ConversationStatus = "unread"
	StatusClosed  ConversationStatus = "closed"
)

// Direction tells whether a message came from the contact or the operator.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus is the delivery state of a message. The server is
// authoritative; the client accepts whatever value it receives.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// Label is a tag attachable to conversations.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Contact is the person on the other side of a conversation.
type Contact struct {
	ID                 string    `json:"id"`
	Phone              string    `json:"phone"`
	Name               string    `json:"name"`
	Company            string    `json:"company,omitempty"`
	InterestStatus     string    `json:"interestStatus,omitempty"`
	RecommendedService string    `json:"recommendedService,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Message is one chat item.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Content        string        `json:"content"`
	Type           string        `json:"type"`
	Direction      Direction     `json:"direction"`
	Status         MessageStatus `json:"status"`
	Timestamp      time.Time     `json:"timestamp"`
	MediaURL       string        `json:"mediaUrl,omitempty"`
}

// Conversation is a thread with one contact. Preview holds only the most
// recent known message, not the full history.
type Conversation struct {
	ID            string             `json:"id"`
	ContactID     string             `json:"contactId"`
	Status        ConversationStatus `json:"status"`
	BotEnabled    bool               `json:"botEnabled"`
	LastMessageAt time.Time          `json:"lastMessageAt"`
	Contact       Contact            `json:"contact"`
	Labels        []Label            `json:"labels"`
	Preview       *Message           `json:"preview,omitempty"`
	UnreadCount   int                `json:"unreadCount"`
}

// HasLabel reports whether the conversation carries the given label id.
func (c *Conversation) HasLabel(labelID string) bool {
	for _, l := range c.Labels {
		if l.ID == labelID {
			return true
		}
	}
	return false
}

// Template is a pre-approved outbound message template.
type Template struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Category string `json:"category,omitempty"`
	Body     string `json:"body,omitempty"`
}
