package normalize

import "github.com/tmarqs/inboxsync/internal/model"

// RawEvent is an undecoded realtime event as delivered by a transport:
// an envelope kind plus a loosely-typed payload. The two upstream sources
// (CDC feed and application channel) use different envelope names and
// different key casing for the same logical fields; Normalize resolves both.
type RawEvent struct {
	Kind    string
	Payload map[string]any
}

// Event is one normalized realtime change. Exactly one concrete type is
// produced per accepted raw event.
type Event interface {
	// Conversation returns the id of the conversation the event targets.
	Conversation() string
}

// MessageCreated carries a newly stored message.
type MessageCreated struct {
	Message model.Message
}

// MessageStatusChanged carries a delivery-state transition for one message.
type MessageStatusChanged struct {
	ConversationID string
	MessageID      string
	Status         model.MessageStatus
}

// BotToggled carries a change of the automated-reply flag.
type BotToggled struct {
	ConversationID string
	Enabled        bool
}

// StatusChanged carries a conversation lifecycle transition.
type StatusChanged struct {
	ConversationID string
	Status         model.ConversationStatus
}

// LabelAssigned carries a label attached to a conversation.
type LabelAssigned struct {
	ConversationID string
	Label          model.Label
}

// LabelRemoved carries a label detached from a conversation.
type LabelRemoved struct {
	ConversationID string
	LabelID        string
}

func (e MessageCreated) Conversation() string       { return e.Message.ConversationID }
func (e MessageStatusChanged) Conversation() string { return e.ConversationID }
func (e BotToggled) Conversation() string           { return e.ConversationID }
func (e StatusChanged) Conversation() string        { return e.ConversationID }
func (e LabelAssigned) Conversation() string        { return e.ConversationID }
func (e LabelRemoved) Conversation() string         { return e.ConversationID }
