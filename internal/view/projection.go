package view

import (
	"sync"

	"github.com/tmarqs/inboxsync/internal/model"
)

// Projection is the detail view of the single active conversation: the
// conversation header plus its full message list. At most one conversation
// is active at a time; every mutator takes the target conversation id and
// no-ops when it does not match the active one, so the projection can never
// drift to another conversation's data.
type Projection struct {
	mu       sync.RWMutex
	active   *model.Conversation
	messages []model.Message
}

// New creates an empty projection with no active conversation.
func New() *Projection {
	return &Projection{}
}

// Select makes the given conversation active and clears the message list.
// The list stays empty until SetHistory delivers the fetched history.
func (p *Projection) Select(conv model.Conversation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := conv
	c.UnreadCount = 0
	p.active = &c
	p.messages = nil
}

// Clear drops the active conversation and its messages.
func (p *Projection) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
	p.messages = nil
}

// ActiveID returns the active conversation id, or "" if none.
func (p *Projection) ActiveID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active == nil {
		return ""
	}
	return p.active.ID
}

// SetHistory replaces the message list wholesale with fetched history.
// Returns false without mutating if conversationID is not the active one
// (the stale-response guard for a fetch that resolved after a switch).
func (p *Projection) SetHistory(conversationID string, msgs []model.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return false
	}
	p.messages = make([]model.Message, len(msgs))
	copy(p.messages, msgs)
	return true
}

// AppendMessage adds a live message to the detail list, deduplicating by
// message id so replayed events cannot produce duplicates.
func (p *Projection) AppendMessage(conversationID string, msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return
	}
	for _, m := range p.messages {
		if m.ID == msg.ID {
			return
		}
	}
	p.messages = append(p.messages, msg)
}

// PatchMessageStatus updates the matching detail message in place.
func (p *Projection) PatchMessageStatus(conversationID, messageID string, status model.MessageStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return
	}
	for i := range p.messages {
		if p.messages[i].ID == messageID {
			p.messages[i].Status = status
			return
		}
	}
}

// SetBotEnabled mirrors the bot flag into the detail header.
func (p *Projection) SetBotEnabled(conversationID string, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return
	}
	p.active.BotEnabled = enabled
}

// SetStatus mirrors the lifecycle state into the detail header.
func (p *Projection) SetStatus(conversationID string, status model.ConversationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return
	}
	p.active.Status = status
}

// AddLabel mirrors a label assignment into the detail header (idempotent).
func (p *Projection) AddLabel(conversationID string, label model.Label) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID || p.active.HasLabel(label.ID) {
		return
	}
	p.active.Labels = append(p.active.Labels, label)
}

// RemoveLabel mirrors a label removal into the detail header (idempotent).
func (p *Projection) RemoveLabel(conversationID, labelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.ID != conversationID {
		return
	}
	for i, l := range p.active.Labels {
		if l.ID == labelID {
			p.active.Labels = append(p.active.Labels[:i], p.active.Labels[i+1:]...)
			return
		}
	}
}

// Snapshot returns detached copies of the active conversation and its
// message list. The conversation is nil when nothing is selected.
func (p *Projection) Snapshot() (*model.Conversation, []model.Message) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active == nil {
		return nil, nil
	}
	c := *p.active
	if p.active.Labels != nil {
		c.Labels = make([]model.Label, len(p.active.Labels))
		copy(c.Labels, p.active.Labels)
	}
	msgs := make([]model.Message, len(p.messages))
	copy(msgs, p.messages)
	return &c, msgs
}
