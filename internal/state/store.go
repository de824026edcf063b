package state

import (
	"sort"
	"sync"

	"github.com/tmarqs/inboxsync/internal/model"
)

// Store is the authoritative in-memory cache of the conversation list.
// It has a single writer (the sync engine plus console commands, both
// serialized through the mutex) and arbitrarily many snapshot readers.
// Every mutation leaves the list sorted by last message time descending,
// so readers never observe an intermediate unsorted state.
//
// No operation fails for an unknown conversation: unknown targets are
// ignored, except UpsertPreviewAndReorder which reports the miss so the
// caller can trigger a full refetch.
type Store struct {
	mu   sync.RWMutex
	list []*model.Conversation
	byID map[string]*model.Conversation
}

// New creates an empty store.
func New() *Store {
	return &Store{byID: make(map[string]*model.Conversation)}
}

// ReplaceAll swaps the whole cache for the given list, used after a full
// refetch. The input is assumed sorted by the data source; the store
// re-sorts defensively anyway.
func (s *Store) ReplaceAll(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = make([]*model.Conversation, 0, len(convs))
	s.byID = make(map[string]*model.Conversation, len(convs))
	for i := range convs {
		c := cloneConversation(&convs[i])
		s.list = append(s.list, c)
		s.byID[c.ID] = c
	}
	s.sortLocked()
}

// UpsertPreviewAndReorder replaces the conversation's preview message,
// bumps its sort key, adjusts the unread counter, and re-sorts the list.
// The counter increments only for inbound messages on a non-active
// conversation; the active conversation's counter is pinned to zero.
// Delivering a message id that already is the preview is treated as a
// duplicate and changes nothing, so replayed events cannot inflate the
// counter or re-bump the sort key.
//
// Returns false if the conversation is unknown, in which case the store is
// left untouched and the caller must request a full list refetch (a message
// event alone does not carry contact identity, so the conversation cannot
// be synthesized safely).
func (s *Store) UpsertPreviewAndReorder(conversationID string, msg model.Message, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok {
		return false
	}
	if c.Preview != nil && c.Preview.ID == msg.ID {
		// Duplicate delivery of an already-seen message: ordering and
		// the unread counter already account for it.
		return true
	}

	m := msg
	c.Preview = &m
	c.LastMessageAt = msg.Timestamp
	if active {
		c.UnreadCount = 0
	} else if msg.Direction == model.DirectionInbound {
		c.UnreadCount++
	}
	s.sortLocked()
	return true
}

// PatchMessageStatus updates the preview message's delivery state when it
// matches the given message id. Independent of the active conversation.
func (s *Store) PatchMessageStatus(conversationID, messageID string, status model.MessageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[conversationID]
	if !ok || c.Preview == nil || c.Preview.ID != messageID {
		return
	}
	c.Preview.Status = status
}

// SetBotEnabled patches the automated-reply flag. No reordering.
func (s *Store) SetBotEnabled(conversationID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[conversationID]; ok {
		c.BotEnabled = enabled
	}
}

// SetStatus patches the conversation lifecycle state. No reordering.
func (s *Store) SetStatus(conversationID string, status model.ConversationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[conversationID]; ok {
		c.Status = status
	}
}

// AddLabel attaches a label if not already present (idempotent).
func (s *Store) AddLabel(conversationID string, label model.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[conversationID]
	if !ok || c.HasLabel(label.ID) {
		return
	}
	c.Labels = append(c.Labels, label)
}

// RemoveLabel detaches a label; removing an absent label is a no-op.
func (s *Store) RemoveLabel(conversationID, labelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[conversationID]
	if !ok {
		return
	}
	for i, l := range c.Labels {
		if l.ID == labelID {
			c.Labels = append(c.Labels[:i], c.Labels[i+1:]...)
			return
		}
	}
}

// ResetUnread zeroes the unread counter, called when a conversation
// becomes active and its history is being loaded.
func (s *Store) ResetUnread(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[conversationID]; ok {
		c.UnreadCount = 0
	}
}

// Get returns a copy of one conversation.
func (s *Store) Get(conversationID string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[conversationID]
	if !ok {
		return model.Conversation{}, false
	}
	return *cloneConversation(c), true
}

// Snapshot returns a copy of the ordered conversation list. The copy is
// detached: mutating it does not affect the store.
func (s *Store) Snapshot() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, 0, len(s.list))
	for _, c := range s.list {
		out = append(out, *cloneConversation(c))
	}
	return out
}

// Len returns the number of cached conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// sortLocked orders by last message time descending, ties broken by id so
// the order is deterministic.
func (s *Store) sortLocked() {
	sort.SliceStable(s.list, func(i, j int) bool {
		a, b := s.list[i], s.list[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ID < b.ID
	})
}

func cloneConversation(c *model.Conversation) *model.Conversation {
	out := *c
	if c.Labels != nil {
		out.Labels = make([]model.Label, len(c.Labels))
		copy(out.Labels, c.Labels)
	}
	if c.Preview != nil {
		m := *c.Preview
		out.Preview = &m
	}
	return &out
}
