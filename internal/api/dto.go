package api

import "github.com/tmarqs/inboxsync/internal/model"

// conversationDTO mirrors the backend's list payload: the preview message
// comes as a single-element "messages" array, the unread count under
// "_count", and labels through the association join rows.
type conversationDTO struct {
	ID            string                   `json:"id"`
	ContactID     string                   `json:"contactId"`
	Status        model.ConversationStatus `json:"status"`
	BotEnabled    bool                     `json:"botEnabled"`
	LastMessageAt string                   `json:"lastMessageAt"`
	Contact       model.Contact            `json:"contact"`
	Messages      []model.Message          `json:"messages"`
	Labels        []labelAssignmentDTO     `json:"labels"`
	Count         countDTO                 `json:"_count"`
}

type labelAssignmentDTO struct {
	LabelID string      `json:"labelId"`
	Label   model.Label `json:"label"`
}

type countDTO struct {
	Messages int `json:"messages"`
}

func (d conversationDTO) toModel() model.Conversation {
	conv := model.Conversation{
		ID:          d.ID,
		ContactID:   d.ContactID,
		Status:      d.Status,
		BotEnabled:  d.BotEnabled,
		Contact:     d.Contact,
		UnreadCount: d.Count.Messages,
	}
	if len(d.Messages) > 0 {
		m := d.Messages[len(d.Messages)-1]
		conv.Preview = &m
	}
	for _, la := range d.Labels {
		l := la.Label
		if l.ID == "" {
			l.ID = la.LabelID
		}
		conv.Labels = append(conv.Labels, l)
	}
	if ts, ok := parseTimestamp(d.LastMessageAt); ok {
		conv.LastMessageAt = ts
	} else if conv.Preview != nil {
		conv.LastMessageAt = conv.Preview.Timestamp
	}
	return conv
}
