package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/tmarqs/inboxsync/internal/model"
)

// Normalization errors. Callers treat any error as "discard the event";
// the realtime channel is best-effort and a refetch recovers correctness.
var (
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrMissingField = errors.New("missing required field")
)

// Field aliases tried in priority order. The application channel emits
// camelCase, the CDC feed emits snake_case column names, and some older
// producers nest or rename fields; the first defined value wins.
var (
	conversationIDKeys = []string{"conversationId", "conversation_id", "convId"}
	messageIDKeys      = []string{"id", "messageId", "message_id"}
	timestampKeys      = []string{"timestamp", "createdAt", "created_at"}
	statusKeys         = []string{"status", "newStatus", "new_status"}
	botKeys            = []string{"botEnabled", "bot_enabled", "enabled"}
	labelIDKeys        = []string{"labelId", "label_id", "id"}
	contentKeys        = []string{"content", "body"}
	mediaKeys          = []string{"mediaUrl", "media_url"}
)

// Normalize converts one raw event into its typed form, or returns an error
// if the envelope kind is unknown or the minimum fields (entity id, target
// conversation id) are absent. It has no side effects.
func Normalize(raw RawEvent) (Event, error) {
	switch raw.Kind {
	case "newMessage", "messages.insert":
		return normalizeMessageCreated(raw.Payload)
	case "messageStatus", "messages.update":
		return normalizeMessageStatus(raw.Payload)
	case "botToggled":
		return normalizeBotToggled(raw.Payload)
	case "conversationStatus":
		return normalizeStatusChanged(raw.Payload)
	case "conversations.update":
		// A CDC row update on conversations carries whichever column
		// changed; distinguish by the present field.
		if _, ok := pickAny(raw.Payload, botKeys); ok {
			return normalizeBotToggled(raw.Payload)
		}
		return normalizeStatusChanged(raw.Payload)
	case "labelAssigned", "conversation_labels.insert":
		return normalizeLabelAssigned(raw.Payload)
	case "labelRemoved", "conversation_labels.delete":
		return normalizeLabelRemoved(raw.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, raw.Kind)
	}
}

func normalizeMessageCreated(payload map[string]any) (Event, error) {
	// The application channel wraps the message in an envelope alongside
	// conversation and contact objects; the CDC feed sends the row flat.
	body := payload
	if nested, ok := payload["message"].(map[string]any); ok {
		body = nested
	}

	id, ok := pickString(body, messageIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: message id", ErrMissingField)
	}
	convID, ok := pickString(body, conversationIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}

	// A payload without a direction cannot be trusted to be inbound, and
	// only inbound messages move the unread counter. Default outbound.
	msg := model.Message{
		ID:             id,
		ConversationID: convID,
		Direction:      model.DirectionOutbound,
		Type:           "text",
	}
	if v, ok := pickString(body, contentKeys); ok {
		msg.Content = v
	}
	if v, ok := pickString(body, []string{"type"}); ok {
		msg.Type = v
	}
	if v, ok := pickString(body, []string{"direction"}); ok {
		msg.Direction = model.Direction(v)
	}
	if v, ok := pickString(body, statusKeys); ok {
		msg.Status = model.MessageStatus(v)
	}
	if v, ok := pickString(body, mediaKeys); ok {
		msg.MediaURL = v
	}
	if ts, ok := pickTime(body, timestampKeys); ok {
		msg.Timestamp = ts
	} else {
		msg.Timestamp = time.Now().UTC()
	}
	return MessageCreated{Message: msg}, nil
}

func normalizeMessageStatus(payload map[string]any) (Event, error) {
	msgID, ok := pickString(payload, []string{"messageId", "message_id", "id"})
	if !ok {
		return nil, fmt.Errorf("%w: message id", ErrMissingField)
	}
	convID, ok := pickString(payload, conversationIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}
	status, ok := pickString(payload, statusKeys)
	if !ok {
		return nil, fmt.Errorf("%w: status", ErrMissingField)
	}
	return MessageStatusChanged{
		ConversationID: convID,
		MessageID:      msgID,
		Status:         model.MessageStatus(status),
	}, nil
}

func normalizeBotToggled(payload map[string]any) (Event, error) {
	convID, ok := pickConversationTarget(payload)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}
	enabled, ok := pickBool(payload, botKeys)
	if !ok {
		return nil, fmt.Errorf("%w: bot flag", ErrMissingField)
	}
	return BotToggled{ConversationID: convID, Enabled: enabled}, nil
}

func normalizeStatusChanged(payload map[string]any) (Event, error) {
	convID, ok := pickConversationTarget(payload)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}
	status, ok := pickString(payload, statusKeys)
	if !ok {
		return nil, fmt.Errorf("%w: status", ErrMissingField)
	}
	return StatusChanged{
		ConversationID: convID,
		Status:         model.ConversationStatus(status),
	}, nil
}

func normalizeLabelAssigned(payload map[string]any) (Event, error) {
	convID, ok := pickString(payload, conversationIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}
	body := payload
	if nested, ok := payload["label"].(map[string]any); ok {
		body = nested
	}
	labelID, ok := pickString(body, labelIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: label id", ErrMissingField)
	}
	label := model.Label{ID: labelID}
	if v, ok := pickString(body, []string{"name"}); ok {
		label.Name = v
	}
	if v, ok := pickString(body, []string{"color"}); ok {
		label.Color = v
	}
	return LabelAssigned{ConversationID: convID, Label: label}, nil
}

func normalizeLabelRemoved(payload map[string]any) (Event, error) {
	convID, ok := pickString(payload, conversationIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: conversation id", ErrMissingField)
	}
	labelID, ok := pickString(payload, labelIDKeys)
	if !ok {
		return nil, fmt.Errorf("%w: label id", ErrMissingField)
	}
	return LabelRemoved{ConversationID: convID, LabelID: labelID}, nil
}

// pickConversationTarget resolves the conversation id for events whose row
// IS the conversation: the CDC feed puts the row id under "id", while the
// application channel always names it conversationId.
func pickConversationTarget(payload map[string]any) (string, bool) {
	if v, ok := pickString(payload, conversationIDKeys); ok {
		return v, true
	}
	return pickString(payload, []string{"id"})
}

func pickAny(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(m map[string]any, keys []string) (string, bool) {
	v, ok := pickAny(m, keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func pickBool(m map[string]any, keys []string) (bool, bool) {
	v, ok := pickAny(m, keys)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		// CDC encodes booleans as 0/1 columns.
		return b != 0, true
	default:
		return false, false
	}
}

// pickTime accepts RFC 3339 strings (application channel) and unix
// millisecond numbers (CDC feed).
func pickTime(m map[string]any, keys []string) (time.Time, bool) {
	v, ok := pickAny(m, keys)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	default:
		return time.Time{}, false
	}
}
