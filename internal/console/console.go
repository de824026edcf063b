package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tmarqs/inboxsync/internal/api"
	"github.com/tmarqs/inboxsync/internal/bus"
	"github.com/tmarqs/inboxsync/internal/model"
	"github.com/tmarqs/inboxsync/internal/state"
	"github.com/tmarqs/inboxsync/internal/view"
	"go.uber.org/zap"
)

// Console is the surface the rendering layer talks to: snapshot reads over
// the conversation cache and the active-detail projection, plus the command
// mutators. Commands call the backend first and patch local state only on
// success, so a failed command leaves the cache untouched.
type Console struct {
	api    *api.Client
	store  *state.Store
	proj   *view.Projection
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	mu         sync.Mutex
	filter     string
	loading    bool
	labels     []model.Label
	historyReq string
}

// New creates a console over the given collaborators. filter is the initial
// conversation-list status filter ("all" disables filtering).
func New(client *api.Client, store *state.Store, proj *view.Projection, b *bus.Bus, logger *zap.Logger, filter string) *Console {
	if filter == "" {
		filter = api.FilterAll
	}
	return &Console{
		api:    client,
		store:  store,
		proj:   proj,
		bus:    b,
		logger: logger,
		filter: filter,
	}
}

// Start subscribes to refetch requests published by the sync engine: a
// realtime message for a conversation the cache does not know forces a full
// list reload.
func (c *Console) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	ch, unsub := c.bus.Subscribe("sync.", 16)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind != bus.KindRefetchNeeded {
					continue
				}
				if err := c.Refresh(ctx); err != nil {
					c.logger.Warn("refetch after unknown conversation failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the refetch subscription.
func (c *Console) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Refresh reloads the conversation list with the current filter and swaps
// the whole cache. On error the cache keeps its previous contents.
func (c *Console) Refresh(ctx context.Context) error {
	c.mu.Lock()
	filter := c.filter
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	convs, err := c.api.ListConversations(ctx, filter)
	if err != nil {
		return err
	}
	c.store.ReplaceAll(convs)
	return nil
}

// SetFilter changes the status filter and reloads the list.
func (c *Console) SetFilter(ctx context.Context, filter string) error {
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Filter returns the current status filter.
func (c *Console) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Loading reports whether a list fetch is in flight.
func (c *Console) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Conversations returns the ordered conversation list snapshot.
func (c *Console) Conversations() []model.Conversation {
	return c.store.Snapshot()
}

// ActiveConversation returns the detail projection: the active conversation
// (nil when none) and its message list.
func (c *Console) ActiveConversation() (*model.Conversation, []model.Message) {
	return c.proj.Snapshot()
}

// SelectConversation makes a conversation active: zeroes its unread counter,
// clears the detail list, and loads the full history. A history response
// that arrives after the operator switched again is discarded; switching
// does not cancel the in-flight request, the guard happens on arrival.
func (c *Console) SelectConversation(ctx context.Context, conversationID string) error {
	conv, ok := c.store.Get(conversationID)
	if !ok {
		return fmt.Errorf("unknown conversation %q", conversationID)
	}

	c.proj.Select(conv)
	c.store.ResetUnread(conversationID)

	reqID := uuid.New().String()
	c.mu.Lock()
	c.historyReq = reqID
	c.mu.Unlock()

	msgs, err := c.api.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	c.mu.Lock()
	stale := c.historyReq != reqID
	c.mu.Unlock()
	if stale || !c.proj.SetHistory(conversationID, msgs) {
		c.logger.Debug("discarding stale history response",
			zap.String("conversation", conversationID))
		return nil
	}
	return nil
}

// ToggleBotMode flips automated replies for a conversation. The local patch
// applies only after the backend confirmed the command.
func (c *Console) ToggleBotMode(ctx context.Context, conversationID string, enabled bool) error {
	if err := c.api.ToggleBot(ctx, conversationID, enabled); err != nil {
		return err
	}
	c.store.SetBotEnabled(conversationID, enabled)
	c.proj.SetBotEnabled(conversationID, enabled)
	return nil
}

// ChangeStatus moves a conversation to another lifecycle state.
func (c *Console) ChangeStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error {
	if err := c.api.UpdateStatus(ctx, conversationID, status); err != nil {
		return err
	}
	c.store.SetStatus(conversationID, status)
	c.proj.SetStatus(conversationID, status)
	return nil
}

// AssignLabel attaches a catalogue label to a conversation.
func (c *Console) AssignLabel(ctx context.Context, conversationID, labelID string) error {
	if err := c.api.AssignLabel(ctx, conversationID, labelID); err != nil {
		return err
	}
	label := c.labelFromCatalogue(labelID)
	c.store.AddLabel(conversationID, label)
	c.proj.AddLabel(conversationID, label)
	return nil
}

// RemoveLabel detaches a label from a conversation.
func (c *Console) RemoveLabel(ctx context.Context, conversationID, labelID string) error {
	if err := c.api.RemoveLabel(ctx, conversationID, labelID); err != nil {
		return err
	}
	c.store.RemoveLabel(conversationID, labelID)
	c.proj.RemoveLabel(conversationID, labelID)
	return nil
}

// SendMessage sends a free-form text message. The message itself comes back
// through the realtime feed, which also bumps the conversation preview.
func (c *Console) SendMessage(ctx context.Context, conversationID, content string) error {
	return c.api.SendMessage(ctx, conversationID, content, uuid.New().String())
}

// SendTemplate sends a pre-approved template message.
func (c *Console) SendTemplate(ctx context.Context, conversationID, templateName, languageCode string) error {
	return c.api.SendTemplate(ctx, conversationID, templateName, languageCode)
}

// Templates fetches the template catalogue.
func (c *Console) Templates(ctx context.Context) ([]model.Template, error) {
	return c.api.ListTemplates(ctx)
}

// AddContactNote appends an operator note to a contact.
func (c *Console) AddContactNote(ctx context.Context, contactID, content, createdBy string) error {
	return c.api.AddContactNote(ctx, contactID, content, createdBy)
}

// UpdateContact patches contact fields.
func (c *Console) UpdateContact(ctx context.Context, contactID string, fields map[string]any) error {
	return c.api.UpdateContact(ctx, contactID, fields)
}

// AvailableLabels returns the cached label catalogue.
func (c *Console) AvailableLabels() []model.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Label, len(c.labels))
	copy(out, c.labels)
	return out
}

// RefreshLabels reloads the label catalogue.
func (c *Console) RefreshLabels(ctx context.Context) error {
	labels, err := c.api.ListLabels(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.labels = labels
	c.mu.Unlock()
	return nil
}

// CreateLabel defines a new catalogue label.
func (c *Console) CreateLabel(ctx context.Context, name, color string) (model.Label, error) {
	label, err := c.api.CreateLabel(ctx, name, color)
	if err != nil {
		return model.Label{}, err
	}
	c.mu.Lock()
	c.labels = append(c.labels, label)
	c.mu.Unlock()
	return label, nil
}

// DeleteLabel removes a catalogue label.
func (c *Console) DeleteLabel(ctx context.Context, labelID string) error {
	if err := c.api.DeleteLabel(ctx, labelID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.labels {
		if l.ID == labelID {
			c.labels = append(c.labels[:i], c.labels[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *Console) labelFromCatalogue(labelID string) model.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.labels {
		if l.ID == labelID {
			return l
		}
	}
	return model.Label{ID: labelID}
}
