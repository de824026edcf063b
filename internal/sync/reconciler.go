package sync

import (
	"github.com/tmarqs/inboxsync/internal/normalize"
	"github.com/tmarqs/inboxsync/internal/state"
	"github.com/tmarqs/inboxsync/internal/view"
)

// Reconciler applies normalized realtime events to the conversation cache
// and mirrors them into the active detail projection, keeping the two
// views in lockstep. Events are applied in arrival order; every mutation
// is either idempotent (message dedupe, label add/remove) or last-write-wins
// (status, bot flag), so out-of-order delivery of independent fields
// converges. The unread counter is the one path-dependent exception: it
// depends on which conversation was active when the event was processed.
type Reconciler struct {
	store *state.Store
	proj  *view.Projection
}

// NewReconciler creates a reconciler over the given store and projection.
func NewReconciler(store *state.Store, proj *view.Projection) *Reconciler {
	return &Reconciler{store: store, proj: proj}
}

// Apply merges one event into local state. It returns true when the event
// referenced a conversation the cache does not know, meaning the caller
// must request a full list refetch (the event alone cannot synthesize a
// conversation: it lacks contact identity).
func (r *Reconciler) Apply(evt normalize.Event) (refetch bool) {
	switch e := evt.(type) {
	case normalize.MessageCreated:
		convID := e.Message.ConversationID
		active := r.proj.ActiveID() == convID
		if active {
			r.proj.AppendMessage(convID, e.Message)
		}
		if !r.store.UpsertPreviewAndReorder(convID, e.Message, active) {
			return true
		}

	case normalize.MessageStatusChanged:
		r.store.PatchMessageStatus(e.ConversationID, e.MessageID, e.Status)
		r.proj.PatchMessageStatus(e.ConversationID, e.MessageID, e.Status)

	case normalize.BotToggled:
		r.store.SetBotEnabled(e.ConversationID, e.Enabled)
		r.proj.SetBotEnabled(e.ConversationID, e.Enabled)

	case normalize.StatusChanged:
		r.store.SetStatus(e.ConversationID, e.Status)
		r.proj.SetStatus(e.ConversationID, e.Status)

	case normalize.LabelAssigned:
		r.store.AddLabel(e.ConversationID, e.Label)
		r.proj.AddLabel(e.ConversationID, e.Label)

	case normalize.LabelRemoved:
		r.store.RemoveLabel(e.ConversationID, e.LabelID)
		r.proj.RemoveLabel(e.ConversationID, e.LabelID)
	}
	return false
}
