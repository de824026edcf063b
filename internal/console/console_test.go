package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tmarqs/inboxsync/internal/api"
	"github.com/tmarqs/inboxsync/internal/bus"
	"github.com/tmarqs/inboxsync/internal/model"
	"github.com/tmarqs/inboxsync/internal/state"
	"github.com/tmarqs/inboxsync/internal/view"
	"go.uber.org/zap"
)

// backend fakes the console API: a fixed conversation list plus per-path
// hooks for history delays and command failures.
type backend struct {
	mux          http.ServeMux
	listCalls    atomic.Int32
	lastQuery    atomic.Value // string
	historyDelay map[string]time.Duration
	failCommands atomic.Bool
}

func conversationJSON(id string, sec int) string {
	ts := time.Date(2025, 3, 1, 0, 0, sec, 0, time.UTC).Format(time.RFC3339)
	return fmt.Sprintf(`{
		"id": %q, "contactId": "ct-%s", "status": "open", "botEnabled": false,
		"lastMessageAt": %q,
		"contact": {"id": "ct-%s", "name": "Contact %s", "phone": "+52"},
		"messages": [], "labels": [], "_count": {"messages": 2}
	}`, id, id, ts, id, id)
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{historyDelay: map[string]time.Duration{}}

	b.mux.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		b.listCalls.Add(1)
		b.lastQuery.Store(r.URL.RawQuery)
		fmt.Fprintf(w, "[%s, %s]", conversationJSON("A", 10), conversationJSON("B", 5))
	})
	b.mux.HandleFunc("/conversations/A/messages", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(b.historyDelay["A"])
		_, _ = w.Write([]byte(`[{"id": "a1", "conversationId": "A", "content": "from A", "direction": "inbound", "status": "read", "timestamp": "2025-03-01T00:00:01Z"}]`))
	})
	b.mux.HandleFunc("/conversations/B/messages", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(b.historyDelay["B"])
		_, _ = w.Write([]byte(`[{"id": "b1", "conversationId": "B", "content": "from B", "direction": "outbound", "status": "sent", "timestamp": "2025-03-01T00:00:02Z"}]`))
	})
	b.mux.HandleFunc("/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			fmt.Fprintf(w, `{"id": "L-new", "name": %q, "color": %q}`, req["name"], req["color"])
			return
		}
		_, _ = w.Write([]byte(`[{"id": "L1", "name": "VIP", "color": "#f00"}]`))
	})
	b.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		if b.failCommands.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(&b.mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func testConsole(t *testing.T) (*Console, *backend, *state.Store, *view.Projection, *bus.Bus) {
	t.Helper()
	be, srv := newBackend(t)
	s := state.New()
	p := view.New()
	eb := bus.New()
	c := New(api.NewClient(srv.URL, zap.NewNop()), s, p, eb, zap.NewNop(), "open")
	return c, be, s, p, eb
}

func TestRefreshPopulatesStore(t *testing.T) {
	c, be, s, _, _ := testConsole(t)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if c.Loading() {
		t.Error("Loading() = true after Refresh returned")
	}
	if s.Len() != 2 {
		t.Fatalf("store has %d conversations, want 2", s.Len())
	}
	if got := c.Conversations(); got[0].ID != "A" {
		t.Errorf("first = %q, want A (newest)", got[0].ID)
	}
	if q := be.lastQuery.Load().(string); q != "status=open" {
		t.Errorf("query = %q, want status=open", q)
	}
}

func TestSetFilterRefetches(t *testing.T) {
	c, be, _, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())

	if err := c.SetFilter(context.Background(), "closed"); err != nil {
		t.Fatal(err)
	}
	if q := be.lastQuery.Load().(string); q != "status=closed" {
		t.Errorf("query = %q, want status=closed", q)
	}
	if c.Filter() != "closed" {
		t.Errorf("Filter() = %q", c.Filter())
	}

	if err := c.SetFilter(context.Background(), "all"); err != nil {
		t.Fatal(err)
	}
	if q := be.lastQuery.Load().(string); q != "" {
		t.Errorf("query = %q, want empty for all", q)
	}
}

func TestSelectConversationLoadsHistory(t *testing.T) {
	c, _, s, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())

	if err := c.SelectConversation(context.Background(), "A"); err != nil {
		t.Fatalf("SelectConversation() error = %v", err)
	}

	active, msgs := c.ActiveConversation()
	if active == nil || active.ID != "A" {
		t.Fatalf("active = %v, want A", active)
	}
	if len(msgs) != 1 || msgs[0].ID != "a1" {
		t.Errorf("messages = %v, want the fetched history", msgs)
	}
	// Opening the conversation zeroes its unread counter.
	if conv, _ := s.Get("A"); conv.UnreadCount != 0 {
		t.Errorf("unreadCount = %d, want 0 after select", conv.UnreadCount)
	}
}

func TestSelectUnknownConversation(t *testing.T) {
	c, _, _, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())

	if err := c.SelectConversation(context.Background(), "Z"); err == nil {
		t.Error("SelectConversation(Z) error = nil, want error")
	}
}

// A history response resolving after the operator switched away must be
// discarded, not spliced into the new conversation's detail view.
func TestStaleHistoryResponseDiscarded(t *testing.T) {
	c, be, _, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())
	be.historyDelay["A"] = 300 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.SelectConversation(context.Background(), "A") }()

	time.Sleep(50 * time.Millisecond)
	if err := c.SelectConversation(context.Background(), "B"); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("stale select returned error: %v", err)
	}

	active, msgs := c.ActiveConversation()
	if active.ID != "B" {
		t.Fatalf("active = %q, want B", active.ID)
	}
	if len(msgs) != 1 || msgs[0].ID != "b1" {
		t.Errorf("messages = %v, want only B's history", msgs)
	}
}

func TestToggleBotServerConfirmed(t *testing.T) {
	c, be, s, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())
	_ = c.SelectConversation(context.Background(), "A")

	if err := c.ToggleBotMode(context.Background(), "A", true); err != nil {
		t.Fatal(err)
	}
	if conv, _ := s.Get("A"); !conv.BotEnabled {
		t.Error("store not patched after confirmed command")
	}
	active, _ := c.ActiveConversation()
	if !active.BotEnabled {
		t.Error("detail not patched after confirmed command")
	}

	// A failing command leaves local state untouched.
	be.failCommands.Store(true)
	if err := c.ToggleBotMode(context.Background(), "A", false); err == nil {
		t.Fatal("ToggleBotMode() error = nil, want failure")
	}
	if conv, _ := s.Get("A"); !conv.BotEnabled {
		t.Error("failed command mutated local state")
	}
}

func TestChangeStatus(t *testing.T) {
	c, _, s, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())

	if err := c.ChangeStatus(context.Background(), "B", model.StatusClosed); err != nil {
		t.Fatal(err)
	}
	if conv, _ := s.Get("B"); conv.Status != model.StatusClosed {
		t.Errorf("status = %q, want closed", conv.Status)
	}
}

func TestAssignLabelResolvesFromCatalogue(t *testing.T) {
	c, _, s, _, _ := testConsole(t)
	_ = c.Refresh(context.Background())
	if err := c.RefreshLabels(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.AssignLabel(context.Background(), "A", "L1"); err != nil {
		t.Fatal(err)
	}
	conv, _ := s.Get("A")
	if len(conv.Labels) != 1 || conv.Labels[0].Name != "VIP" {
		t.Errorf("labels = %+v, want the catalogue entry for L1", conv.Labels)
	}

	if err := c.RemoveLabel(context.Background(), "A", "L1"); err != nil {
		t.Fatal(err)
	}
	conv, _ = s.Get("A")
	if len(conv.Labels) != 0 {
		t.Errorf("labels = %+v after removal, want none", conv.Labels)
	}
}

func TestLabelCatalogueLifecycle(t *testing.T) {
	c, _, _, _, _ := testConsole(t)
	if err := c.RefreshLabels(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := c.AvailableLabels(); len(got) != 1 || got[0].ID != "L1" {
		t.Fatalf("catalogue = %+v", got)
	}

	label, err := c.CreateLabel(context.Background(), "Urgent", "#00f")
	if err != nil {
		t.Fatal(err)
	}
	if label.ID != "L-new" || label.Name != "Urgent" {
		t.Errorf("created = %+v", label)
	}
	if len(c.AvailableLabels()) != 2 {
		t.Error("created label not cached")
	}

	if err := c.DeleteLabel(context.Background(), "L-new"); err != nil {
		t.Fatal(err)
	}
	if len(c.AvailableLabels()) != 1 {
		t.Error("deleted label still cached")
	}
}

// A refetch request from the sync engine reloads the list.
func TestRefetchRequestReloadsList(t *testing.T) {
	c, be, s, _, eb := testConsole(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	eb.Publish(bus.Event{Kind: bus.KindRefetchNeeded, Timestamp: time.Now(), Payload: "Z"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if be.listCalls.Load() > 0 && s.Len() == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("list not refetched: calls=%d stored=%d", be.listCalls.Load(), s.Len())
}
