package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tmarqs/inboxsync/internal/model"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Client talks to the console backend over HTTP. Fetch and command errors
// are returned to the caller; no local state is touched here.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// FilterAll selects conversations of every status.
const FilterAll = "all"

// ListConversations fetches the conversation list, newest first, optionally
// filtered by status. Each entry carries its label set, unread count and
// preview message.
func (c *Client) ListConversations(ctx context.Context, filter string) ([]model.Conversation, error) {
	path := "/conversations"
	if filter != "" && filter != FilterAll {
		path += "?status=" + url.QueryEscape(filter)
	}
	var dtos []conversationDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]model.Conversation, 0, len(dtos))
	for _, dto := range dtos {
		convs = append(convs, dto.toModel())
	}
	return convs, nil
}

// ListMessages fetches the full history of one conversation, ascending by
// timestamp.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// UpdateStatus changes a conversation's lifecycle state.
func (c *Client) UpdateStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/status"
	body := map[string]any{"status": status}
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// ToggleBot enables or disables automated replies for a conversation.
func (c *Client) ToggleBot(ctx context.Context, conversationID string, enabled bool) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/bot"
	body := map[string]any{"botEnabled": enabled}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("toggle bot: %w", err)
	}
	return nil
}

// AssignLabel attaches a label to a conversation.
func (c *Client) AssignLabel(ctx context.Context, conversationID, labelID string) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/labels"
	body := map[string]any{"labelId": labelID}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("assign label: %w", err)
	}
	return nil
}

// RemoveLabel detaches a label from a conversation.
func (c *Client) RemoveLabel(ctx context.Context, conversationID, labelID string) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/labels/" + url.PathEscape(labelID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove label: %w", err)
	}
	return nil
}

// SendMessage sends a free-form text message. clientMsgID lets the server
// deduplicate retried sends.
func (c *Client) SendMessage(ctx context.Context, conversationID, content, clientMsgID string) error {
	body := map[string]any{
		"conversationId": conversationID,
		"content":        content,
		"clientMsgId":    clientMsgID,
	}
	if err := c.do(ctx, http.MethodPost, "/messages/send", body, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendTemplate sends a pre-approved template message. An empty language
// code falls back to the platform default.
func (c *Client) SendTemplate(ctx context.Context, conversationID, templateName, languageCode string) error {
	if languageCode == "" {
		languageCode = "es_MX"
	}
	body := map[string]any{
		"conversationId": conversationID,
		"templateName":   templateName,
		"languageCode":   languageCode,
	}
	if err := c.do(ctx, http.MethodPost, "/messages/send-template", body, nil); err != nil {
		return fmt.Errorf("send template: %w", err)
	}
	return nil
}

// ListTemplates fetches the template catalogue.
func (c *Client) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var tpls []model.Template
	if err := c.do(ctx, http.MethodGet, "/messages/templates", nil, &tpls); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return tpls, nil
}

// ListLabels fetches the label catalogue.
func (c *Client) ListLabels(ctx context.Context) ([]model.Label, error) {
	var labels []model.Label
	if err := c.do(ctx, http.MethodGet, "/labels", nil, &labels); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

// CreateLabel defines a new label in the catalogue.
func (c *Client) CreateLabel(ctx context.Context, name, color string) (model.Label, error) {
	var label model.Label
	body := map[string]any{"name": name, "color": color}
	if err := c.do(ctx, http.MethodPost, "/labels", body, &label); err != nil {
		return model.Label{}, fmt.Errorf("create label: %w", err)
	}
	return label, nil
}

// DeleteLabel removes a label from the catalogue.
func (c *Client) DeleteLabel(ctx context.Context, labelID string) error {
	if err := c.do(ctx, http.MethodDelete, "/labels/"+url.PathEscape(labelID), nil, nil); err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	return nil
}

// GetContact fetches one contact.
func (c *Client) GetContact(ctx context.Context, contactID string) (model.Contact, error) {
	var contact model.Contact
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(contactID), nil, &contact); err != nil {
		return model.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

// UpdateContact patches contact fields.
func (c *Client) UpdateContact(ctx context.Context, contactID string, fields map[string]any) error {
	if err := c.do(ctx, http.MethodPatch, "/contacts/"+url.PathEscape(contactID), fields, nil); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

// AddContactNote appends an operator note to a contact.
func (c *Client) AddContactNote(ctx context.Context, contactID, content, createdBy string) error {
	body := map[string]any{"content": content}
	if createdBy != "" {
		body["createdBy"] = createdBy
	}
	path := "/contacts/" + url.PathEscape(contactID) + "/notes"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("add contact note: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
