// Package api is the REST collaborator client. It wraps the chat backend's
// /api/v1 surface; all failures bubble to the immediate caller, the client
// holds no retry policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/session"
)

const apiPrefix = "/api/v1"

// Client talks to the chat backend. The session credential is attached as a
// bearer token on every request when present.
type Client struct {
	baseURL string
	session *session.Session
	http    *http.Client
}

// NewClient creates a REST client for the given base address. The session
// is read on every call, so a login that happens after construction is
// picked up automatically.
func NewClient(baseURL string, sess *session.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the configured REST base address without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the backend, carrying the server's
// detail string verbatim.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// do executes one request and decodes the JSON response into out (when out
// is non-nil). Network failures are wrapped in domain.TransportError.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     decodeDetail(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}

// decodeDetail extracts the backend's {"detail": "..."} error payload.
// A response that does not follow the shape yields an empty detail.
func decodeDetail(r io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	return payload.Detail
}

// ListContacts returns the user's address book.
func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if err := c.do(ctx, http.MethodGet, "/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// AddContact adds a user to the address book by email.
func (c *Client) AddContact(ctx context.Context, email string) (*domain.Contact, error) {
	var contact domain.Contact
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/contacts", body, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListConversations returns all conversations the user is a member of.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// CreateConversation creates a direct or group conversation with the given
// members.
func (c *Client) CreateConversation(ctx context.Context, convType domain.ConversationType, memberUserIDs []int64, title string) (*domain.Conversation, error) {
	body := map[string]any{
		"type":            convType,
		"member_user_ids": memberUserIDs,
	}
	if title != "" {
		body["title"] = title
	}
	var conversation domain.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListMessages returns the message history of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	var messages []domain.Message
	path := fmt.Sprintf("/messages/conversation/%d", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a message and returns the server-created Message with
// its assigned identifier. The body may be empty when attachmentIDs is not.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, body string, attachmentIDs []int64) (*domain.Message, error) {
	if attachmentIDs == nil {
		attachmentIDs = []int64{}
	}
	payload := map[string]any{
		"body":           body,
		"attachment_ids": attachmentIDs,
	}
	path := fmt.Sprintf("/messages/conversation/%d", conversationID)
	var msg domain.Message
	if err := c.do(ctx, http.MethodPost, path, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateReceipt marks a message delivered or read for the current user.
func (c *Client) UpdateReceipt(ctx context.Context, messageID int64, status domain.ReceiptStatus) error {
	body := map[string]string{"status": string(status)}
	path := fmt.Sprintf("/messages/%d/receipt", messageID)
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// PresignResponse is the upload descriptor returned by the backend. The
// attachment identifier is allocated before the owning message exists.
type PresignResponse struct {
	UploadMethod  string            `json:"upload_method"`
	UploadURL     string            `json:"upload_url"`
	UploadHeaders map[string]string `json:"upload_headers"`
	AttachmentID  int64             `json:"attachment_id"`
	PublicURL     string            `json:"public_url"`
}

// PresignUpload requests an upload descriptor for a direct-to-storage
// transfer.
func (c *Client) PresignUpload(ctx context.Context, contentType, filename, kind string) (*PresignResponse, error) {
	body := map[string]string{
		"content_type": contentType,
		"filename":     filename,
		"kind":         kind,
	}
	var presign PresignResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/presign", body, &presign); err != nil {
		return nil, err
	}
	return &presign, nil
}
