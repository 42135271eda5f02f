package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/session"
)

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]domain.Conversation{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New("tok-123"))
	_, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClient_NoAuthHeaderWhenLoggedOut(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]domain.Conversation{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New(""))
	_, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_SendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/messages/conversation/5", r.URL.Path)

		var body struct {
			Body          string  `json:"body"`
			AttachmentIDs []int64 `json:"attachment_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Body)
		assert.NotNil(t, body.AttachmentIDs)

		json.NewEncoder(w).Encode(domain.Message{
			ID:             10,
			ConversationID: 5,
			SenderID:       1,
			Body:           body.Body,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New("tok"))
	msg, err := client.SendMessage(context.Background(), 5, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), msg.ID)
	assert.Equal(t, "hello", msg.Body)
}

func TestClient_UpdateReceipt(t *testing.T) {
	var gotPath, gotStatus string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body struct {
			Status string `json:"status"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotStatus = body.Status
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New("tok"))
	require.NoError(t, client.UpdateReceipt(context.Background(), 10, domain.ReceiptRead))
	assert.Equal(t, "/api/v1/messages/10/receipt", gotPath)
	assert.Equal(t, "read", gotStatus)
}

func TestClient_PresignUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/uploads/presign", r.URL.Path)
		json.NewEncoder(w).Encode(PresignResponse{
			UploadMethod:  "PUT",
			UploadURL:     "https://store/x",
			UploadHeaders: map[string]string{},
			AttachmentID:  42,
			PublicURL:     "https://store/x/pub",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New("tok"))
	presign, err := client.PresignUpload(context.Background(), "image/png", "cat.png", "image")
	require.NoError(t, err)
	assert.Equal(t, "PUT", presign.UploadMethod)
	assert.Equal(t, int64(42), presign.AttachmentID)
	assert.Equal(t, "https://store/x/pub", presign.PublicURL)
}

func TestClient_APIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "not a member"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, session.New("tok"))
	_, err := client.SendMessage(context.Background(), 5, "hello", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "not a member", apiErr.Detail)
}

func TestClient_NetworkFailureIsTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", session.New("tok"))
	_, err := client.ListConversations(context.Background())

	var transportErr *domain.TransportError
	assert.ErrorAs(t, err, &transportErr)
}
