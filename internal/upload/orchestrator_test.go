package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecheck/chatsync/internal/api"
	"github.com/vibecheck/chatsync/internal/domain"
)

// mockBackend implements Backend with programmable responses.
type mockBackend struct {
	presign    *api.PresignResponse
	presignErr error

	sendErr   error
	sent      []sentMessage
	sendMsgFn func(conversationID int64, body string, attachmentIDs []int64) *domain.Message
}

type sentMessage struct {
	conversationID int64
	body           string
	attachmentIDs  []int64
}

func (m *mockBackend) PresignUpload(ctx context.Context, contentType, filename, kind string) (*api.PresignResponse, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return m.presign, nil
}

func (m *mockBackend) SendMessage(ctx context.Context, conversationID int64, body string, attachmentIDs []int64) (*domain.Message, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{conversationID, body, attachmentIDs})
	if m.sendMsgFn != nil {
		return m.sendMsgFn(conversationID, body, attachmentIDs), nil
	}
	return &domain.Message{ID: 1, ConversationID: conversationID, Body: body}, nil
}

func TestKindForContentType(t *testing.T) {
	assert.Equal(t, domain.AttachmentImage, KindForContentType("image/png"))
	assert.Equal(t, domain.AttachmentImage, KindForContentType("image/jpeg"))
	assert.Equal(t, domain.AttachmentFile, KindForContentType("application/pdf"))
	assert.Equal(t, domain.AttachmentFile, KindForContentType(""))
}

func TestUpload_FullFlow(t *testing.T) {
	var uploadedBody string
	var uploadedMethod string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploadedMethod = r.Method
		data, _ := io.ReadAll(r.Body)
		uploadedBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer store.Close()

	backend := &mockBackend{
		presign: &api.PresignResponse{
			UploadMethod:  "PUT",
			UploadURL:     store.URL,
			UploadHeaders: map[string]string{},
			AttachmentID:  42,
			PublicURL:     store.URL + "/pub",
		},
		sendMsgFn: func(conversationID int64, body string, attachmentIDs []int64) *domain.Message {
			return &domain.Message{
				ID:             10,
				ConversationID: conversationID,
				Body:           body,
				Attachments: []domain.Attachment{
					{ID: attachmentIDs[0], Kind: domain.AttachmentImage, URL: store.URL + "/pub"},
				},
			}
		},
	}

	o := New(backend)
	msg, err := o.Upload(context.Background(), 5, "cat.png", "image/png", strings.NewReader("png-bytes"), "")
	require.NoError(t, err)

	assert.Equal(t, "PUT", uploadedMethod)
	assert.Equal(t, "png-bytes", uploadedBody)

	require.Len(t, backend.sent, 1)
	assert.Equal(t, int64(5), backend.sent[0].conversationID)
	assert.Equal(t, "", backend.sent[0].body)
	assert.Equal(t, []int64{42}, backend.sent[0].attachmentIDs)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, int64(42), msg.Attachments[0].ID)
	assert.Equal(t, store.URL+"/pub", msg.Attachments[0].URL)
}

func TestUpload_PresignRejected(t *testing.T) {
	backend := &mockBackend{
		presignErr: &api.APIError{StatusCode: http.StatusBadRequest, Detail: "unsupported type"},
	}

	o := New(backend)
	_, err := o.Upload(context.Background(), 5, "x.exe", "application/x-dosexec", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, domain.ErrPresignRejected)
	assert.Contains(t, err.Error(), "unsupported type")
	// Finalize must never run after a failed presign.
	assert.Empty(t, backend.sent)
}

func TestUpload_DirectUploadFailureIsTransportError(t *testing.T) {
	backend := &mockBackend{
		presign: &api.PresignResponse{
			UploadMethod: "PUT",
			// Nothing listens here.
			UploadURL:    "http://127.0.0.1:1/x",
			AttachmentID: 42,
		},
	}

	o := New(backend)
	_, err := o.Upload(context.Background(), 5, "cat.png", "image/png", strings.NewReader("x"), "")

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	// The attachment id is orphaned; no finalize may follow.
	assert.Empty(t, backend.sent)
}

func TestUpload_StorageErrorStatusIsTransportError(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer store.Close()

	backend := &mockBackend{
		presign: &api.PresignResponse{UploadMethod: "PUT", UploadURL: store.URL, AttachmentID: 42},
	}

	o := New(backend)
	_, err := o.Upload(context.Background(), 5, "cat.png", "image/png", strings.NewReader("x"), "")

	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Empty(t, backend.sent)
}

func TestUpload_FinalizeRejected(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer store.Close()

	backend := &mockBackend{
		presign: &api.PresignResponse{UploadMethod: "PUT", UploadURL: store.URL, AttachmentID: 42},
		sendErr: &api.APIError{StatusCode: http.StatusForbidden, Detail: "no longer a member"},
	}

	o := New(backend)
	_, err := o.Upload(context.Background(), 5, "cat.png", "image/png", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, domain.ErrFinalizeRejected)
}

func TestUpload_NonAPISendErrorPassesThrough(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer store.Close()

	netErr := &domain.TransportError{Op: "POST /messages", Err: errors.New("connection reset")}
	backend := &mockBackend{
		presign: &api.PresignResponse{UploadMethod: "PUT", UploadURL: store.URL, AttachmentID: 42},
		sendErr: netErr,
	}

	o := New(backend)
	_, err := o.Upload(context.Background(), 5, "cat.png", "image/png", strings.NewReader("x"), "")
	assert.NotErrorIs(t, err, domain.ErrFinalizeRejected)

	var transportErr *domain.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestUploadFile_ReadsFromFilesystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "photos/cat.png", []byte("png-bytes"), 0644))

	var uploaded string
	var gotContentType string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		uploaded = string(data)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer store.Close()

	backend := &mockBackend{
		presign: &api.PresignResponse{UploadMethod: "PUT", UploadURL: store.URL, AttachmentID: 42},
	}

	o := New(backend)
	_, err := o.UploadFile(context.Background(), fs, "photos/cat.png", 5)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", uploaded)
	assert.Equal(t, "image/png", gotContentType)
}
