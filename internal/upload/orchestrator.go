// Package upload coordinates the three-step attachment flow: presign,
// direct upload to storage, message finalize.
//
// The phases are not transactional. A failure after the direct upload but
// before finalize leaves an uploaded-but-unreferenced object behind. A
// failed direct upload orphans the pre-allocated attachment identifier;
// presigned descriptors may be single-use, so the caller restarts from
// presign rather than retrying the same descriptor.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/vibecheck/chatsync/internal/api"
	"github.com/vibecheck/chatsync/internal/domain"
)

// Backend is the slice of the REST client the orchestrator needs.
type Backend interface {
	PresignUpload(ctx context.Context, contentType, filename, kind string) (*api.PresignResponse, error)
	SendMessage(ctx context.Context, conversationID int64, body string, attachmentIDs []int64) (*domain.Message, error)
}

// Orchestrator runs attachment uploads against one backend.
type Orchestrator struct {
	backend Backend
	http    *http.Client
	logger  *slog.Logger
}

// New creates an upload orchestrator.
func New(backend Backend) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		http:    &http.Client{Timeout: 5 * time.Minute},
		logger:  slog.Default().With("component", "upload"),
	}
}

// KindForContentType maps a MIME type onto the attachment kind used for
// display.
func KindForContentType(contentType string) domain.AttachmentKind {
	if strings.HasPrefix(contentType, "image/") {
		return domain.AttachmentImage
	}
	return domain.AttachmentFile
}

// Upload runs the full three-phase flow and returns the finalized message
// carrying the new attachment. body is usually empty for attachment-only
// messages.
func (o *Orchestrator) Upload(ctx context.Context, conversationID int64, filename, contentType string, content io.Reader, body string) (*domain.Message, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	kind := KindForContentType(contentType)

	// Phase 1: presign.
	presign, err := o.backend.PresignUpload(ctx, contentType, filename, string(kind))
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPresignRejected, apiErr.Detail)
		}
		return nil, err
	}
	o.logger.Debug("Upload presigned",
		"attachment_id", presign.AttachmentID,
		"method", presign.UploadMethod,
		"kind", kind)

	// Phase 2: direct upload, bypassing the application server.
	if err := o.directUpload(ctx, presign, contentType, content); err != nil {
		return nil, err
	}

	// Phase 3: finalize. Only now does the attachment become visible to
	// other participants.
	msg, err := o.backend.SendMessage(ctx, conversationID, body, []int64{presign.AttachmentID})
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFinalizeRejected, apiErr.Detail)
		}
		return nil, err
	}

	o.logger.Info("Attachment uploaded",
		"attachment_id", presign.AttachmentID,
		"message_id", msg.ID,
		"conversation_id", conversationID)
	return msg, nil
}

// UploadFile is a convenience wrapper that reads the file from the given
// filesystem and infers the content type from its extension.
func (o *Orchestrator) UploadFile(ctx context.Context, fs afero.Fs, path string, conversationID int64) (*domain.Message, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	return o.Upload(ctx, conversationID, filepath.Base(path), contentType, f, "")
}

func (o *Orchestrator) directUpload(ctx context.Context, presign *api.PresignResponse, contentType string, content io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, presign.UploadMethod, presign.UploadURL, content)
	if err != nil {
		return &domain.TransportError{Op: "direct upload", Err: err}
	}
	for k, v := range presign.UploadHeaders {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: "direct upload", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.TransportError{
			Op:  "direct upload",
			Err: fmt.Errorf("storage responded %d", resp.StatusCode),
		}
	}
	return nil
}
