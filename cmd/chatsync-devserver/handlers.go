package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"

	"github.com/vibecheck/chatsync/internal/domain"
)

type server struct {
	store   *store
	hub     *hub
	storage afero.Fs
}

func (s *server) listConversations(c echo.Context) error {
	if _, ok := bearer(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	return c.JSON(http.StatusOK, s.store.listConversations())
}

func (s *server) createConversation(c echo.Context) error {
	if _, ok := bearer(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	var body struct {
		Type          domain.ConversationType `json:"type"`
		Title         string                  `json:"title"`
		MemberUserIDs []int64                 `json:"member_user_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Type != domain.ConversationDirect && body.Type != domain.ConversationGroup {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be direct or group")
	}
	conv := s.store.createConversation(body.Type, body.MemberUserIDs, body.Title)
	return c.JSON(http.StatusOK, conv)
}

func (s *server) listMessages(c echo.Context) error {
	if _, ok := bearer(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}
	return c.JSON(http.StatusOK, s.store.listMessages(conversationID))
}

func (s *server) sendMessage(c echo.Context) error {
	userID, ok := bearer(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}
	var body struct {
		Body          string  `json:"body"`
		AttachmentIDs []int64 `json:"attachment_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(body.Body) == "" && len(body.AttachmentIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "message has no content")
	}

	msg := s.store.createMessage(conversationID, userID, body.Body, body.AttachmentIDs)
	s.hub.broadcast(map[string]any{
		"type":            "message:new",
		"conversation_id": conversationID,
		"message":         msg,
	})
	return c.JSON(http.StatusOK, msg)
}

func (s *server) updateReceipt(c echo.Context) error {
	userID, ok := bearer(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	var body struct {
		Status domain.ReceiptStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.Status != domain.ReceiptDelivered && body.Status != domain.ReceiptRead {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be delivered or read")
	}

	conversationID, found := s.store.setReceipt(messageID, body.Status)
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no such message")
	}
	s.hub.broadcast(map[string]any{
		"type":            "receipt:update",
		"conversation_id": conversationID,
		"message_id":      messageID,
		"user_id":         userID,
		"status":          body.Status,
	})
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *server) presignUpload(c echo.Context) error {
	if _, ok := bearer(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	}
	var body struct {
		ContentType string `json:"content_type"`
		Filename    string `json:"filename"`
		Kind        string `json:"kind"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if body.ContentType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content_type required")
	}

	key := uuid.NewString()
	base := "http://" + c.Request().Host
	publicURL := fmt.Sprintf("%s/storage/%s", base, key)

	kind := domain.AttachmentKind(body.Kind)
	if kind == "" {
		kind = domain.AttachmentFile
	}
	attachment := s.store.allocateAttachment(kind, publicURL, body.ContentType)

	return c.JSON(http.StatusOK, map[string]any{
		"upload_method":  http.MethodPut,
		"upload_url":     publicURL,
		"upload_headers": map[string]string{"Content-Type": body.ContentType},
		"attachment_id":  attachment.ID,
		"public_url":     publicURL,
	})
}

func (s *server) putObject(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if err := afero.WriteFile(s.storage, c.Param("key"), data, 0644); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storage write failed")
	}
	return c.NoContent(http.StatusOK)
}

func (s *server) getObject(c echo.Context) error {
	data, err := afero.ReadFile(s.storage, c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no such object")
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

// handleWS upgrades to the push protocol. Close code 4401 mirrors the
// production backend's unauthenticated rejection.
func (s *server) handleWS(c echo.Context) error {
	userID, ok := userFromToken(c.QueryParam("token"))
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil
	}
	if !ok {
		conn.Close(websocket.StatusCode(4401), "authentication required")
		return nil
	}
	defer conn.CloseNow()

	client := &hubClient{userID: userID, conn: conn}
	if first := s.hub.register(client); first {
		s.hub.broadcast(map[string]any{
			"type": "presence:update", "user_id": userID, "online": true,
		})
	}
	defer func() {
		if last := s.hub.unregister(client); last {
			s.hub.broadcast(map[string]any{
				"type": "presence:update", "user_id": userID, "online": false,
			})
		}
	}()

	ctx := c.Request().Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}

		var frame struct {
			Type           string `json:"type"`
			ConversationID int64  `json:"conversation_id"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "typing:start", "typing:stop":
			s.hub.broadcast(map[string]any{
				"type":            frame.Type,
				"conversation_id": frame.ConversationID,
				"user_id":         userID,
			})
		}
	}
}
