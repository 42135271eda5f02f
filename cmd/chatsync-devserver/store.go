package main

import (
	"sync"
	"time"

	"github.com/vibecheck/chatsync/internal/domain"
)

// store is the in-memory state of the dev backend.
type store struct {
	mu sync.Mutex

	conversations []domain.Conversation
	messages      map[int64][]domain.Message   // conversation id -> messages
	messageConv   map[int64]int64              // message id -> conversation id
	attachments   map[int64]domain.Attachment  // attachment id -> pending attachment
	receipts      map[int64]domain.ReceiptStatus

	nextConversationID int64
	nextMessageID      int64
	nextAttachmentID   int64
}

func newStore() *store {
	s := &store{
		messages:           make(map[int64][]domain.Message),
		messageConv:        make(map[int64]int64),
		attachments:        make(map[int64]domain.Attachment),
		receipts:           make(map[int64]domain.ReceiptStatus),
		nextConversationID: 1,
		nextMessageID:      1,
		nextAttachmentID:   1,
	}
	// A seed conversation so the CLI has something to talk to out of the box.
	s.conversations = append(s.conversations, domain.Conversation{
		ID:            1,
		Type:          domain.ConversationGroup,
		Title:         "dev lounge",
		MemberUserIDs: []int64{1, 2, 3},
	})
	s.nextConversationID = 2
	return s
}

func (s *store) listConversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Conversation(nil), s.conversations...)
}

func (s *store) createConversation(convType domain.ConversationType, memberUserIDs []int64, title string) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := domain.Conversation{
		ID:            s.nextConversationID,
		Type:          convType,
		Title:         title,
		MemberUserIDs: memberUserIDs,
	}
	s.nextConversationID++
	s.conversations = append(s.conversations, conv)
	return conv
}

func (s *store) listMessages(conversationID int64) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages[conversationID]...)
}

// createMessage appends a message, resolving pending attachment ids into
// attachment records.
func (s *store) createMessage(conversationID, senderID int64, body string, attachmentIDs []int64) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachments := []domain.Attachment{}
	for _, id := range attachmentIDs {
		if a, ok := s.attachments[id]; ok {
			attachments = append(attachments, a)
			delete(s.attachments, id)
		}
	}

	msg := domain.Message{
		ID:             s.nextMessageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
		Attachments:    attachments,
	}
	s.nextMessageID++
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.messageConv[msg.ID] = conversationID
	return msg
}

// allocateAttachment reserves an attachment id during presign. The record
// stays pending until a message references it.
func (s *store) allocateAttachment(kind domain.AttachmentKind, url, mimeType string) domain.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := domain.Attachment{
		ID:       s.nextAttachmentID,
		Kind:     kind,
		URL:      url,
		MimeType: mimeType,
	}
	s.nextAttachmentID++
	s.attachments[a.ID] = a
	return a
}

// setReceipt records the latest receipt status, keeping it monotonic. It
// resolves the message's conversation so the broadcast can carry it;
// unknown message ids report ok=false.
func (s *store) setReceipt(messageID int64, status domain.ReceiptStatus) (conversationID int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversationID, ok = s.messageConv[messageID]
	if !ok {
		return 0, false
	}
	current := s.receipts[messageID]
	if status.Rank() > current.Rank() {
		s.receipts[messageID] = status
	}
	return conversationID, true
}
