package domain

import "time"

// ConversationType distinguishes one-on-one conversations from group chats.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation is a chat a user participates in. Conversations are created
// and owned server-side; the engine only reads them.
type Conversation struct {
	ID            int64            `json:"id"`
	Type          ConversationType `json:"type"`
	Title         string           `json:"title,omitempty"`
	MemberUserIDs []int64          `json:"member_user_ids"`
}

// AttachmentKind classifies an attachment for display purposes.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is an uploaded object referenced by a message. The server
// allocates the identifier during presign, before the owning message exists.
type Attachment struct {
	ID       int64          `json:"id"`
	Kind     AttachmentKind `json:"kind"`
	URL      string         `json:"url"`
	MimeType string         `json:"mime_type,omitempty"`
	Size     int64          `json:"size,omitempty"`
}

// Message is a single chat message. IDs are server-assigned and unique;
// they are the deduplication key when the same message arrives over both
// the REST response and the push channel.
type Message struct {
	ID             int64        `json:"id"`
	ConversationID int64        `json:"conversation_id"`
	SenderID       int64        `json:"sender_id"`
	Body           string       `json:"body"`
	CreatedAt      time.Time    `json:"created_at"`
	Attachments    []Attachment `json:"attachments"`
}

// ReceiptStatus is the delivery state of a message for a given user.
// Statuses are monotonic: read is never degraded back to delivered.
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// Rank orders receipt statuses so that downgrades can be rejected.
func (s ReceiptStatus) Rank() int {
	switch s {
	case ReceiptDelivered:
		return 1
	case ReceiptRead:
		return 2
	default:
		return 0
	}
}

// Contact is an entry in the user's address book.
type Contact struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
