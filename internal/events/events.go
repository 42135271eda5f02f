// Package events defines the push channel frame schema and the bus topics
// inbound frames are routed to.
package events

import (
	"encoding/json"

	"github.com/vibecheck/chatsync/internal/domain"
)

// EventType discriminates inbound and outbound frames by their "type" field.
type EventType string

const (
	EventMessageNew     EventType = "message:new"
	EventReceiptUpdate  EventType = "receipt:update"
	EventTypingStart    EventType = "typing:start"
	EventTypingStop     EventType = "typing:stop"
	EventPresenceUpdate EventType = "presence:update"
)

// Bus topics for routed inbound events. One topic per tracker concern; the
// typing topic carries both start and stop frames.
const (
	TopicMessageNew    = "chat.message.new"
	TopicReceiptUpdate = "chat.receipt.update"
	TopicTyping        = "chat.typing"
	TopicPresence      = "chat.presence"
)

// Frame is the wire representation of one inbound push event. Fields not
// relevant to a given type are simply left at their zero value; unknown
// types and unknown extra fields are tolerated.
type Frame struct {
	Type           EventType       `json:"type"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	Message        *domain.Message `json:"message,omitempty"`
	MessageID      int64           `json:"message_id,omitempty"`
	UserID         int64           `json:"user_id,omitempty"`
	Status         string          `json:"status,omitempty"`
	Online         bool            `json:"online,omitempty"`
}

// TypingFrame is the only outbound frame the client sends over the push
// channel.
type TypingFrame struct {
	Type           EventType `json:"type"`
	ConversationID int64     `json:"conversation_id"`
}

// MessageNewEvent is published on TopicMessageNew.
type MessageNewEvent struct {
	ConversationID int64          `json:"conversation_id"`
	Message        domain.Message `json:"message"`
}

// ReceiptUpdateEvent is published on TopicReceiptUpdate.
type ReceiptUpdateEvent struct {
	ConversationID int64                `json:"conversation_id"`
	MessageID      int64                `json:"message_id"`
	UserID         int64                `json:"user_id"`
	Status         domain.ReceiptStatus `json:"status"`
}

// TypingEvent is published on TopicTyping for both start and stop frames.
type TypingEvent struct {
	Type           EventType `json:"type"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
}

// PresenceEvent is published on TopicPresence.
type PresenceEvent struct {
	UserID int64 `json:"user_id"`
	Online bool  `json:"online"`
}

// Route parses a raw inbound frame and returns the bus topic it belongs on
// together with the payload to publish. ok is false for frames that are not
// valid JSON or carry an unrecognized type: both are dropped silently by the
// caller. This is a deliberate lenient-ingest policy so protocol additions
// never break older clients.
func Route(raw []byte) (topic string, payload []byte, ok bool) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, false
	}

	switch frame.Type {
	case EventMessageNew:
		if frame.Message == nil {
			return "", nil, false
		}
		payload, err := json.Marshal(MessageNewEvent{
			ConversationID: frame.ConversationID,
			Message:        *frame.Message,
		})
		if err != nil {
			return "", nil, false
		}
		return TopicMessageNew, payload, true

	case EventReceiptUpdate:
		payload, err := json.Marshal(ReceiptUpdateEvent{
			ConversationID: frame.ConversationID,
			MessageID:      frame.MessageID,
			UserID:         frame.UserID,
			Status:         domain.ReceiptStatus(frame.Status),
		})
		if err != nil {
			return "", nil, false
		}
		return TopicReceiptUpdate, payload, true

	case EventTypingStart, EventTypingStop:
		payload, err := json.Marshal(TypingEvent{
			Type:           frame.Type,
			ConversationID: frame.ConversationID,
			UserID:         frame.UserID,
		})
		if err != nil {
			return "", nil, false
		}
		return TopicTyping, payload, true

	case EventPresenceUpdate:
		payload, err := json.Marshal(PresenceEvent{
			UserID: frame.UserID,
			Online: frame.Online,
		})
		if err != nil {
			return "", nil, false
		}
		return TopicPresence, payload, true

	default:
		return "", nil, false
	}
}
