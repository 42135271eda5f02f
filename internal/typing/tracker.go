package typing

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/vibecheck/chatsync/internal/events"
	"github.com/vibecheck/chatsync/internal/pubsub"
)

// Tracker maintains the set of remote users currently composing in one
// conversation. Entries are added on typing:start and removed only on an
// explicit typing:stop; no server-side expiry is assumed. Events naming a
// different conversation are ignored.
type Tracker struct {
	conversationID int64
	logger         *slog.Logger

	mu    sync.RWMutex
	users map[int64]struct{}
}

// NewTracker creates a typing tracker scoped to one conversation.
func NewTracker(conversationID int64) *Tracker {
	return &Tracker{
		conversationID: conversationID,
		logger:         slog.Default().With("component", "typing", "conversation_id", conversationID),
		users:          make(map[int64]struct{}),
	}
}

// Attach subscribes the tracker to typing events on the bus. Cancelling ctx
// detaches it.
func (t *Tracker) Attach(ctx context.Context, subscriber pubsub.Subscriber) error {
	return subscriber.Subscribe(ctx, events.TopicTyping, t.handleTyping)
}

func (t *Tracker) handleTyping(ctx context.Context, msg pubsub.Message) error {
	var event events.TypingEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.logger.Debug("Dropping undecodable typing event", "error", err)
		return nil
	}
	if event.ConversationID != t.conversationID {
		return nil
	}

	t.mu.Lock()
	switch event.Type {
	case events.EventTypingStart:
		t.users[event.UserID] = struct{}{}
	case events.EventTypingStop:
		delete(t.users, event.UserID)
	}
	t.mu.Unlock()
	return nil
}

// TypingUsers returns the identifiers of users currently composing, in
// stable ascending order for display.
func (t *Tracker) TypingUsers() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int64, 0, len(t.users))
	for id := range t.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
