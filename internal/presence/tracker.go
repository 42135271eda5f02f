// Package presence maintains the process-wide set of currently-online user
// identifiers.
//
// The set is driven solely by presence:update push events. It is a
// best-effort, eventually-stale view rather than a liveness protocol: a
// user the session has never heard about is simply absent, not
// known-offline, and there is no heartbeat or timeout eviction.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/vibecheck/chatsync/internal/events"
	"github.com/vibecheck/chatsync/internal/pubsub"
)

// Tracker is the session-wide presence set, shared across all conversation
// views.
type Tracker struct {
	logger *slog.Logger

	mu     sync.RWMutex
	online map[int64]struct{}
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		logger: slog.Default().With("component", "presence"),
		online: make(map[int64]struct{}),
	}
}

// Attach subscribes the tracker to presence events on the bus. Cancelling
// ctx detaches it.
func (t *Tracker) Attach(ctx context.Context, subscriber pubsub.Subscriber) error {
	return subscriber.Subscribe(ctx, events.TopicPresence, t.handlePresence)
}

func (t *Tracker) handlePresence(ctx context.Context, msg pubsub.Message) error {
	var event events.PresenceEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.logger.Debug("Dropping undecodable presence event", "error", err)
		return nil
	}

	t.mu.Lock()
	if event.Online {
		t.online[event.UserID] = struct{}{}
	} else {
		delete(t.online, event.UserID)
	}
	t.mu.Unlock()

	t.logger.Debug("Presence updated", "user_id", event.UserID, "online", event.Online)
	return nil
}

// IsOnline reports whether a presence:update has marked the user online
// more recently than it marked them offline.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// OnlineUsers returns the identifiers currently considered online, in
// stable ascending order for display.
func (t *Tracker) OnlineUsers() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int64, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
