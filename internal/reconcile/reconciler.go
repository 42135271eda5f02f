// Package reconcile merges locally-initiated sends, REST history loads and
// push-delivered events into one authoritative per-conversation message
// list.
//
// Correctness does not depend on arrival order: a message may reach the
// state first from the REST response to a local send and again moments
// later from the push channel, or the other way round. The server-assigned
// message identifier is the deduplication key; the second arrival is a
// no-op either way.
package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/events"
	"github.com/vibecheck/chatsync/internal/pubsub"
)

// Reconciler holds the message state of one conversation view. Safe for
// concurrent use; bus handlers and local callers interleave freely because
// every application is idempotent.
type Reconciler struct {
	conversationID int64
	logger         *slog.Logger

	mu       sync.RWMutex
	messages []domain.Message
	seen     map[int64]struct{}
	receipts map[int64]domain.ReceiptStatus
	version  uint64

	onChange func()
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithOnChange registers a callback invoked after every state mutation.
// The callback runs outside the state lock.
func WithOnChange(fn func()) Option {
	return func(r *Reconciler) {
		r.onChange = fn
	}
}

// New creates a reconciler for one conversation.
func New(conversationID int64, opts ...Option) *Reconciler {
	r := &Reconciler{
		conversationID: conversationID,
		logger:         slog.Default().With("component", "reconcile", "conversation_id", conversationID),
		seen:           make(map[int64]struct{}),
		receipts:       make(map[int64]domain.ReceiptStatus),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the reconciler to push-delivered events on the bus.
// Cancelling ctx detaches it; events arriving after teardown are discarded
// by the bus, not applied.
func (r *Reconciler) Attach(ctx context.Context, subscriber pubsub.Subscriber) error {
	if err := subscriber.Subscribe(ctx, events.TopicMessageNew, r.handleMessageNew); err != nil {
		return err
	}
	return subscriber.Subscribe(ctx, events.TopicReceiptUpdate, r.handleReceiptUpdate)
}

func (r *Reconciler) handleMessageNew(ctx context.Context, msg pubsub.Message) error {
	var event events.MessageNewEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.logger.Debug("Dropping undecodable message event", "error", err)
		return nil
	}
	if event.ConversationID != r.conversationID {
		return nil
	}
	r.ApplyMessage(event.Message)
	return nil
}

func (r *Reconciler) handleReceiptUpdate(ctx context.Context, msg pubsub.Message) error {
	var event events.ReceiptUpdateEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		r.logger.Debug("Dropping undecodable receipt event", "error", err)
		return nil
	}
	if event.ConversationID != r.conversationID {
		return nil
	}
	r.ApplyReceipt(event.MessageID, event.Status)
	return nil
}

// SeedHistory applies a REST history load. Individual messages already
// present (for example from a push event that raced the load) are skipped.
func (r *Reconciler) SeedHistory(messages []domain.Message) {
	changed := false
	r.mu.Lock()
	for _, m := range messages {
		if r.insertLocked(m) {
			changed = true
		}
	}
	r.mu.Unlock()
	r.notify(changed)
}

// ApplyMessage inserts a message unless one with the same identifier is
// already present. Ordering is append order of first-seen, not timestamp
// order. Returns whether the state changed.
func (r *Reconciler) ApplyMessage(m domain.Message) bool {
	r.mu.Lock()
	inserted := r.insertLocked(m)
	r.mu.Unlock()
	r.notify(inserted)
	return inserted
}

func (r *Reconciler) insertLocked(m domain.Message) bool {
	if _, dup := r.seen[m.ID]; dup {
		return false
	}
	r.seen[m.ID] = struct{}{}
	r.messages = append(r.messages, m)
	r.version++
	return true
}

// ApplyReceipt records the latest receipt status for a message. Statuses
// are monotonic: a delivered arriving after read is ignored rather than
// applied as a downgrade. Returns whether the state changed.
func (r *Reconciler) ApplyReceipt(messageID int64, status domain.ReceiptStatus) bool {
	if status.Rank() == 0 {
		return false
	}

	r.mu.Lock()
	current, exists := r.receipts[messageID]
	if exists && status.Rank() <= current.Rank() {
		r.mu.Unlock()
		return false
	}
	r.receipts[messageID] = status
	r.version++
	r.mu.Unlock()
	r.notify(true)
	return true
}

// Messages returns a copy of the conversation's message sequence.
func (r *Reconciler) Messages() []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Receipt returns the latest receipt status recorded for a message.
func (r *Reconciler) Receipt(messageID int64) (domain.ReceiptStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.receipts[messageID]
	return status, ok
}

// Version returns a counter that increases with every state mutation, so
// observers can cheaply detect change.
func (r *Reconciler) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// ConversationID returns the conversation this reconciler is scoped to.
func (r *Reconciler) ConversationID() int64 {
	return r.conversationID
}

func (r *Reconciler) notify(changed bool) {
	if changed && r.onChange != nil {
		r.onChange()
	}
}
