// Package typing implements the debounced typing-intent state machine and
// the per-conversation view of who else is currently composing.
package typing

import (
	"sync"
	"time"

	"github.com/vibecheck/chatsync/internal/events"
)

// DefaultIdleWindow is the inactivity window after the last keystroke
// before a typing:stop is emitted.
const DefaultIdleWindow = 1200 * time.Millisecond

// Sender is the outbound half of the push channel. Sends are best-effort:
// when the channel is unavailable the state machine still transitions
// locally and the signal simply does not reach peers.
type Sender interface {
	Send(payload any)
}

// Controller is the two-state {idle, active} machine for one conversation
// view's composer.
//
// The first keystroke after idle emits typing:start; further keystrokes
// while active reset the inactivity timer without re-emitting. Timer expiry
// and a successful send both force the transition back to idle and emit
// typing:stop.
type Controller struct {
	conversationID int64
	sender         Sender
	idleWindow     time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithIdleWindow overrides the inactivity window. Useful for tests.
func WithIdleWindow(d time.Duration) Option {
	return func(c *Controller) {
		c.idleWindow = d
	}
}

// NewController creates the typing state machine for one conversation.
func NewController(conversationID int64, sender Sender, opts ...Option) *Controller {
	c := &Controller{
		conversationID: conversationID,
		sender:         sender,
		idleWindow:     DefaultIdleWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Keystroke records composer activity. The inactivity timer is
// cancel-and-replace: every keystroke cancels the pending expiry and
// schedules a fresh one.
func (c *Controller) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if !c.active {
		c.active = true
		c.emit(events.EventTypingStart)
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.idleWindow, func() { c.expire(t) })
	c.timer = t
}

// MessageSent forces an immediate active-to-idle transition after a
// successful send, regardless of timer state.
func (c *Controller) MessageSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Active reports whether the machine is currently in the active state.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Close cancels any pending timer without emitting. Called on view
// teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.active = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// expire runs when the inactivity timer fires. A fired callback can lose
// the lock race against a keystroke that re-arms the machine; checking the
// timer identity keeps such a stale expiry from emitting a typing:stop
// right after the keystroke.
func (c *Controller) expire(t *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != t {
		return
	}
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.closed || !c.active {
		return
	}
	c.active = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.emit(events.EventTypingStop)
}

func (c *Controller) emit(eventType events.EventType) {
	c.sender.Send(events.TypingFrame{
		Type:           eventType,
		ConversationID: c.conversationID,
	})
}
