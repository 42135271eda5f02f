package engine

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/push"
	"github.com/vibecheck/chatsync/internal/reconcile"
	"github.com/vibecheck/chatsync/internal/typing"
)

// View is one open conversation. It owns the push channel for its lifetime
// and the conversation-scoped message and typing state.
type View struct {
	engine  *Engine
	channel *push.Channel

	reconciler   *reconcile.Reconciler
	typingCtrl   *typing.Controller
	typingRemote *typing.Tracker

	ctx    context.Context
	cancel context.CancelFunc
}

// ViewOption configures an opened view.
type ViewOption func(*viewOptions)

type viewOptions struct {
	typingOpts []typing.Option
	onChange   func()
}

// WithTypingOptions forwards options to the view's typing controller.
func WithTypingOptions(opts ...typing.Option) ViewOption {
	return func(vo *viewOptions) {
		vo.typingOpts = append(vo.typingOpts, opts...)
	}
}

// WithChangeNotify registers a callback invoked whenever the view's message
// state changes, from either arrival path.
func WithChangeNotify(fn func()) ViewOption {
	return func(vo *viewOptions) {
		vo.onChange = fn
	}
}

// OpenView opens a conversation: establishes the push channel, attaches the
// conversation-scoped trackers to the bus and loads the message history.
// It fails with domain.ErrAuthenticationRequired when the session has no
// credential. On any failure no view resources are left behind.
func (e *Engine) OpenView(ctx context.Context, conversationID int64, opts ...ViewOption) (*View, error) {
	vo := &viewOptions{}
	for _, opt := range opts {
		opt(vo)
	}

	viewCtx, cancel := context.WithCancel(e.ctx)

	var reconcilerOpts []reconcile.Option
	if vo.onChange != nil {
		reconcilerOpts = append(reconcilerOpts, reconcile.WithOnChange(vo.onChange))
	}
	reconciler := reconcile.New(conversationID, reconcilerOpts...)
	typingRemote := typing.NewTracker(conversationID)

	// Subscriptions go up before the channel so nothing delivered during
	// the handshake is dropped on the bus.
	if err := reconciler.Attach(viewCtx, e.bus); err != nil {
		cancel()
		return nil, err
	}
	if err := typingRemote.Attach(viewCtx, e.bus); err != nil {
		cancel()
		return nil, err
	}

	channel, err := push.Open(ctx, push.Options{
		APIBase:  e.cfg.APIBaseURL,
		PushBase: e.cfg.PushURL,
	}, e.sess, e.bus)
	if err != nil {
		cancel()
		return nil, err
	}

	typingOpts := vo.typingOpts
	if e.cfg.TypingIdleMs > 0 {
		typingOpts = append([]typing.Option{
			typing.WithIdleWindow(time.Duration(e.cfg.TypingIdleMs) * time.Millisecond),
		}, typingOpts...)
	}

	v := &View{
		engine:       e,
		channel:      channel,
		reconciler:   reconciler,
		typingCtrl:   typing.NewController(conversationID, channel, typingOpts...),
		typingRemote: typingRemote,
		ctx:          viewCtx,
		cancel:       cancel,
	}

	history, err := e.api.ListMessages(viewCtx, conversationID)
	if err != nil {
		v.Close()
		return nil, err
	}
	// A push-delivered message may already have raced the history load;
	// seeding dedups per entry.
	v.reconciler.SeedHistory(history)

	e.logger.Info("Conversation view opened",
		"conversation_id", conversationID,
		"history", len(history))
	return v, nil
}

// ConversationID returns the conversation this view is open on.
func (v *View) ConversationID() int64 {
	return v.reconciler.ConversationID()
}

// Messages returns the current message sequence, first-seen order.
func (v *View) Messages() []domain.Message {
	return v.reconciler.Messages()
}

// Version returns the state version counter for cheap change detection.
func (v *View) Version() uint64 {
	return v.reconciler.Version()
}

// Receipt returns the latest receipt status recorded for a message.
func (v *View) Receipt(messageID int64) (domain.ReceiptStatus, bool) {
	return v.reconciler.Receipt(messageID)
}

// TypingUsers returns the remote users currently composing in this
// conversation.
func (v *View) TypingUsers() []int64 {
	return v.typingRemote.TypingUsers()
}

// Keystroke records local composer activity, driving the typing state
// machine.
func (v *View) Keystroke() {
	v.typingCtrl.Keystroke()
}

// requestContext derives a context that is cancelled by view teardown as
// well as by the caller, so a response arriving after Close is never
// applied to shared state.
func (v *View) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

// Send posts the trimmed body and applies the created message locally. The
// same message arriving later over the push channel dedups to a no-op. A
// successful send forces the typing machine back to idle.
func (v *View) Send(ctx context.Context, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}

	reqCtx, cancel := v.requestContext(ctx)
	defer cancel()

	msg, err := v.engine.api.SendMessage(reqCtx, v.ConversationID(), body, nil)
	if err != nil {
		return nil, err
	}
	if v.ctx.Err() != nil {
		// Torn down while the request was in flight; discard the effect.
		return nil, domain.ErrViewClosed
	}

	v.reconciler.ApplyMessage(*msg)
	v.typingCtrl.MessageSent()
	return msg, nil
}

// Upload runs the attachment flow for this conversation and applies the
// finalized message locally.
func (v *View) Upload(ctx context.Context, filename, contentType string, content io.Reader, body string) (*domain.Message, error) {
	reqCtx, cancel := v.requestContext(ctx)
	defer cancel()

	msg, err := v.engine.uploader.Upload(reqCtx, v.ConversationID(), filename, contentType, content, body)
	if err != nil {
		return nil, err
	}
	if v.ctx.Err() != nil {
		return nil, domain.ErrViewClosed
	}

	v.reconciler.ApplyMessage(*msg)
	v.typingCtrl.MessageSent()
	return msg, nil
}

// MarkRead reports a read receipt for a message in this conversation.
func (v *View) MarkRead(ctx context.Context, messageID int64) error {
	reqCtx, cancel := v.requestContext(ctx)
	defer cancel()
	return v.engine.api.UpdateReceipt(reqCtx, messageID, domain.ReceiptRead)
}

// Done is closed when the view's push channel becomes terminal.
func (v *View) Done() <-chan struct{} {
	return v.channel.Done()
}

// Close tears the view down: cancels bus subscriptions and in-flight
// request effects, stops the typing timer without emitting, and closes the
// push channel exactly once. Idempotent.
func (v *View) Close() {
	v.cancel()
	v.typingCtrl.Close()
	v.channel.Close()
}
