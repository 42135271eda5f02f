// Package engine wires the synchronization components into a session-level
// Engine and per-conversation Views.
//
// The Engine owns the resources shared by every view in one session: the
// event bus, the REST client, the presence tracker and the upload
// orchestrator. A View owns the conversation-scoped state: the push
// channel, the reconciler, the typing controller and tracker. Tearing a
// view down cancels its context, which both detaches its bus subscriptions
// and discards the effects of any in-flight REST request.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vibecheck/chatsync/internal/api"
	"github.com/vibecheck/chatsync/internal/config"
	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/presence"
	"github.com/vibecheck/chatsync/internal/pubsub"
	"github.com/vibecheck/chatsync/internal/session"
	"github.com/vibecheck/chatsync/internal/upload"
)

// Engine is the session-level entry point of the sync engine.
type Engine struct {
	cfg      *config.Config
	sess     *session.Session
	api      *api.Client
	bus      pubsub.Bus
	presence *presence.Tracker
	uploader *upload.Orchestrator
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine for one session. The presence tracker attaches to
// the bus immediately and lives for the whole session.
func New(cfg *config.Config, sess *session.Session) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client := api.NewClient(cfg.APIBaseURL, sess)
	bus := pubsub.NewWatermillBus()

	tracker := presence.NewTracker()
	if err := tracker.Attach(ctx, bus); err != nil {
		cancel()
		bus.Close()
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		sess:     sess,
		api:      client,
		bus:      bus,
		presence: tracker,
		uploader: upload.New(client),
		logger:   slog.Default().With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// API exposes the REST client for surrounding callers (conversation and
// contact listing sit outside the sync core but share the session).
func (e *Engine) API() *api.Client {
	return e.api
}

// Presence returns the session-wide presence tracker.
func (e *Engine) Presence() *presence.Tracker {
	return e.presence
}

// Uploader returns the session's upload orchestrator.
func (e *Engine) Uploader() *upload.Orchestrator {
	return e.uploader
}

// Session returns the session credential holder.
func (e *Engine) Session() *session.Session {
	return e.sess
}

// Bus returns the session event bus, mainly for tests and for observers
// that want raw events.
func (e *Engine) Bus() pubsub.Bus {
	return e.bus
}

// Close tears down the engine and every resource it owns. Views opened from
// this engine become inert.
func (e *Engine) Close() error {
	e.cancel()
	return e.bus.Close()
}

// SendMessage posts a message outside of an open view, without typing
// signalling. The trimmed body must be non-empty.
func (e *Engine) SendMessage(ctx context.Context, conversationID int64, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}
	return e.api.SendMessage(ctx, conversationID, body, nil)
}
