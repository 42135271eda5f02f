// Package push owns the live connection to the chat backend's push endpoint.
// One channel is opened per conversation view and closed on view teardown;
// a dropped connection is terminal for that channel instance, reconnection
// is the surrounding collaborator's decision.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/events"
	"github.com/vibecheck/chatsync/internal/pubsub"
	"github.com/vibecheck/chatsync/internal/session"
)

const wsPath = "/api/v1/ws"

// DeriveURL computes the push endpoint address. When pushBase is empty the
// REST base is used with its scheme rewritten (http to ws, https to wss).
func DeriveURL(apiBase, pushBase string) (string, error) {
	base := pushBase
	if base == "" {
		base = apiBase
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	base = strings.TrimRight(base, "/")

	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("invalid push base address %q: %w", base, err)
	}
	return base + wsPath, nil
}

// Channel is one live push connection. Inbound frames that parse as valid
// events are published on the bus; everything else is dropped silently.
// Outbound Send is best-effort and never returns an error.
type Channel struct {
	conn      *websocket.Conn
	publisher pubsub.Publisher
	logger    *slog.Logger

	clientID string

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// Options configures a channel open.
type Options struct {
	// APIBase is the REST base address the push address is derived from.
	APIBase string
	// PushBase overrides the derived push address when set.
	PushBase string
}

// Open establishes the push connection for the given session. It fails with
// domain.ErrAuthenticationRequired when the session has no credential, and
// with domain.TransportError when the dial itself fails.
func Open(ctx context.Context, opts Options, sess *session.Session, publisher pubsub.Publisher) (*Channel, error) {
	token := sess.Token()
	if token == "" {
		return nil, domain.ErrAuthenticationRequired
	}

	endpoint, err := DeriveURL(opts.APIBase, opts.PushBase)
	if err != nil {
		return nil, err
	}

	clientID := uuid.NewString()
	target := endpoint + "?token=" + url.QueryEscape(token) + "&client_id=" + clientID

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &domain.TransportError{Op: "push channel dial", Err: err}
	}

	ch := &Channel{
		conn:      conn,
		publisher: publisher,
		logger:    slog.Default().With("component", "push", "client_id", clientID),
		clientID:  clientID,
		done:      make(chan struct{}),
	}

	go ch.readPump()

	ch.logger.Debug("Push channel opened", "endpoint", endpoint)
	return ch, nil
}

// ClientID returns the identifier this channel announced on the handshake.
func (c *Channel) ClientID() string {
	return c.clientID
}

// Done is closed when the channel becomes terminal, whether through Close or
// a connection drop.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send serializes and transmits a payload if the channel is still open, and
// silently does nothing otherwise. Outbound signals such as typing
// indicators are best-effort and must never crash the caller.
func (c *Channel) Send(payload any) {
	select {
	case <-c.done:
		return
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Debug("Dropping unencodable outbound frame", "error", err)
		return
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("Outbound frame dropped, channel write failed", "error", err)
		c.Close()
	}
}

// Close releases the connection. Safe to call multiple times from any
// goroutine.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
		c.logger.Debug("Push channel closed")
	})
}

// readPump reads inbound frames until the connection drops or Close is
// called. Frames that fail to parse or carry an unknown type are dropped
// without surfacing an error.
func (c *Channel) readPump() {
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Debug("Push channel read failed", "error", err)
				}
			}
			return
		}

		topic, payload, ok := events.Route(raw)
		if !ok {
			continue
		}

		if err := c.publisher.Publish(context.Background(), pubsub.Message{
			Topic:   topic,
			Payload: payload,
		}); err != nil {
			c.logger.Error("Failed to publish inbound event", "topic", topic, "error", err)
		}
	}
}
