package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecheck/chatsync/internal/domain"
	"github.com/vibecheck/chatsync/internal/events"
	"github.com/vibecheck/chatsync/internal/pubsub"
	"github.com/vibecheck/chatsync/internal/session"
)

// mockPublisher implements pubsub.Publisher for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) getMessages() []pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pubsub.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func TestDeriveURL(t *testing.T) {
	tests := []struct {
		name     string
		apiBase  string
		pushBase string
		want     string
	}{
		{"http rewritten to ws", "http://chat.local:8000", "", "ws://chat.local:8000/api/v1/ws"},
		{"https rewritten to wss", "https://chat.example.com", "", "wss://chat.example.com/api/v1/ws"},
		{"trailing slash trimmed", "http://chat.local/", "", "ws://chat.local/api/v1/ws"},
		{"explicit push base wins", "http://chat.local", "wss://push.example.com", "wss://push.example.com/api/v1/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveURL(tt.apiBase, tt.pushBase)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_FailsWithoutCredential(t *testing.T) {
	_, err := Open(context.Background(), Options{APIBase: "http://chat.local"}, session.New(""), &mockPublisher{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
}

func TestOpen_DialFailureIsTransportError(t *testing.T) {
	// Nothing listens here.
	_, err := Open(context.Background(), Options{APIBase: "http://127.0.0.1:1"}, session.New("tok"), &mockPublisher{})

	var transportErr *domain.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

// pushServer is a minimal accept-side endpoint for channel tests.
type pushServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	token    string
	conn     *cws.Conn
	received [][]byte
	ready    chan struct{}
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{ready: make(chan struct{})}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ps.mu.Lock()
		ps.token = r.URL.Query().Get("token")
		ps.conn = conn
		ps.mu.Unlock()
		close(ps.ready)

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			ps.mu.Lock()
			ps.received = append(ps.received, data)
			ps.mu.Unlock()
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) push(t *testing.T, frame string) {
	t.Helper()
	<-ps.ready
	ps.mu.Lock()
	conn := ps.conn
	ps.mu.Unlock()
	require.NoError(t, conn.Write(context.Background(), cws.MessageText, []byte(frame)))
}

func (ps *pushServer) receivedFrames() [][]byte {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([][]byte, len(ps.received))
	copy(out, ps.received)
	return out
}

func TestChannel_HandshakeCarriesToken(t *testing.T) {
	server := newPushServer(t)
	publisher := &mockPublisher{}

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("secret-token"), publisher)
	require.NoError(t, err)
	defer channel.Close()

	<-server.ready
	server.mu.Lock()
	token := server.token
	server.mu.Unlock()
	assert.Equal(t, "secret-token", token)
	assert.NotEmpty(t, channel.ClientID())
}

func TestChannel_RoutesValidFramesAndDropsMalformed(t *testing.T) {
	server := newPushServer(t)
	publisher := &mockPublisher{}

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("tok"), publisher)
	require.NoError(t, err)
	defer channel.Close()

	server.push(t, "definitely not json")
	server.push(t, `{"type":"some:future:event","user_id":1}`)
	server.push(t, `{"type":"presence:update","user_id":7,"online":true}`)

	assert.Eventually(t, func() bool {
		return len(publisher.getMessages()) == 1
	}, time.Second, 10*time.Millisecond)

	msgs := publisher.getMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TopicPresence, msgs[0].Topic)

	// The malformed and unknown frames left no trace and did not kill the
	// channel.
	select {
	case <-channel.Done():
		t.Fatal("channel terminated by malformed frame")
	default:
	}
}

func TestChannel_SendReachesServer(t *testing.T) {
	server := newPushServer(t)

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("tok"), &mockPublisher{})
	require.NoError(t, err)
	defer channel.Close()

	<-server.ready
	channel.Send(events.TypingFrame{Type: events.EventTypingStart, ConversationID: 5})

	assert.Eventually(t, func() bool {
		return len(server.receivedFrames()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"type":"typing:start","conversation_id":5}`, string(server.receivedFrames()[0]))
}

func TestChannel_SendAfterCloseIsSilentNoOp(t *testing.T) {
	server := newPushServer(t)

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("tok"), &mockPublisher{})
	require.NoError(t, err)

	channel.Close()

	// Must not panic and must not error; typing signals are best-effort.
	channel.Send(events.TypingFrame{Type: events.EventTypingStop, ConversationID: 5})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, server.receivedFrames())
}

func TestChannel_CloseIsIdempotent(t *testing.T) {
	server := newPushServer(t)

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("tok"), &mockPublisher{})
	require.NoError(t, err)

	channel.Close()
	channel.Close()
	channel.Close()

	select {
	case <-channel.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
}

func TestChannel_ServerDropIsTerminal(t *testing.T) {
	server := newPushServer(t)

	channel, err := Open(context.Background(), Options{APIBase: server.srv.URL}, session.New("tok"), &mockPublisher{})
	require.NoError(t, err)
	defer channel.Close()

	<-server.ready
	server.mu.Lock()
	server.conn.Close(cws.StatusNormalClosure, "going away")
	server.mu.Unlock()

	select {
	case <-channel.Done():
	case <-time.After(time.Second):
		t.Fatal("channel did not terminate after server drop")
	}
}
