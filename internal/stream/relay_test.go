package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/seatrack/gpxplayer/internal/player"
	"github.com/seatrack/gpxplayer/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secrets  []string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

// relayServer records received messages and acks hello.
func relayServer(t *testing.T, ackHello bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.mu.Lock()
		ml.secrets = append(ml.secrets, r.URL.Query().Get("secret"))
		ml.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeHello && ackHello {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ml
}

func TestRelay_HelloAndFrames(t *testing.T) {
	srv, ml := relayServer(t, true)

	r := NewRelay(wsURL(srv), "s3cret", nil)
	require.NoError(t, r.Dial(streaming.HelloPayload{Session: "kiel", Resolution: 1000}))
	defer r.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.WriteFrame(context.Background(), player.Frame{Seq: uint64(i), Position: i}))
	}

	assert.Eventually(t, func() bool { return len(ml.all()) == 4 }, 5*time.Second, 10*time.Millisecond)

	msgs := ml.all()
	assert.Equal(t, streaming.TypeHello, msgs[0].Type)
	for _, m := range msgs[1:] {
		assert.Equal(t, streaming.TypeFrame, m.Type)
	}
	var last player.Frame
	require.NoError(t, json.Unmarshal(msgs[3].Payload, &last))
	assert.Equal(t, uint64(3), last.Seq)

	ml.mu.Lock()
	assert.Equal(t, "s3cret", ml.secrets[0])
	ml.mu.Unlock()
}

func TestRelay_DialFailure(t *testing.T) {
	r := NewRelay("ws://127.0.0.1:1/none", "", nil)
	assert.Error(t, r.Dial(streaming.HelloPayload{}))
	assert.NoError(t, r.Close())
}

func TestRelay_InvalidURL(t *testing.T) {
	r := NewRelay("://bad", "", nil)
	assert.Error(t, r.Dial(streaming.HelloPayload{}))
}

func TestRelay_CloseWhileWaitingForAck(t *testing.T) {
	srv, _ := relayServer(t, false)

	r := NewRelay(wsURL(srv), "", nil)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Dial(streaming.HelloPayload{}) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Dial did not return after Close")
	}
}

func TestRelay_CloseIdempotent(t *testing.T) {
	srv, _ := relayServer(t, true)

	r := NewRelay(wsURL(srv), "", nil)
	require.NoError(t, r.Dial(streaming.HelloPayload{}))
	require.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
