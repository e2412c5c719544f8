package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/seatrack/gpxplayer/internal/player"
	"github.com/seatrack/gpxplayer/pkg/streaming"
)

const (
	relaySendSize = 1_000
	relayAckSize  = 16
	maxReconnect  = 10
	maxBackoff    = 30 * time.Second
	ackTimeout    = 10 * time.Second
)

// Relay pushes frames to a remote websocket server with a single write
// goroutine. The hello message is replayed after every reconnect so the
// server knows which session the frames belong to.
type Relay struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	// Cached hello message for reconnect replay.
	cachedHello []byte

	// backoff is the first reconnect delay, doubled per failed attempt.
	backoff time.Duration

	logger *slog.Logger
}

// NewRelay creates a relay for rawURL. The secret is sent as a query parameter.
func NewRelay(rawURL, secret string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		sendCh:  make(chan []byte, relaySendSize),
		ackCh:   make(chan streaming.AckMessage, relayAckSize),
		done:    make(chan struct{}),
		wsURL:   rawURL,
		secret:  secret,
		backoff: time.Second,
		logger:  logger,
	}
}

// Dial connects, starts the read/write loops and announces the session.
// It waits for the server to acknowledge the hello.
func (r *Relay) Dial(hello streaming.HelloPayload) error {
	conn, err := r.dialOnce()
	if err != nil {
		return err
	}

	msg, err := streaming.Marshal(streaming.TypeHello, "", hello)
	if err != nil {
		_ = conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.cachedHello = msg
	r.mu.Unlock()

	go r.writeLoop()
	go r.readLoop()

	return r.sendAndWait(msg, streaming.TypeHello, ackTimeout)
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (r *Relay) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(r.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if r.secret != "" {
		q := u.Query()
		q.Set("secret", r.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// WriteFrame implements player.Sink. Frames are dropped while the send
// queue is full.
func (r *Relay) WriteFrame(_ context.Context, f player.Frame) error {
	data, err := streaming.Marshal(streaming.TypeFrame, "", f)
	if err != nil {
		return err
	}
	r.send(data)
	return nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (r *Relay) writeLoop() {
	for {
		select {
		case <-r.done:
			return
		case data := <-r.sendCh:
			r.mu.Lock()
			conn := r.conn
			r.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				r.logger.Warn("Relay SetWriteDeadline error", "error", err)
				go r.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				r.logger.Warn("Relay write error", "error", err)
				go r.reconnect()
				return
			}
		}
	}
}

// readLoop reads ack messages from the server and routes them to ackCh.
func (r *Relay) readLoop() {
	for {
		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			r.logger.Warn("Relay read error", "error", err)
			go r.reconnect()
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			r.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == streaming.TypeAck {
			select {
			case r.ackCh <- ack:
			default:
				r.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff,
// replays the cached hello and restarts the read/write loops.
func (r *Relay) reconnect() {
	r.mu.Lock()
	if r.closed || r.conn == nil {
		// closed, or another loop is already reconnecting
		r.mu.Unlock()
		return
	}
	_ = r.conn.Close()
	r.conn = nil
	r.mu.Unlock()

	backoff := r.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-r.done:
			return
		case <-time.After(backoff):
		}

		r.logger.Info("Reconnecting relay", "attempt", attempt, "url", r.wsURL)

		conn, err := r.dialOnce()
		if err != nil {
			r.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = conn.Close()
			return
		}
		r.conn = conn
		cached := r.cachedHello
		r.mu.Unlock()

		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = conn.WriteMessage(ws.TextMessage, cached)
			}
			if err != nil {
				r.logger.Warn("Failed to replay hello after reconnect", "error", err)
				r.mu.Lock()
				r.conn = nil
				r.mu.Unlock()
				_ = conn.Close()
				continue
			}
		}

		r.logger.Info("Relay reconnected", "attempt", attempt)
		go r.writeLoop()
		go r.readLoop()
		return
	}

	r.logger.Error("Relay reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (r *Relay) send(data []byte) {
	select {
	case r.sendCh <- data:
	default:
		r.logger.Warn("Relay send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (r *Relay) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	r.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-r.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-r.done:
			return fmt.Errorf("relay closed while waiting for ack of %q", ackFor)
		}
	}
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
