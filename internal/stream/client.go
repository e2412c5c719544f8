package stream

import (
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// client is one websocket connection served by a Hub.
// Only writePump writes to conn.
type client struct {
	id   string
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	once sync.Once
	done chan struct{}
}

// enqueue hands data to the write pump without blocking. It reports false
// when the client is gone or too slow.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.stop()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.hub.logger.Debug("client write failed", "client", c.id, "error", err)
				c.stop()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.stop()
				return
			}
		}
	}
}

func (c *client) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.hub.logger.Debug("client read failed", "client", c.id, "error", err)
			}
			return
		}
		if msgType != ws.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if reply := c.hub.handle(c, raw); reply != nil {
			c.enqueue(reply)
		}
	}
}
