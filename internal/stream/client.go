package stream

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"CoinStream/internal/event"
	applogger "CoinStream/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	maxInboundBytes = 1024
)

// Client is one WebSocket subscriber. The hub pushes serialized envelopes
// into send; writePump drains it onto the wire and readPump consumes inbound
// frames until the peer goes away.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

func (c *Client) peer() string {
	if c.conn == nil {
		return "unknown"
	}
	return c.conn.RemoteAddr().String()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		// Inbound text frames are echoed to all subscribers, tagged with
		// the sender's address.
		if c.hub.events != nil {
			if err := c.hub.events.Emit(event.EventMessage, map[string]interface{}{
				"message": fmt.Sprintf("%s from %s", msg, c.peer()),
			}); err != nil {
				c.hub.log.Warn("inbound message emit failed", applogger.Error(err))
			}
		}
	}
}
