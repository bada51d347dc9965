package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// outbound is one queued frame. A nil data with close set ends the connection.
type outbound struct {
	data  []byte
	close bool
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID  string
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	send chan outbound
	done chan struct{}
	once sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		ID:   id,
		Hub:  hub,
		Conn: conn,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) enqueue(ctx context.Context, data []byte) error {
	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case c.send <- outbound{data: data}:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrConnectionClosed
	}
}

// requestClose queues a close behind anything already pushed.
func (c *Client) requestClose() {
	select {
	case c.send <- outbound{close: true}:
	case <-c.done:
	case <-time.After(writeWait):
		c.shutdown()
	}
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// readPump reads frames and dispatches each one on its own goroutine.
func (c *Client) readPump(dispatcher Dispatcher, cc ConnectionContext) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		dispatcher.Dispatch(context.Background(), cc, RouteDisconnect, nil)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebSocket", "Unexpected close", map[string]interface{}{
					"connection_id": c.ID,
					"error":         err.Error(),
				})
			}
			return
		}

		frameCC, ok := c.Hub.contextFor(c.ID, cc)
		if !ok {
			c.Hub.logger.Warn("WebSocket", "Connection context expired, closing", map[string]interface{}{"connection_id": c.ID})
			return
		}

		route, body := ParseFrame(raw)
		go func() {
			// Pipelines outlive the socket so a disconnect does not drop the turn record.
			resp := dispatcher.Dispatch(context.Background(), frameCC, route, body)
			if len(resp.Body) == 0 {
				return
			}
			if err := c.enqueue(context.Background(), resp.Body); err != nil {
				c.Hub.logger.Debug("WebSocket", "Route response dropped", map[string]interface{}{
					"connection_id": c.ID,
					"route":         route,
				})
			}
		}()
	}
}

// writePump writes every queued frame as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if msg.close {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				c.shutdown()
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}
