package websocket

import (
	"context"
	"net/http"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs an upgraded, already authorized connection until the peer leaves.
func ServeWs(hub *Hub, dispatcher Dispatcher, c *websocket.Conn, cc ConnectionContext) {
	if cc.ConnectionID == "" {
		cc.ConnectionID = uuid.NewString()
	}
	client := newClient(hub, c, cc.ConnectionID)

	resp := dispatcher.Dispatch(context.Background(), cc, RouteConnect, nil)
	if resp.StatusCode >= http.StatusBadRequest {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(resp.Body)))
		c.Close()
		return
	}
	hub.Register(client, cc)

	go client.writePump()
	client.readPump(dispatcher, cc)
}
