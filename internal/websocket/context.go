package websocket

import (
	"context"
	"encoding/json"
	"time"

	"rag-chat-be/internal/pkg/serverutils"
)

// Route keys understood by the gateway.
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDefault    = "$default"
)

// ConnectionContext is the per-connection authorization state. It is never shared between connections.
type ConnectionContext struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Groups       []string  `json:"groups"`
	IsAdmin      bool      `json:"is_admin"`
	ConnectedAt  time.Time `json:"connected_at"`
}

func NewConnectionContext(connectionID string, p *serverutils.Principal) ConnectionContext {
	cc := ConnectionContext{ConnectionID: connectionID, ConnectedAt: time.Now()}
	if p != nil {
		cc.UserID = p.UserID
		cc.Groups = append([]string(nil), p.Groups...)
		cc.IsAdmin = p.IsAdmin
	}
	return cc
}

// ContextStore keeps connection contexts for the lifetime of the socket.
type ContextStore interface {
	Save(cc ConnectionContext)
	Get(connectionID string) (ConnectionContext, bool)
	Delete(connectionID string)
	List() []ConnectionContext
}

// Response is a route result. A non-empty Body is written back to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cc ConnectionContext, route string, body []byte) Response
}

type inboundFrame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// ParseFrame extracts the route key. Unparsable frames and frames without an action go to $default.
func ParseFrame(raw []byte) (route string, body []byte) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil || f.Action == "" {
		return RouteDefault, raw
	}
	return f.Action, raw
}
