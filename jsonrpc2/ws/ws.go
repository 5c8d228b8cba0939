// Package ws implements JSONRPC 2.0 over websocket connections, using
// Gorilla's websocket library.
package ws

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vipnode/nodehealth/jsonrpc2"
)

var _ jsonrpc2.Service = &Conn{}

// Conn is a client-side websocket connection. Calls are serialized, one
// request in flight at a time.
type Conn struct {
	jsonrpc2.Client

	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial opens a websocket connection to the given ws:// or wss:// URL.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// Call sends a request and waits for the response with the matching ID.
// Messages with other IDs, such as subscription notifications, are skipped.
func (c *Conn) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	msg, err := c.Client.Request(method, params...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var resp jsonrpc2.Message
		if err := c.conn.ReadJSON(&resp); err != nil {
			return err
		}
		if string(resp.ID) != string(msg.ID) || resp.Response == nil {
			continue
		}
		return resp.Response.UnmarshalResult(result)
	}
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// Handler returns an http.HandlerFunc that upgrades requests to websocket
// connections and serves the registry on them until the peer disconnects.
func Handler(srv *jsonrpc2.Server) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
			return
		}
		defer conn.Close()
		for {
			var msg jsonrpc2.Message
			if err := conn.ReadJSON(&msg); err != nil {
				if err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Printf("websocket read error from %s: %s", r.RemoteAddr, err)
				}
				return
			}
			resp := srv.HandleMessage(r.Context(), &msg)
			if resp == nil {
				continue
			}
			if err := conn.WriteJSON(resp); err != nil {
				logger.Printf("websocket write error from %s: %s", r.RemoteAddr, err)
				return
			}
		}
	}
}
