// Package api is the transport capability used by probes and by wrapped
// requests. Every call is addressed to an explicit node.Origin, and every
// failure is classified into an *Error so callers can tell a node that is
// unreachable apart from a node that answered with a bad result.
package api

import (
	"context"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

// WebsocketConn is an open websocket JSONRPC connection.
type WebsocketConn interface {
	jsonrpc2.Service
	Close() error
}

// Core sends requests to a given origin.
type Core interface {
	// Call makes a single JSONRPC call.
	Call(ctx context.Context, origin node.Origin, result interface{}, method string, params ...interface{}) error
	// Batch makes several JSONRPC calls in one round trip. Per-call errors
	// are set on each element.
	Batch(ctx context.Context, origin node.Origin, elems []jsonrpc2.BatchElem) error
	// Get decodes the JSON response of a GET request on the origin path.
	Get(ctx context.Context, origin node.Origin, path string, result interface{}) error
	// Post sends body as JSON and decodes the JSON response.
	Post(ctx context.Context, origin node.Origin, path string, body interface{}, result interface{}) error
	// DialWebsocket opens a websocket connection to the origin. If port is
	// 0, the origin's own port is used.
	DialWebsocket(ctx context.Context, origin node.Origin, port int) (WebsocketConn, error)
}
