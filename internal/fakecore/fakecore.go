// Package fakecore is a scriptable api.Core for tests. Each origin gets a
// handler, and every request is recorded in order.
package fakecore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

// ErrScripted is the underlying error of scripted failures.
var ErrScripted = errors.New("scripted failure")

// Handler answers a request. For Get and Post, method is the path.
type Handler func(ctx context.Context, method string, params []interface{}) (interface{}, error)

// Core routes requests to per-origin handlers. Origins without a handler
// fail with a connection error.
type Core struct {
	mu       sync.Mutex
	handlers map[node.Origin]Handler
	requests []node.Origin
}

var _ api.Core = &Core{}

func New() *Core {
	return &Core{handlers: map[node.Origin]Handler{}}
}

// Handle sets the handler for origin.
func (c *Core) Handle(origin node.Origin, h Handler) {
	c.mu.Lock()
	c.handlers[origin] = h
	c.mu.Unlock()
}

// Reply makes every request to origin succeed with result.
func (c *Core) Reply(origin node.Origin, result interface{}) {
	c.Handle(origin, func(context.Context, string, []interface{}) (interface{}, error) {
		return result, nil
	})
}

// Fail makes every request to origin fail with the given kind.
func (c *Core) Fail(origin node.Origin, kind api.Kind) {
	err := &api.Error{Kind: kind, Origin: origin, Err: ErrScripted}
	c.Handle(origin, func(context.Context, string, []interface{}) (interface{}, error) {
		return nil, err
	})
}

// Calls returns how many requests were sent to origin.
func (c *Core) Calls(origin node.Origin) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	num := 0
	for _, o := range c.requests {
		if o == origin {
			num++
		}
	}
	return num
}

// Requests returns the origins of all requests, in order.
func (c *Core) Requests() []node.Origin {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := make([]node.Origin, len(c.requests))
	copy(r, c.requests)
	return r
}

func (c *Core) handle(ctx context.Context, origin node.Origin, method string, params []interface{}, result interface{}) error {
	c.mu.Lock()
	c.requests = append(c.requests, origin)
	h, ok := c.handlers[origin]
	c.mu.Unlock()

	if !ok {
		return &api.Error{Kind: api.KindConnection, Origin: origin, Err: ErrScripted}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := h(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	// Round trip through JSON like a real transport would.
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, result); err != nil {
		return &api.Error{Kind: api.KindDecode, Origin: origin, Err: err}
	}
	return nil
}

func (c *Core) Call(ctx context.Context, origin node.Origin, result interface{}, method string, params ...interface{}) error {
	return c.handle(ctx, origin, method, params, result)
}

func (c *Core) Batch(ctx context.Context, origin node.Origin, elems []jsonrpc2.BatchElem) error {
	for i := range elems {
		err := c.handle(ctx, origin, elems[i].Method, elems[i].Params, elems[i].Result)
		if api.IsNetwork(err) || ctx.Err() != nil {
			return err
		}
		elems[i].Error = err
	}
	return nil
}

func (c *Core) Get(ctx context.Context, origin node.Origin, path string, result interface{}) error {
	return c.handle(ctx, origin, path, nil, result)
}

func (c *Core) Post(ctx context.Context, origin node.Origin, path string, body interface{}, result interface{}) error {
	return c.handle(ctx, origin, path, []interface{}{body}, result)
}

func (c *Core) DialWebsocket(ctx context.Context, origin node.Origin, port int) (api.WebsocketConn, error) {
	return nil, &api.Error{Kind: api.KindConnection, Origin: origin, Err: errors.New("websocket not supported by fake core")}
}
