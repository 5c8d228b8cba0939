package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/jsonrpc2/ws"
	"github.com/vipnode/nodehealth/node"
)

const httpContentType = "application/json"

// DefaultMaxContentLength is the response size limit for HTTPCore.
const DefaultMaxContentLength = 10 << 20

var _ Core = &HTTPCore{}

// HTTPCore is a Core over net/http with an optional per-origin rate limit.
type HTTPCore struct {
	Client *http.Client

	// Limit is the per-origin request rate. Zero means unlimited.
	Limit rate.Limit
	// Burst is the per-origin burst size, used when Limit is set.
	Burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPCore returns an HTTPCore with a client-wide request timeout and a
// per-origin rate limit of rps requests per second (unlimited if 0).
func NewHTTPCore(timeout time.Duration, rps float64) *HTTPCore {
	c := &HTTPCore{
		Client: &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		c.Limit = rate.Limit(rps)
		c.Burst = int(rps * 2)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	return c
}

func (c *HTTPCore) httpClient() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

// wait blocks until the origin's limiter allows another request.
func (c *HTTPCore) wait(ctx context.Context, origin node.Origin) error {
	if c.Limit == 0 {
		return nil
	}
	c.mu.Lock()
	if c.limiters == nil {
		c.limiters = map[string]*rate.Limiter{}
	}
	key := origin.Endpoint()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.Limit, c.Burst)
		c.limiters[key] = limiter
	}
	c.mu.Unlock()
	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Wait would exceed the ctx deadline, treat it as a timeout.
		return &Error{Kind: KindTimeout, Origin: origin, Err: err}
	}
	return nil
}

func (c *HTTPCore) service(origin node.Origin) *jsonrpc2.HTTPService {
	return &jsonrpc2.HTTPService{
		HTTPClient:       c.httpClient(),
		Endpoint:         origin.Endpoint(),
		MaxContentLength: DefaultMaxContentLength,
	}
}

func (c *HTTPCore) Call(ctx context.Context, origin node.Origin, result interface{}, method string, params ...interface{}) error {
	if err := c.wait(ctx, origin); err != nil {
		return err
	}
	err := c.service(origin).Call(ctx, result, method, params...)
	return classify(ctx, origin, err)
}

func (c *HTTPCore) Batch(ctx context.Context, origin node.Origin, elems []jsonrpc2.BatchElem) error {
	if err := c.wait(ctx, origin); err != nil {
		return err
	}
	if err := c.service(origin).Batch(ctx, elems); err != nil {
		return classify(ctx, origin, err)
	}
	for i := range elems {
		if elems[i].Error != nil {
			elems[i].Error = classify(ctx, origin, elems[i].Error)
		}
	}
	return nil
}

func (c *HTTPCore) Get(ctx context.Context, origin node.Origin, path string, result interface{}) error {
	return c.do(ctx, origin, http.MethodGet, path, nil, result)
}

func (c *HTTPCore) Post(ctx context.Context, origin node.Origin, path string, body interface{}, result interface{}) error {
	return c.do(ctx, origin, http.MethodPost, path, body, result)
}

func (c *HTTPCore) do(ctx context.Context, origin node.Origin, method string, path string, body interface{}, result interface{}) error {
	if err := c.wait(ctx, origin); err != nil {
		return err
	}
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, origin.Endpoint(path), reqBody)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", httpContentType)
	if body != nil {
		req.Header.Set("Content-Type", httpContentType)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return classify(ctx, origin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Kind:   statusKind(resp.StatusCode),
			Origin: origin,
			Err:    fmt.Errorf("bad status code: %d", resp.StatusCode),
		}
	}
	if result == nil {
		return nil
	}
	r := io.LimitReader(resp.Body, DefaultMaxContentLength)
	if err := json.NewDecoder(r).Decode(result); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindDecode, Origin: origin, Err: err}
	}
	return nil
}

func (c *HTTPCore) DialWebsocket(ctx context.Context, origin node.Origin, port int) (WebsocketConn, error) {
	if err := c.wait(ctx, origin); err != nil {
		return nil, err
	}
	conn, err := ws.Dial(ctx, origin.WebsocketEndpoint(port))
	if err != nil {
		logger.Printf("websocket dial failed for %s: %s", origin, err)
		return nil, classify(ctx, origin, err)
	}
	return conn, nil
}
