package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

// Kind classifies a transport outcome.
type Kind int

const (
	// KindTimeout is a request that did not complete in time.
	KindTimeout Kind = iota + 1
	// KindConnection is a dial, TLS, DNS or dropped connection failure.
	KindConnection
	// KindServer is an HTTP 5xx or 429 response.
	KindServer
	// KindDecode is a response that could not be decoded.
	KindDecode
	// KindApplication is a well-formed error answer, such as a JSONRPC error
	// object or an HTTP 4xx response.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	case KindApplication:
		return "application"
	}
	return "unknown"
}

// Error is a classified transport error for one origin.
type Error struct {
	Kind   Kind
	Origin node.Origin
	Err    error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s error from %s: %s", err.Kind, err.Origin, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// IsNetwork returns true if the error means the node could not be reached
// or could not serve the request. Caller cancellation is never a network
// error.
func IsNetwork(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case KindTimeout, KindConnection, KindServer:
		return true
	}
	return false
}

// KindOf returns the classified kind of err, or 0 if it is unclassified.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// classify wraps a raw transport error into an *Error. Errors caused by ctx
// being done are returned as the context error, unclassified.
func classify(ctx context.Context, origin node.Origin, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return err
	}

	kind := KindConnection
	var errResp *jsonrpc2.ErrResponse
	var httpErr jsonrpc2.HTTPRequestError
	var decodeErr jsonrpc2.DecodeError
	var netErr net.Error
	switch {
	case errors.As(err, &errResp):
		kind = KindApplication
	case errors.As(err, &httpErr):
		kind = statusKind(httpErr.StatusCode)
	case errors.As(err, &decodeErr):
		kind = KindDecode
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Origin: origin, Err: err}
}

func statusKind(code int) Kind {
	if code >= 500 || code == http.StatusTooManyRequests {
		return KindServer
	}
	if code >= 400 {
		return KindApplication
	}
	return KindDecode
}
