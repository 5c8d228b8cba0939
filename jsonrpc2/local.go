package jsonrpc2

import (
	"context"
)

// Service represents a remote service that can be called.
type Service interface {
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

var _ Service = &Local{}

// Local is a Service implementation for an in-process Server.
type Local struct {
	Client
	Server
}

func (loc *Local) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	msg, err := loc.Client.Request(method, params...)
	if err != nil {
		return err
	}
	resp := loc.Server.Handle(ctx, msg.Request)
	return resp.UnmarshalResult(result)
}
