package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
)

// Server contains the method registry.
type Server struct {
	registry map[string]Method
}

// Register adds valid methods from the receiver to the registry with the given
// prefix. The first letter of each method name is lowercased.
func (s *Server) Register(prefix string, receiver interface{}) error {
	if s.registry == nil {
		s.registry = map[string]Method{}
	}

	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		s.registry[buf.String()] = m
		buf.Reset()
	}
	return nil
}

// Handle executes a request against the registry. Errors returned by the
// method are passed through if they're already an *ErrResponse.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	r := &Response{}
	m, ok := s.registry[req.Method]
	if !ok {
		r.Error = &ErrResponse{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
		return r
	}
	args, err := parsePositionalArguments(req.Params, m.ArgTypes)
	if err != nil {
		r.Error = &ErrResponse{
			Code:    ErrCodeInvalidParams,
			Message: fmt.Sprintf("invalid params: %s", err),
		}
		return r
	}
	res, err := m.Call(ctx, args)
	if err != nil {
		var errResp *ErrResponse
		if errors.As(err, &errResp) {
			r.Error = errResp
			return r
		}
		r.Error = &ErrResponse{
			Code:    ErrCodeInternal,
			Message: err.Error(),
		}
		return r
	}
	if r.Result, err = json.Marshal(res); err != nil {
		r.Error = &ErrResponse{
			Code:    ErrCodeServer,
			Message: fmt.Sprintf("failed to encode response: %s", err),
		}
	}
	return r
}

// HandleMessage executes a request message and returns the response message
// with the matching ID. Notifications (messages without an ID) return nil.
func (s *Server) HandleMessage(ctx context.Context, msg *Message) *Message {
	resp := &Message{
		ID:      msg.ID,
		Version: Version,
	}
	if msg.Request == nil {
		resp.Response = &Response{
			Error: &ErrResponse{
				Code:    ErrCodeInvalidRequest,
				Message: "message is not a request",
			},
		}
		return resp
	}
	resp.Response = s.Handle(ctx, msg.Request)
	if len(msg.ID) == 0 {
		return nil
	}
	return resp
}
