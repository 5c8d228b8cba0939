package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "2.0"

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
)

// Message is the envelope of a JSONRPC 2.0 message. Exactly one of Request or
// Response is set.
type Message struct {
	*Request
	*Response

	ID      json.RawMessage `json:"id,omitempty"`
	Version string          `json:"jsonrpc"`
}

type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrResponse    `json:"error,omitempty"`
}

// UnmarshalResult decodes the response result into result, or returns the
// response error if there is one.
func (resp *Response) UnmarshalResult(result interface{}) error {
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}

// ErrResponse is the error object of a JSONRPC response. It is returned as an
// error by callers when the remote responded with an error.
type ErrResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}

// IsErrResponse returns true if the error, or anything it wraps, is an error
// object returned by the remote.
func IsErrResponse(err error) bool {
	var errResp *ErrResponse
	return errors.As(err, &errResp)
}

// BatchElem is one call in a batch. Result is the value to decode into, and
// Error is set per element after the batch completes.
type BatchElem struct {
	Method string
	Params []interface{}
	Result interface{}
	Error  error
}
