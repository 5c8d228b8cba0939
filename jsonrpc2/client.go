package jsonrpc2

import (
	"encoding/json"
	"sync/atomic"
)

type Client struct {
	id int32
}

func (c *Client) NextID() int {
	return int(atomic.AddInt32(&c.id, 1))
}

// Request returns a new request message with the next ID.
func (c *Client) Request(method string, params ...interface{}) (*Message, error) {
	msg := &Message{
		Request: &Request{
			Method: method,
		},
		Version: Version,
	}
	if params == nil {
		params = []interface{}{}
	}
	var err error
	if msg.ID, err = json.Marshal(c.NextID()); err != nil {
		return nil, err
	}
	if msg.Request.Params, err = json.Marshal(params); err != nil {
		return nil, err
	}
	return msg, nil
}

// Batch returns request messages for each batch element, in order.
func (c *Client) Batch(elems []BatchElem) ([]*Message, error) {
	msgs := make([]*Message, 0, len(elems))
	for _, elem := range elems {
		msg, err := c.Request(elem.Method, elem.Params...)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
