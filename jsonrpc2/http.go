package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
)

const httpContentType = "application/json"

var _ http.Handler = &HTTPServer{}

// HTTPServer provides a JSONRPC2 server over HTTP by implementing http.Handler.
// Both single and batched requests are supported.
type HTTPServer struct {
	Server

	// MaxContentLength is the request size limit (optional)
	MaxContentLength int64
}

func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.ContentLength == 0 && r.URL.RawQuery == "" {
		// Ignore empty GET requests
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.MaxContentLength > 0 && r.ContentLength > h.MaxContentLength {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	var body io.Reader = r.Body
	if h.MaxContentLength > 0 {
		body = io.LimitReader(r.Body, h.MaxContentLength)
	}
	defer r.Body.Close()

	raw, err := ioutil.ReadAll(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", httpContentType)
	enc := json.NewEncoder(w)

	if !isArray(raw) {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			enc.Encode(parseErrorMessage(err))
			return
		}
		resp := h.Server.HandleMessage(r.Context(), &msg)
		if resp == nil {
			return
		}
		if err := enc.Encode(resp); err != nil {
			logger.Printf("failed to write response: %s", err)
		}
		return
	}

	var batch []Message
	if err := json.Unmarshal(raw, &batch); err != nil {
		enc.Encode(parseErrorMessage(err))
		return
	}
	if len(batch) == 0 {
		enc.Encode(&Message{
			Version:  Version,
			Response: &Response{Error: &ErrResponse{Code: ErrCodeInvalidRequest, Message: "empty batch"}},
		})
		return
	}
	replies := make([]*Message, 0, len(batch))
	for i := range batch {
		if resp := h.Server.HandleMessage(r.Context(), &batch[i]); resp != nil {
			replies = append(replies, resp)
		}
	}
	if len(replies) == 0 {
		return
	}
	if err := enc.Encode(replies); err != nil {
		logger.Printf("failed to write batch response: %s", err)
	}
}

func parseErrorMessage(err error) *Message {
	return &Message{
		Version: Version,
		Response: &Response{
			Error: &ErrResponse{
				Code:    ErrCodeParse,
				Message: fmt.Sprintf("failed to parse request: %s", err),
			},
		},
	}
}

var _ Service = &HTTPService{}

// HTTPService is a Service that calls a remote HTTP JSONRPC endpoint.
type HTTPService struct {
	Client
	// HTTPClient is used for requests, http.DefaultClient if nil.
	HTTPClient *http.Client

	// Endpoint is the HTTP URL to dial for RPC calls.
	Endpoint string
	// MaxContentLength is the response size limit (optional)
	MaxContentLength int64
}

func (service *HTTPService) httpClient() *http.Client {
	if service.HTTPClient == nil {
		return http.DefaultClient
	}
	return service.HTTPClient
}

// post sends the encoded body and decodes the response body into out.
func (service *HTTPService) post(ctx context.Context, body []byte, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, service.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", httpContentType)
	req.Header.Set("Accept", httpContentType)
	req = req.WithContext(ctx)

	resp, err := service.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPRequestError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("bad status code: %d", resp.StatusCode),
		}
	}
	if service.MaxContentLength > 0 && resp.ContentLength > service.MaxContentLength {
		return HTTPRequestError{
			StatusCode: resp.StatusCode,
			Reason:     "response too large",
		}
	}

	var r io.Reader = resp.Body
	if service.MaxContentLength > 0 {
		r = io.LimitReader(resp.Body, service.MaxContentLength)
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return DecodeError{err}
	}
	return nil
}

func (service *HTTPService) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	msg, err := service.Client.Request(method, params...)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var respMsg Message
	if err := service.post(ctx, body, &respMsg); err != nil {
		return err
	}
	if respMsg.Response == nil {
		return DecodeError{errors.New("missing response in RPC message")}
	}
	if err := respMsg.Response.UnmarshalResult(result); err != nil {
		if IsErrResponse(err) {
			return err
		}
		return DecodeError{err}
	}
	return nil
}

// Batch sends all elements in a single HTTP request. Transport failures are
// returned directly, while per-call failures are set on each element's Error.
func (service *HTTPService) Batch(ctx context.Context, elems []BatchElem) error {
	if len(elems) == 0 {
		return nil
	}
	msgs, err := service.Client.Batch(elems)
	if err != nil {
		return err
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return err
	}

	var replies []Message
	if err := service.post(ctx, body, &replies); err != nil {
		return err
	}

	byID := make(map[string]*Response, len(replies))
	for i := range replies {
		byID[string(replies[i].ID)] = replies[i].Response
	}
	for i, msg := range msgs {
		resp, ok := byID[string(msg.ID)]
		if !ok || resp == nil {
			elems[i].Error = DecodeError{fmt.Errorf("missing response for batched call: %s", elems[i].Method)}
			continue
		}
		if err := resp.UnmarshalResult(elems[i].Result); err != nil {
			if !IsErrResponse(err) {
				err = DecodeError{err}
			}
			elems[i].Error = err
		}
	}
	return nil
}

// HTTPRequestError is used when RPC over HTTP encounters an error during transport.
type HTTPRequestError struct {
	StatusCode int
	Reason     string
}

func (err HTTPRequestError) Error() string {
	return fmt.Sprintf("http rpc request error: %s", err.Reason)
}

// DecodeError is used when the remote responded, but the response could not
// be decoded into the expected shape.
type DecodeError struct {
	Err error
}

func (err DecodeError) Error() string {
	return fmt.Sprintf("failed to decode rpc response: %s", err.Err)
}

func (err DecodeError) Unwrap() error {
	return err.Err
}
