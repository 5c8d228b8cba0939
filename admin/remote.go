package admin

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"time"

	"github.com/vipnode/nodehealth/jsonrpc2"
)

// Remote returns a RemoteAdmin which calls the admin service over client and
// takes care of the request signing.
func Remote(client jsonrpc2.Service, privkey *ecdsa.PrivateKey) *RemoteAdmin {
	return &RemoteAdmin{
		client:  client,
		privkey: privkey,
		address: Address(privkey),
	}
}

// RemoteAdmin is the client side of Service.
type RemoteAdmin struct {
	client  jsonrpc2.Service
	privkey *ecdsa.PrivateKey
	address string

	mu        sync.Mutex
	lastNonce int64
}

// Address returns the signing address.
func (r *RemoteAdmin) Address() string {
	return r.address
}

// getNonce is time based so that it keeps increasing across runs.
func (r *RemoteAdmin) getNonce() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	nonce := time.Now().UnixNano()
	if nonce <= r.lastNonce {
		nonce = r.lastNonce + 1
	}
	r.lastNonce = nonce
	return nonce
}

func (r *RemoteAdmin) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	req := Request{
		Method:  Prefix + method,
		Address: r.address,
		Nonce:   r.getNonce(),
		Args:    args,
	}
	params, err := req.SignedArgs(r.privkey)
	if err != nil {
		return err
	}
	return r.client.Call(ctx, result, req.Method, params...)
}

// SetEnabled turns the node matching the ID prefix on or off.
func (r *RemoteAdmin) SetEnabled(ctx context.Context, network string, id string, enabled bool) error {
	return r.call(ctx, nil, "setEnabled", network, id, enabled)
}

// AddNode adds a node and returns its ID. Pass an empty alt for none.
func (r *RemoteAdmin) AddNode(ctx context.Context, network string, main string, alt string) (string, error) {
	var id string
	if err := r.call(ctx, &id, "addNode", network, main, alt); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveNode deletes the node matching the ID prefix.
func (r *RemoteAdmin) RemoveNode(ctx context.Context, network string, id string) error {
	return r.call(ctx, nil, "removeNode", network, id)
}
